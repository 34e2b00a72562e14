package address_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/testdata/address"
	"github.com/sarchlab/testdata/source"
	"github.com/sarchlab/testdata/ua"
)

var _ = Describe("ValueSlot", func() {
	var (
		mockCtrl *gomock.Controller
		src      *MockSystemValueSource
		notifier *MockChangeNotifier
		slot     *address.ValueSlot
		now      time.Time
		sc       *address.SystemContext
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		src = NewMockSystemValueSource(mockCtrl)
		notifier = NewMockChangeNotifier(mockCtrl)
		slot = address.NewValueSlot("ns=2;s=Double", "Double", ua.DataTypeDouble)
		now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		sc = &address.SystemContext{
			Source:   src,
			Now:      func() time.Time { return now },
			Notifier: notifier,
		}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start read-only with the zero value", func() {
		dv := slot.Read()

		Expect(dv.Value).To(Equal(0.0))
		Expect(dv.Status).To(Equal(ua.StatusGood))
		Expect(slot.AccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
		Expect(slot.UserAccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
	})

	It("should deny writes without write access", func() {
		status := slot.Write(1.5, ua.StatusGood, now)

		Expect(status).To(Equal(ua.StatusAccessDenied))
		Expect(slot.Read().Value).To(Equal(0.0))
		Expect(slot.Read().SourceTimestamp.IsZero()).To(BeTrue())
	})

	It("should deny writes when only the user level lacks write access", func() {
		slot.SetAccessLevels(ua.AccessLevelCurrentReadOrWrite, ua.AccessLevelCurrentRead)

		Expect(slot.Write(1.5, ua.StatusGood, now)).To(Equal(ua.StatusAccessDenied))
	})

	It("should write value, status and timestamp together", func() {
		slot.SetAccessLevels(ua.AccessLevelCurrentReadOrWrite, ua.AccessLevelCurrentReadOrWrite)

		status := slot.Write(1.5, ua.StatusUncertainLastUsableValue, now)

		Expect(status).To(Equal(ua.StatusGood))
		dv := slot.Read()
		Expect(dv.Value).To(Equal(1.5))
		Expect(dv.Status).To(Equal(ua.StatusUncertainLastUsableValue))
		Expect(dv.SourceTimestamp).To(Equal(now))
		Expect(slot.ChangeMask() & address.ChangeMaskValue).NotTo(BeZero())
	})

	It("should reject values of the wrong type", func() {
		slot.SetAccessLevels(ua.AccessLevelCurrentReadOrWrite, ua.AccessLevelCurrentReadOrWrite)

		Expect(slot.Write("1.5", ua.StatusGood, now)).
			To(Equal(ua.StatusBadTypeMismatch))
	})

	It("should not alias array values", func() {
		arr := address.NewValueSlot("ns=2;s=Array", "Array", ua.DataTypeInt32).
			WithValueRank(ua.ValueRankOneDimension)
		arr.SetAccessLevels(ua.AccessLevelCurrentReadOrWrite, ua.AccessLevelCurrentReadOrWrite)

		in := []any{int32(1), int32(2)}
		Expect(arr.Write(in, ua.StatusGood, now)).To(Equal(ua.StatusGood))
		in[0] = int32(9)

		out := arr.Read().Value.([]any)
		Expect(out).To(Equal([]any{int32(1), int32(2)}))
		out[1] = int32(9)
		Expect(arr.Read().Value).To(Equal([]any{int32(1), int32(2)}))
	})

	It("should not share byte buffers inside arrays", func() {
		arr := address.NewValueSlot("ns=2;s=Blobs", "Blobs", ua.DataTypeByteString).
			WithValueRank(ua.ValueRankOneDimension)
		arr.SetAccessLevels(ua.AccessLevelCurrentReadOrWrite, ua.AccessLevelCurrentReadOrWrite)

		blob := []byte{1, 2}
		Expect(arr.Write([]any{blob}, ua.StatusGood, now)).To(Equal(ua.StatusGood))
		blob[0] = 9

		out := arr.Read().Value.([]any)
		Expect(out[0]).To(Equal([]byte{1, 2}))
		out[0].([]byte)[1] = 9
		Expect(arr.Read().Value).To(Equal([]any{[]byte{1, 2}}))
	})

	Context("when generating", func() {
		It("should write the reading and keep the levels", func() {
			src.EXPECT().
				ReadValue(gomock.Any(), slot.Descriptor()).
				Return(2.5, nil)
			notifier.EXPECT().NodeChanged(slot.ID(), false)

			status := slot.GenerateValues(context.Background(), sc)

			Expect(status).To(Equal(ua.StatusGood))
			Expect(slot.Read().Value).To(Equal(2.5))
			Expect(slot.Read().SourceTimestamp).To(Equal(now))
			Expect(slot.AccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
			Expect(slot.UserAccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
			Expect(slot.ChangeMask()).To(Equal(address.ChangeMaskNone))
		})

		It("should report out of service without a source", func() {
			sc.Source = nil

			status := slot.GenerateValues(context.Background(), sc)

			Expect(status).To(Equal(ua.StatusServiceUnavailable))
			Expect(slot.Read().SourceTimestamp.IsZero()).To(BeTrue())
		})

		It("should report out of service when the source fails", func() {
			src.EXPECT().
				ReadValue(gomock.Any(), gomock.Any()).
				Return(nil, errors.New("sensor offline"))
			notifier.EXPECT().NodeChanged(slot.ID(), false)

			status := slot.GenerateValues(context.Background(), sc)

			Expect(status).To(Equal(ua.StatusServiceUnavailable))
			Expect(slot.Read().Value).To(Equal(0.0))
			Expect(slot.AccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
		})

		It("should pass a source status through", func() {
			src.EXPECT().
				ReadValue(gomock.Any(), gomock.Any()).
				Return(nil, &source.StatusError{Code: ua.StatusBadNoData})
			notifier.EXPECT().NodeChanged(slot.ID(), false)

			status := slot.GenerateValues(context.Background(), sc)

			Expect(status).To(Equal(ua.StatusBadNoData))
			Expect(slot.AccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
		})

		It("should surface a mismatching reading as the write status", func() {
			src.EXPECT().
				ReadValue(gomock.Any(), gomock.Any()).
				Return(int32(3), nil)
			notifier.EXPECT().NodeChanged(slot.ID(), false)

			status := slot.GenerateValues(context.Background(), sc)

			Expect(status).To(Equal(ua.StatusBadTypeMismatch))
			Expect(slot.UserAccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
		})

		It("should never move the timestamp backwards", func() {
			src.EXPECT().
				ReadValue(gomock.Any(), gomock.Any()).
				Return(1.0, nil).Times(2)
			notifier.EXPECT().NodeChanged(gomock.Any(), gomock.Any()).Times(2)

			slot.GenerateValues(context.Background(), sc)
			first := slot.Read().SourceTimestamp

			now = now.Add(-time.Hour)
			Expect(slot.GenerateValues(context.Background(), sc)).
				To(Equal(ua.StatusGood))
			Expect(slot.Read().SourceTimestamp).To(Equal(first))
		})
	})
})
