package address_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/testdata/address"
	"github.com/sarchlab/testdata/source"
	"github.com/sarchlab/testdata/ua"
)

func vectorReading(x, y, z float64) ua.Structure {
	return ua.Structure{
		{Name: "X", Value: x},
		{Name: "Y", Value: y},
		{Name: "Z", Value: z},
	}
}

func childValues(c *address.CompositeVariable) []any {
	values := []any{}
	for _, child := range c.Children() {
		values = append(values, child.Read().Value)
	}

	return values
}

var _ = Describe("CompositeVariable", func() {
	var (
		mockCtrl *gomock.Controller
		src      *MockSystemValueSource
		notifier *MockChangeNotifier
		vector   *address.CompositeVariable
		now      time.Time
		sc       *address.SystemContext
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		src = NewMockSystemValueSource(mockCtrl)
		notifier = NewMockChangeNotifier(mockCtrl)
		vector = address.NewVector("ns=2;s=Vector", "Vector")
		now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		sc = &address.SystemContext{
			Source:         src,
			Now:            func() time.Time { return now },
			Notifier:       notifier,
			IncludeSubtree: true,
		}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should create one child per field", func() {
		Expect(vector.Children()).To(HaveLen(3))

		y, ok := vector.Child("Y")
		Expect(ok).To(BeTrue())
		Expect(y.ID()).To(Equal(ua.NodeID("ns=2;s=Vector.Y")))
		Expect(y.Parent()).To(BeIdenticalTo(vector))
		Expect(y.DataType()).To(Equal(ua.DataTypeDouble))
	})

	It("should panic on duplicated fields", func() {
		Expect(func() {
			address.NewCompositeVariable("ns=2;s=Bad", "Bad",
				ua.FieldDescriptor{Name: "A", DataType: ua.DataTypeInt32},
				ua.FieldDescriptor{Name: "A", DataType: ua.DataTypeInt32},
			)
		}).To(Panic())
	})

	It("should describe its fields to the source", func() {
		d := vector.Descriptor()

		Expect(d.IsComposite()).To(BeTrue())
		Expect(d.DataType).To(Equal(ua.DataTypeStructure))
		Expect(d.Fields).To(HaveLen(3))
		Expect(d.Fields[2].Name).To(Equal("Z"))
	})

	It("should propagate access levels to the children", func() {
		vector.SetAccessLevels(ua.AccessLevelCurrentReadOrWrite, ua.AccessLevelCurrentRead)

		for _, child := range vector.Children() {
			Expect(child.AccessLevel()).To(Equal(ua.AccessLevelCurrentReadOrWrite))
			Expect(child.UserAccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
		}
	})

	It("should initialize children idempotently", func() {
		vector.InitializeChildren(ua.AccessLevelNone, ua.AccessLevelNone)
		x, _ := vector.Child("X")
		mask := x.ChangeMask()

		vector.InitializeChildren(ua.AccessLevelNone, ua.AccessLevelNone)

		Expect(x.AccessLevel()).To(Equal(ua.AccessLevelNone))
		Expect(x.ChangeMask()).To(Equal(mask))
	})

	It("should write all children in one step", func() {
		vector.SetAccessLevels(ua.AccessLevelCurrentReadOrWrite, ua.AccessLevelCurrentReadOrWrite)

		status := vector.Write(vectorReading(1, 2, 3), ua.StatusGood, now)

		Expect(status).To(Equal(ua.StatusGood))
		Expect(childValues(vector)).To(Equal([]any{1.0, 2.0, 3.0}))
		Expect(vector.Read().Value).To(Equal(vectorReading(1, 2, 3)))
		for _, child := range vector.Children() {
			Expect(child.Read().SourceTimestamp).To(Equal(now))
		}
	})

	It("should reject structures that do not match the children", func() {
		vector.SetAccessLevels(ua.AccessLevelCurrentReadOrWrite, ua.AccessLevelCurrentReadOrWrite)

		missing := ua.Structure{{Name: "X", Value: 1.0}, {Name: "Y", Value: 2.0}}
		renamed := ua.Structure{
			{Name: "X", Value: 1.0}, {Name: "Y", Value: 2.0}, {Name: "W", Value: 3.0},
		}
		wrongType := ua.Structure{
			{Name: "X", Value: 1.0}, {Name: "Y", Value: 2.0}, {Name: "Z", Value: "3"},
		}

		Expect(vector.Write(missing, ua.StatusGood, now)).To(Equal(ua.StatusBadTypeMismatch))
		Expect(vector.Write(renamed, ua.StatusGood, now)).To(Equal(ua.StatusBadTypeMismatch))
		Expect(vector.Write(wrongType, ua.StatusGood, now)).To(Equal(ua.StatusBadTypeMismatch))
		Expect(childValues(vector)).To(Equal([]any{0.0, 0.0, 0.0}))
	})

	It("should deny external writes to a read-only child", func() {
		x, _ := vector.Child("X")

		Expect(x.Write(1.0, ua.StatusGood, now)).To(Equal(ua.StatusAccessDenied))
	})

	Context("when generating", func() {
		It("should fill the children from the source and keep ReadOnly", func() {
			src.EXPECT().
				ReadValue(gomock.Any(), vector.Descriptor()).
				Return(vectorReading(1.0, 2.0, 3.0), nil)
			notifier.EXPECT().NodeChanged(vector.ID(), true)

			status := vector.GenerateValues(context.Background(), sc)

			Expect(status).To(Equal(ua.StatusGood))
			Expect(childValues(vector)).To(Equal([]any{1.0, 2.0, 3.0}))
			for _, child := range vector.Children() {
				dv := child.Read()
				Expect(dv.Status).To(Equal(ua.StatusGood))
				Expect(child.AccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
				Expect(child.UserAccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
				Expect(child.ChangeMask()).To(Equal(address.ChangeMaskNone))
			}
			Expect(vector.AccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
			Expect(vector.UserAccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
			Expect(vector.Read().SourceTimestamp).To(Equal(now))
		})

		It("should restore levels that were not read-only", func() {
			vector.SetAccessLevels(ua.AccessLevelNone, ua.AccessLevelCurrentWrite)
			src.EXPECT().
				ReadValue(gomock.Any(), gomock.Any()).
				Return(vectorReading(1, 2, 3), nil)
			notifier.EXPECT().NodeChanged(vector.ID(), true)

			Expect(vector.GenerateValues(context.Background(), sc)).
				To(Equal(ua.StatusGood))

			Expect(vector.AccessLevel()).To(Equal(ua.AccessLevelNone))
			Expect(vector.UserAccessLevel()).To(Equal(ua.AccessLevelCurrentWrite))
			z, _ := vector.Child("Z")
			Expect(z.AccessLevel()).To(Equal(ua.AccessLevelNone))
		})

		It("should do nothing without a source", func() {
			sc.Source = nil

			status := vector.GenerateValues(context.Background(), sc)

			Expect(status).To(Equal(ua.StatusServiceUnavailable))
			Expect(childValues(vector)).To(Equal([]any{0.0, 0.0, 0.0}))
			Expect(vector.Read().SourceTimestamp.IsZero()).To(BeTrue())
		})

		It("should restore levels when the source fails", func() {
			src.EXPECT().
				ReadValue(gomock.Any(), gomock.Any()).
				Return(nil, errors.New("offline"))
			notifier.EXPECT().NodeChanged(vector.ID(), true)

			status := vector.GenerateValues(context.Background(), sc)

			Expect(status).To(Equal(ua.StatusServiceUnavailable))
			Expect(vector.AccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
			Expect(childValues(vector)).To(Equal([]any{0.0, 0.0, 0.0}))
		})

		It("should pass through a status reported by the source", func() {
			src.EXPECT().
				ReadValue(gomock.Any(), gomock.Any()).
				Return(nil, &source.StatusError{Code: ua.StatusBadNoData})
			notifier.EXPECT().NodeChanged(vector.ID(), true)

			Expect(vector.GenerateValues(context.Background(), sc)).
				To(Equal(ua.StatusBadNoData))
			Expect(vector.AccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
		})

		It("should report a scalar reading as a type mismatch", func() {
			src.EXPECT().
				ReadValue(gomock.Any(), gomock.Any()).
				Return(1.0, nil)
			notifier.EXPECT().NodeChanged(vector.ID(), true)

			Expect(vector.GenerateValues(context.Background(), sc)).
				To(Equal(ua.StatusBadTypeMismatch))
			Expect(vector.UserAccessLevel()).To(Equal(ua.AccessLevelCurrentRead))
		})

		It("should yield the same result twice for a stable source", func() {
			src.EXPECT().
				ReadValue(gomock.Any(), gomock.Any()).
				Return(vectorReading(4, 5, 6), nil).Times(2)
			notifier.EXPECT().NodeChanged(vector.ID(), true).Times(2)

			first := vector.GenerateValues(context.Background(), sc)
			firstValue := vector.Read().Value
			second := vector.GenerateValues(context.Background(), sc)

			Expect(second).To(Equal(first))
			Expect(vector.Read().Value).To(Equal(firstValue))
		})

		It("should not move a child's timestamp backwards", func() {
			x, _ := vector.Child("X")
			later := now.Add(time.Hour)
			src.EXPECT().
				ReadValue(gomock.Any(), x.Descriptor()).
				Return(9.0, nil)
			src.EXPECT().
				ReadValue(gomock.Any(), vector.Descriptor()).
				Return(vectorReading(1, 2, 3), nil)
			notifier.EXPECT().NodeChanged(gomock.Any(), gomock.Any()).Times(2)

			sc.Now = func() time.Time { return later }
			Expect(x.GenerateValues(context.Background(), sc)).
				To(Equal(ua.StatusGood))

			sc.Now = func() time.Time { return now }
			Expect(vector.GenerateValues(context.Background(), sc)).
				To(Equal(ua.StatusGood))

			Expect(x.Read().Value).To(Equal(1.0))
			for _, child := range vector.Children() {
				Expect(child.Read().SourceTimestamp).To(Equal(later))
			}
			Expect(vector.Read().SourceTimestamp).To(Equal(later))
		})

		It("should not expose elevated levels while the source blocks", func() {
			entered := make(chan struct{})
			release := make(chan struct{})
			src.EXPECT().
				ReadValue(gomock.Any(), gomock.Any()).
				DoAndReturn(func(context.Context, ua.NodeDescriptor) (any, error) {
					close(entered)
					<-release
					return vectorReading(1, 2, 3), nil
				})
			notifier.EXPECT().NodeChanged(vector.ID(), true)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				vector.GenerateValues(context.Background(), sc)
			}()

			<-entered
			observed := make(chan ua.AccessLevel, 1)
			go func() { observed <- vector.AccessLevel() }()

			Consistently(observed, 50*time.Millisecond).ShouldNot(Receive())
			close(release)
			Eventually(observed).Should(Receive(Equal(ua.AccessLevelCurrentRead)))
			wg.Wait()
		})
	})
})
