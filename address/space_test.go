package address_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/testdata/address"
	"github.com/sarchlab/testdata/ua"
)

var _ = Describe("Space", func() {
	var space *address.Space

	BeforeEach(func() {
		space = address.NewSpace()
	})

	It("should resolve top-level nodes and composite children", func() {
		vector := address.NewVector("ns=2;s=Vector", "Vector")
		scalar := address.NewValueSlot("ns=2;s=Int32", "Int32", ua.DataTypeInt32)
		space.MustAdd(vector).MustAdd(scalar)

		Expect(space.Len()).To(Equal(2))
		Expect(space.Nodes()).To(Equal([]address.Variable{vector, scalar}))

		child, ok := space.Get("ns=2;s=Vector.X")
		Expect(ok).To(BeTrue())
		Expect(child.BrowseName()).To(Equal("X"))

		Expect(space.IDs()).To(Equal([]ua.NodeID{
			"ns=2;s=Int32",
			"ns=2;s=Vector",
			"ns=2;s=Vector.X",
			"ns=2;s=Vector.Y",
			"ns=2;s=Vector.Z",
		}))
	})

	It("should reject duplicated IDs", func() {
		space.MustAdd(address.NewVector("ns=2;s=Vector", "Vector"))

		err := space.Add(address.NewValueSlot("ns=2;s=Vector.Y", "Y", ua.DataTypeDouble))

		Expect(err).To(MatchError(address.ErrDuplicateNode))
		Expect(space.Len()).To(Equal(1))
	})

	It("should report unknown nodes", func() {
		_, ok := space.Get("ns=2;s=Nope")

		Expect(ok).To(BeFalse())
		Expect(func() { space.MustGet("ns=2;s=Nope") }).To(Panic())
	})
})
