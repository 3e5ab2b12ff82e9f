package receipt

import (
	"math/rand"
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/snapbill/internal/scanning"
)

func lineItem(description, amount string) scanning.LineItem {
	return scanning.LineItem{Description: description, Amount: decimal.RequireFromString(amount), Quantity: quantity(1)}
}

func itemIDs(items []Item) []int {
	ids := make([]int, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

var _ = Describe("Assignment", func() {
	var assignment Assignment

	BeforeEach(func() {
		assignment = NewAssignment([]scanning.LineItem{
			lineItem("Burger", "12.00"),
			lineItem("Fries", "4.50"),
			lineItem("Soda", "2.25"),
			lineItem("Salad", "9.75"),
		})
	})

	Describe("NewAssignment", func() {
		It("starts every item unassigned in extraction order", func() {
			Expect(itemIDs(assignment.Unassigned)).To(Equal([]int{0, 1, 2, 3}))
			Expect(assignment.Unassigned[1].Description).To(Equal("Fries"))
			Expect(assignment.Mine).To(BeEmpty())
			Expect(assignment.State()).To(Equal(AssignmentPopulated))
		})

		It("is empty when there are no items", func() {
			Expect(NewAssignment(nil).State()).To(Equal(AssignmentEmpty))
		})
	})

	Describe("Select", func() {
		It("moves the item to mine", func() {
			Expect(assignment.Select(2)).To(BeTrue())
			Expect(itemIDs(assignment.Mine)).To(Equal([]int{2}))
			Expect(itemIDs(assignment.Unassigned)).To(Equal([]int{0, 1, 3}))
		})

		It("keeps mine sorted by id regardless of click order", func() {
			assignment.Select(3)
			assignment.Select(0)
			assignment.Select(2)
			Expect(itemIDs(assignment.Mine)).To(Equal([]int{0, 2, 3}))
		})

		It("ignores items already selected", func() {
			assignment.Select(1)
			Expect(assignment.Select(1)).To(BeFalse())
			Expect(itemIDs(assignment.Mine)).To(Equal([]int{1}))
		})

		It("ignores unknown items", func() {
			Expect(assignment.Select(99)).To(BeFalse())
			Expect(assignment.Unassigned).To(HaveLen(4))
		})
	})

	Describe("Deselect", func() {
		It("returns the item to its original position", func() {
			assignment.Select(1)
			assignment.Select(2)
			Expect(assignment.Deselect(1)).To(BeTrue())
			Expect(itemIDs(assignment.Unassigned)).To(Equal([]int{0, 1, 3}))
			Expect(itemIDs(assignment.Mine)).To(Equal([]int{2}))
		})

		It("ignores items that are not mine", func() {
			Expect(assignment.Deselect(0)).To(BeFalse())
			Expect(assignment.Unassigned).To(HaveLen(4))
		})
	})

	Describe("totals", func() {
		It("is zero when nothing is selected", func() {
			Expect(assignment.PersonalTotal().IsZero()).To(BeTrue())
			Expect(assignment.SharedTotal().StringFixed(2)).To(Equal("28.50"))
		})

		It("sums the selected items", func() {
			assignment.Select(0)
			assignment.Select(2)
			Expect(assignment.PersonalTotal().StringFixed(2)).To(Equal("14.25"))
			Expect(assignment.SharedTotal().StringFixed(2)).To(Equal("14.25"))
		})
	})

	Describe("Reset", func() {
		It("clears both sequences", func() {
			assignment.Select(0)
			assignment.Reset()
			Expect(assignment.State()).To(Equal(AssignmentEmpty))
			Expect(assignment.PersonalTotal().IsZero()).To(BeTrue())
		})
	})

	It("stays a sorted partition of the items under any toggle sequence", func() {
		all := []int{0, 1, 2, 3}
		rng := rand.New(rand.NewSource(7))

		for step := 0; step < 500; step++ {
			id := rng.Intn(6) - 1
			if rng.Intn(2) == 0 {
				assignment.Select(id)
			} else {
				assignment.Deselect(id)
			}

			unassigned := itemIDs(assignment.Unassigned)
			mine := itemIDs(assignment.Mine)
			Expect(slices.IsSorted(unassigned)).To(BeTrue())
			Expect(slices.IsSorted(mine)).To(BeTrue())

			union := append(slices.Clone(unassigned), mine...)
			slices.Sort(union)
			Expect(union).To(Equal(all))

			Expect(assignment.PersonalTotal().Add(assignment.SharedTotal()).StringFixed(2)).To(Equal("28.50"))
		}
	})
})
