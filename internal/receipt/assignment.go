package receipt

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/zombor/snapbill/internal/scanning"
)

// AssignmentState describes whether an assignment holds any items
type AssignmentState int

const (
	AssignmentEmpty AssignmentState = iota
	AssignmentPopulated
)

// NewAssignment starts every extracted item as unassigned, in extraction order
func NewAssignment(items []scanning.LineItem) Assignment {
	a := Assignment{
		Unassigned: make([]Item, 0, len(items)),
		Mine:       []Item{},
	}
	for i, li := range items {
		a.Unassigned = append(a.Unassigned, Item{
			ID:          i,
			Description: li.Description,
			Amount:      li.Amount,
		})
	}
	return a
}

// State reports whether the assignment holds items
func (a Assignment) State() AssignmentState {
	if len(a.Unassigned) == 0 && len(a.Mine) == 0 {
		return AssignmentEmpty
	}
	return AssignmentPopulated
}

// Select moves an item from unassigned to mine. It reports false and changes
// nothing if the item is not currently unassigned.
func (a *Assignment) Select(id int) bool {
	return moveItem(&a.Unassigned, &a.Mine, id)
}

// Deselect moves an item from mine back to unassigned
func (a *Assignment) Deselect(id int) bool {
	return moveItem(&a.Mine, &a.Unassigned, id)
}

// Reset clears both sequences
func (a *Assignment) Reset() {
	a.Unassigned = []Item{}
	a.Mine = []Item{}
}

// PersonalTotal is the sum of amounts over mine
func (a Assignment) PersonalTotal() decimal.Decimal {
	return sumItems(a.Mine)
}

// SharedTotal is the sum of amounts over unassigned
func (a Assignment) SharedTotal() decimal.Decimal {
	return sumItems(a.Unassigned)
}

func moveItem(from, to *[]Item, id int) bool {
	i := slices.IndexFunc(*from, func(item Item) bool { return item.ID == id })
	if i < 0 {
		return false
	}

	item := (*from)[i]
	*from = slices.Delete(*from, i, i+1)
	*to = append(*to, item)
	// display order follows the receipt, not click order
	slices.SortFunc(*to, func(x, y Item) int { return cmp.Compare(x.ID, y.ID) })
	return true
}

func sumItems(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}
