// Package slots holds the fixed layout of a trader's stand container.
//
// Product slots are 0-6 and 21-27. Each product slot i is priced by the
// cost slot i+7. Slots 14-20 are filler and never trade.
package slots

const (
	Count      = 35
	CostOffset = 7

	blockedFirst = 14
	blockedLast  = 20
)

var products = []int{0, 1, 2, 3, 4, 5, 6, 21, 22, 23, 24, 25, 26, 27}

func IsProduct(slot int) bool {
	return (slot >= 0 && slot <= 6) || (slot >= 21 && slot <= 27)
}

func IsCost(slot int) bool {
	return IsProduct(slot - CostOffset)
}

func IsBlocked(slot int) bool {
	return slot >= blockedFirst && slot <= blockedLast
}

// CostFor returns the cost slot paired with a product slot.
func CostFor(product int) (int, bool) {
	if !IsProduct(product) {
		return -1, false
	}
	return product + CostOffset, true
}

// ProductFor returns the product slot a cost slot prices.
func ProductFor(cost int) (int, bool) {
	if !IsCost(cost) {
		return -1, false
	}
	return cost - CostOffset, true
}

// Products lists every product slot in ascending order. The slice is a copy.
func Products() []int {
	out := make([]int, len(products))
	copy(out, products)
	return out
}

func Blocked() []int {
	out := make([]int, 0, blockedLast-blockedFirst+1)
	for i := blockedFirst; i <= blockedLast; i++ {
		out = append(out, i)
	}
	return out
}
