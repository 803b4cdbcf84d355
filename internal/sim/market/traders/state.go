package traders

import (
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/slots"
)

// SlotReader reads one container slot.
type SlotReader interface {
	ItemAt(c model.ContainerID, slot int) (model.Item, bool)
}

// Contents summarizes a stand's slots.
type Contents struct {
	Pairs    []int // product slots whose cost slot is filled
	Unpriced []int // product slots whose cost slot is empty
	Orphans  []int // cost slots whose product slot is empty
}

func (c Contents) HasAnyCompletePair() bool { return len(c.Pairs) > 0 }
func (c Contents) HasUnpricedProduct() bool { return len(c.Unpriced) > 0 }

// Inspect classifies every product slot of stand together with its cost slot.
func Inspect(r SlotReader, stand model.ContainerID) Contents {
	var c Contents
	for _, p := range slots.Products() {
		cost, _ := slots.CostFor(p)
		_, hasProduct := nonEmpty(r, stand, p)
		_, hasCost := nonEmpty(r, stand, cost)
		switch {
		case hasProduct && hasCost:
			c.Pairs = append(c.Pairs, p)
		case hasProduct:
			c.Unpriced = append(c.Unpriced, p)
		case hasCost:
			c.Orphans = append(c.Orphans, cost)
		}
	}
	return c
}

func nonEmpty(r SlotReader, c model.ContainerID, slot int) (model.Item, bool) {
	it, ok := r.ItemAt(c, slot)
	if !ok || it.Empty() {
		return model.Item{}, false
	}
	return it, true
}

// Derive rebuilds a state from slots alone. ReceivedCost is never produced.
func Derive(c Contents) model.TraderState {
	switch {
	case c.HasUnpricedProduct():
		return model.WaitingForCost
	case c.HasAnyCompletePair():
		return model.Ready
	default:
		return model.WaitingForItem
	}
}

// Settle is the state after a committed change to the stand. Ready and
// ReceivedCost survive only while a complete pair remains.
func Settle(cur model.TraderState, c Contents) model.TraderState {
	switch {
	case c.HasUnpricedProduct():
		return model.WaitingForCost
	case !c.HasAnyCompletePair():
		return model.WaitingForItem
	case cur == model.Ready || cur == model.ReceivedCost:
		return cur
	default:
		return model.WaitingForItem
	}
}

// CanAddProduct gates an owner placing a new product on the stand.
func CanAddProduct(t *model.Trader) error {
	switch t.State {
	case model.WaitingForItem, model.ReceivedCost:
		return nil
	case model.Ready:
		return model.Validation(model.Disabled, "Close your shop before adding items.")
	default:
		return model.Validation(model.CannotDo, `Set a price with ".market addcost (itemName) (amount)" before adding another item.`)
	}
}

// ProductAdded records a product placed by the owner.
func ProductAdded(t *model.Trader) {
	t.SetState(model.WaitingForCost)
}

// CanPrice gates attaching a price to the unpriced product.
func CanPrice(t *model.Trader, c Contents) (int, error) {
	if t.State == model.Ready {
		return -1, model.Validation(model.Disabled, "Close your shop before changing prices.")
	}
	if !c.HasUnpricedProduct() {
		return -1, model.Validation(model.CannotDo, "There's no item waiting for a price.")
	}
	return c.Unpriced[0], nil
}

// PriceAttached moves WaitingForCost to ReceivedCost once the cost item is in.
func PriceAttached(t *model.Trader, c Contents) {
	t.SetState(model.ReceivedCost)
	if c.HasUnpricedProduct() {
		t.SetState(model.WaitingForCost)
	}
}

// Open puts the trader in business. It never succeeds while an unpriced
// product exists or no complete pair does.
func Open(t *model.Trader, c Contents) error {
	switch {
	case t.State == model.Ready:
		return model.Validation(model.AlreadyAssigned, "Your shop is already open.")
	case c.HasUnpricedProduct():
		return model.Trade(model.NoPriceSet, "Set a price for your item before opening the shop.")
	case !c.HasAnyCompletePair():
		return model.Validation(model.CannotDo, "Add an item to your shop first!")
	}
	t.SetState(model.Ready)
	return nil
}

// Close takes the trader out of business so the owner can edit it.
func Close(t *model.Trader) error {
	switch t.State {
	case model.WaitingForItem, model.WaitingForCost:
		return model.Validation(model.AlreadyAssigned, "Your shop is already closed.")
	}
	t.SetState(model.WaitingForItem)
	return nil
}
