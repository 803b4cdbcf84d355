// Package trade executes purchases against a trader's stand.
package trade

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/slots"
	"plotbazaar.io/internal/sim/market/traders"
)

// Containers is the slice of the container store a purchase touches.
type Containers interface {
	ItemAt(c model.ContainerID, slot int) (model.Item, bool)
	CountOf(c model.ContainerID, itemID string) int
	CanAdd(c model.ContainerID, itemID string, amount int) bool
	CanPlace(c model.ContainerID, slot int, it model.Item) bool
	AddAmount(c model.ContainerID, itemID string, amount int) error
	RemoveAmount(c model.ContainerID, itemID string, amount int, slot int) error
	Place(c model.ContainerID, slot int, it model.Item) (int, error)
	SetItemAt(c model.ContainerID, slot int, it model.Item) error
}

// Notifier delivers a text line to a player.
type Notifier interface {
	Notify(p model.PlayerID, text string)
}

// Names resolves an item id to its display name.
type Names func(itemID string) string

type Buy struct {
	Buyer       model.PlayerID
	BuyerName   string
	Wallet      model.ContainerID // where the buyer pays from
	Dest        model.ContainerID // where the product goes
	DestSlot    int
	ProductSlot int
}

type Receipt struct {
	ID          string         `json:"id"`
	Trader      model.TraderID `json:"trader_id"`
	Seller      model.PlayerID `json:"seller"`
	Buyer       model.PlayerID `json:"buyer"`
	ProductSlot int            `json:"product_slot"`
	Product     model.Item     `json:"product"`
	Cost        model.Item     `json:"cost"`
	StateAfter  string         `json:"state_after"`
	At          time.Time      `json:"at"`
}

type Engine struct {
	boxes  Containers
	notify Notifier
	names  Names
	now    func() time.Time
}

func NewEngine(boxes Containers, notify Notifier, names Names) *Engine {
	if names == nil {
		names = func(id string) string { return id }
	}
	return &Engine{boxes: boxes, notify: notify, names: names, now: time.Now}
}

// Buy exchanges the cost of productSlot for its product. Every check runs
// before the first write, so a failed purchase leaves every container as it
// was.
func (e *Engine) Buy(t *model.Trader, req Buy) (Receipt, error) {
	cost, ok := slots.CostFor(req.ProductSlot)
	if !ok {
		return Receipt{}, model.Trade(model.NotForSale, "This item isn't for sale.")
	}
	if t.State != model.Ready {
		return Receipt{}, model.Trade(model.Closed, "%s is closed.", t.Name)
	}
	product, ok := e.boxes.ItemAt(t.Stand, req.ProductSlot)
	if !ok {
		return Receipt{}, model.Trade(model.NotFound, "Couldn't find that item in the shop.")
	}
	price, ok := e.boxes.ItemAt(t.Stand, cost)
	if !ok {
		return Receipt{}, model.Trade(model.NoPriceSet, "This item doesn't have a price set.")
	}
	if e.boxes.CountOf(req.Wallet, price.ID) < price.Amount {
		return Receipt{}, model.Trade(model.InsufficientFunds, "You need %s to buy this item.", e.describe(price))
	}
	goods := model.Item{ID: product.ID, Amount: product.Amount}
	if !e.boxes.CanPlace(req.Dest, req.DestSlot, goods) {
		return Receipt{}, model.Trade(model.NoRoom, "You don't have room for %s.", e.describe(goods))
	}
	if !e.boxes.CanAdd(t.Storage, price.ID, price.Amount) {
		return Receipt{}, model.Trade(model.NoRoom, "This shop's storage is full.")
	}

	var undo []func()
	rollback := func(err error) (Receipt, error) {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return Receipt{}, model.Validation(model.Internal, fmt.Sprintf("purchase rolled back: %v", err))
	}
	if err := e.boxes.RemoveAmount(req.Wallet, price.ID, price.Amount, -1); err != nil {
		return rollback(err)
	}
	undo = append(undo, func() { _ = e.boxes.AddAmount(req.Wallet, price.ID, price.Amount) })
	if err := e.boxes.AddAmount(t.Storage, price.ID, price.Amount); err != nil {
		return rollback(err)
	}
	undo = append(undo, func() { _ = e.boxes.RemoveAmount(t.Storage, price.ID, price.Amount, -1) })
	if err := e.boxes.SetItemAt(t.Stand, cost, model.Item{}); err != nil {
		return rollback(err)
	}
	undo = append(undo, func() { _ = e.boxes.SetItemAt(t.Stand, cost, price) })
	if err := e.boxes.SetItemAt(t.Stand, req.ProductSlot, model.Item{}); err != nil {
		return rollback(err)
	}
	undo = append(undo, func() { _ = e.boxes.SetItemAt(t.Stand, req.ProductSlot, product) })
	if _, err := e.boxes.Place(req.Dest, req.DestSlot, goods); err != nil {
		return rollback(err)
	}

	t.SetState(traders.Settle(t.State, traders.Inspect(e.boxes, t.Stand)))

	r := Receipt{
		ID:          uuid.NewString(),
		Trader:      t.ID,
		Seller:      t.Owner,
		Buyer:       req.Buyer,
		ProductSlot: req.ProductSlot,
		Product:     goods,
		Cost:        model.Item{ID: price.ID, Amount: price.Amount},
		StateAfter:  t.State.String(),
		At:          e.now().UTC(),
	}
	if e.notify != nil {
		e.notify.Notify(req.Buyer, fmt.Sprintf("Successfully bought %s for %s!", e.describe(goods), e.describe(r.Cost)))
		e.notify.Notify(t.Owner, fmt.Sprintf("%s bought %s from your shop for %s.", req.BuyerName, e.describe(goods), e.describe(r.Cost)))
	}
	return r, nil
}

func (e *Engine) describe(it model.Item) string {
	return humanize.Comma(int64(it.Amount)) + "x " + e.names(it.ID)
}
