// Package validate decides, for every inventory mutation touching a trader's
// stand or storage, whether it is an owner edit, a purchase, or illegal.
package validate

import (
	"github.com/rs/zerolog"

	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/slots"
	"plotbazaar.io/internal/sim/market/trade"
	"plotbazaar.io/internal/sim/market/traders"
)

// Containers is what the validator reads and settles on the stand.
type Containers interface {
	ItemAt(c model.ContainerID, slot int) (model.Item, bool)
	SetItemAt(c model.ContainerID, slot int, it model.Item) error
	FirstEmpty(c model.ContainerID, candidates []int) (int, bool)
	LockAmounts(c model.ContainerID)
	// Tracked reports whether a container is tagged as a stand or storage,
	// registered or not.
	Tracked(c model.ContainerID) bool
}

const setPricePrompt = `Use ".market addcost (itemName) (amount)" to set the price.`

type Validator struct {
	traders *traders.Registry
	boxes   Containers
	engine  *trade.Engine
	log     zerolog.Logger
}

func New(reg *traders.Registry, boxes Containers, engine *trade.Engine, log zerolog.Logger) *Validator {
	return &Validator{traders: reg, boxes: boxes, engine: engine, log: log}
}

type side struct {
	id     model.ContainerID
	trader *model.Trader
	role   traders.Role
	tagged bool
}

func (v *Validator) side(c model.ContainerID) side {
	if c == "" {
		return side{}
	}
	t, role := v.traders.Resolve(c)
	return side{id: c, trader: t, role: role, tagged: t != nil || v.boxes.Tracked(c)}
}

// Handle classifies ev. It never mutates containers except when it carries out
// a purchase or a shop gesture itself, in which case Apply is false.
func (v *Validator) Handle(ev Event) Verdict {
	from, to := v.side(ev.From), v.side(ev.To)
	if !from.tagged && !to.tagged {
		return Verdict{Action: ActionPassThrough, Apply: true, ToSlot: ev.ToSlot}
	}
	for _, s := range []side{from, to} {
		if s.tagged && s.trader == nil {
			v.log.Error().
				Str("container", string(s.id)).
				Str("actor", string(ev.Actor)).
				Str("kind", ev.Kind.String()).
				Msg("tracked container has no registered trader")
			return reject(nil, model.Validation(model.Internal, "Something went wrong... contact an administrator."))
		}
	}
	own := func(s side) bool { return s.trader != nil && s.trader.Owner == ev.Actor }

	switch ev.Kind {
	case KindMove:
		return v.move(ev, from, to, own)
	case KindMoveAll:
		switch {
		case own(from) && from.role == traders.RoleStorage && !to.tagged:
			return Verdict{Action: ActionWithdraw, Apply: true, Trader: from.trader, ToSlot: -1}
		case own(from) && from.role == traders.RoleStand:
			return v.gestureOpen(from.trader)
		}
		return reject(pick(from, to), model.Validation(model.CannotMove, ""))
	case KindDrop:
		if own(from) && from.role == traders.RoleStorage {
			return Verdict{Action: ActionWithdraw, Apply: true, Trader: from.trader, ToSlot: -1}
		}
		return reject(pick(from, to), model.Validation(model.CannotMove, ""))
	case KindSort:
		target := pick(from, to)
		if target != nil && target.Owner == ev.Actor {
			return v.gestureClose(target)
		}
		return reject(target, model.Validation(model.CannotDo, ""))
	default:
		// split, merge, equip, unequip and sort-all have no meaning against
		// the fixed slot layout.
		return reject(pick(from, to), model.Validation(model.CannotDo, ""))
	}
}

func (v *Validator) move(ev Event, from, to side, own func(side) bool) Verdict {
	if own(from) && from.role == traders.RoleStorage && !to.tagged {
		return Verdict{Action: ActionWithdraw, Apply: true, Trader: from.trader, ToSlot: ev.ToSlot}
	}
	if ev.From == ev.To {
		return reject(from.trader, model.Validation(model.CannotMove, ""))
	}

	if from.trader != nil && from.role == traders.RoleStand && !own(from) {
		if to.tagged {
			return reject(from.trader, model.Validation(model.CannotMove, ""))
		}
		return v.purchase(ev, from.trader)
	}

	if own(to) && to.role == traders.RoleStand && (!from.tagged || own(from)) {
		return v.addProduct(ev, to.trader)
	}
	if own(from) && from.role == traders.RoleStand && (!to.tagged || (own(to) && to.role == traders.RoleStorage)) {
		return v.removeProduct(ev, from.trader)
	}
	return reject(pick(from, to), model.Validation(model.CannotDo, ""))
}

func (v *Validator) purchase(ev Event, t *model.Trader) Verdict {
	r, err := v.engine.Buy(t, trade.Buy{
		Buyer:       ev.Actor,
		BuyerName:   ev.ActorName,
		Wallet:      ev.Inventory,
		Dest:        ev.To,
		DestSlot:    ev.ToSlot,
		ProductSlot: ev.FromSlot,
	})
	if err != nil {
		if code, _ := model.CodeOf(err); code == model.Internal {
			v.log.Error().Err(err).Str("trader", string(t.ID)).Msg("purchase failed after checks")
		}
		return reject(t, err)
	}
	return Verdict{Action: ActionPurchase, Apply: false, Trader: t, ToSlot: -1, Status: model.StatusDone, Receipt: &r}
}

func (v *Validator) addProduct(ev Event, t *model.Trader) Verdict {
	if err := traders.CanAddProduct(t); err != nil {
		return reject(t, err)
	}
	if _, ok := v.boxes.ItemAt(ev.From, ev.FromSlot); !ok {
		return reject(t, model.Validation(model.CannotDo, ""))
	}
	slot := ev.ToSlot
	if slot < 0 {
		free, ok := v.boxes.FirstEmpty(t.Stand, slots.Products())
		if !ok {
			return reject(t, model.Validation(model.CannotDo, "Your shop is full."))
		}
		slot = free
	}
	if !slots.IsProduct(slot) {
		return reject(t, model.Validation(model.CannotMove, ""))
	}
	if _, taken := v.boxes.ItemAt(t.Stand, slot); taken {
		return reject(t, model.Validation(model.CannotMove, ""))
	}
	return Verdict{Action: ActionAddProduct, Apply: true, Trader: t, ToSlot: slot, Status: model.StatusReadyToChange, Notice: setPricePrompt}
}

func (v *Validator) removeProduct(ev Event, t *model.Trader) Verdict {
	if !slots.IsProduct(ev.FromSlot) {
		return reject(t, model.Validation(model.CannotDo, ""))
	}
	if _, ok := v.boxes.ItemAt(t.Stand, ev.FromSlot); !ok {
		return reject(t, model.Validation(model.CannotDo, ""))
	}
	return Verdict{Action: ActionRemoveProduct, Apply: true, Trader: t, ToSlot: ev.ToSlot, Status: model.StatusDone}
}

func (v *Validator) gestureOpen(t *model.Trader) Verdict {
	if err := traders.Open(t, traders.Inspect(v.boxes, t.Stand)); err != nil {
		return Verdict{Action: ActionGesture, Trader: t, ToSlot: -1, Err: err, Status: model.StatusFor(err), Notice: model.Message(err)}
	}
	return Verdict{Action: ActionGesture, Trader: t, ToSlot: -1, Status: model.StatusOpen}
}

func (v *Validator) gestureClose(t *model.Trader) Verdict {
	if err := traders.Close(t); err != nil {
		return Verdict{Action: ActionGesture, Trader: t, ToSlot: -1, Err: err, Status: model.StatusFor(err)}
	}
	return Verdict{Action: ActionGesture, Trader: t, ToSlot: -1, Status: model.StatusClose}
}

// Commit settles the trader after the host applied an accepted mutation.
func (v *Validator) Commit(verdict Verdict, ev Event) {
	t := verdict.Trader
	if t == nil {
		return
	}
	switch verdict.Action {
	case ActionAddProduct:
		traders.ProductAdded(t)
		v.boxes.LockAmounts(t.Stand)
	case ActionRemoveProduct:
		if cost, ok := slots.CostFor(ev.FromSlot); ok {
			// Price tags belong to the stand, never to the owner.
			_ = v.boxes.SetItemAt(t.Stand, cost, model.Item{})
		}
		t.SetState(traders.Settle(t.State, traders.Inspect(v.boxes, t.Stand)))
	}
}

func reject(t *model.Trader, err error) Verdict {
	return Verdict{Action: ActionReject, Trader: t, ToSlot: -1, Err: err, Status: model.StatusFor(err), Notice: model.Message(err)}
}

func pick(a, b side) *model.Trader {
	if a.trader != nil {
		return a.trader
	}
	return b.trader
}
