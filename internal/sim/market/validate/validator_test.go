package validate

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"plotbazaar.io/internal/sim/market/containers"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/slots"
	"plotbazaar.io/internal/sim/market/trade"
	"plotbazaar.io/internal/sim/market/traders"
)

type fixture struct {
	t      *testing.T
	store  *containers.Store
	reg    *traders.Registry
	v      *Validator
	trader *model.Trader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := containers.NewStore(nil)
	for _, c := range []struct {
		id    model.ContainerID
		kind  containers.Kind
		owner model.PlayerID
	}{
		{"stand", containers.KindStand, "owner"},
		{"storage", containers.KindStorage, "owner"},
		{"owner_inv", containers.KindInventory, "owner"},
		{"buyer_inv", containers.KindInventory, "buyer"},
	} {
		if _, err := st.Create(c.id, c.kind, c.owner, slots.Count); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	reg := traders.NewRegistry()
	tr := &model.Trader{ID: "t1", Owner: "owner", OwnerName: "Owner", Stand: "stand", Storage: "storage", Host: "h1"}
	tr.SetState(model.WaitingForItem)
	if err := reg.Add(tr); err != nil {
		t.Fatalf("add: %v", err)
	}
	v := New(reg, st, trade.NewEngine(st, nil, nil), zerolog.Nop())
	return &fixture{t: t, store: st, reg: reg, v: v, trader: tr}
}

func (f *fixture) put(c model.ContainerID, slot int, id string, n int) {
	f.t.Helper()
	if err := f.store.SetItemAt(c, slot, model.Item{ID: id, Amount: n}); err != nil {
		f.t.Fatalf("put: %v", err)
	}
}

func move(actor model.PlayerID, from model.ContainerID, fromSlot int, to model.ContainerID, toSlot int) Event {
	return Event{Kind: KindMove, Actor: actor, Inventory: model.ContainerID(string(actor) + "_inv"), From: from, FromSlot: fromSlot, To: to, ToSlot: toSlot}
}

func TestPassThroughWhenNothingTracked(t *testing.T) {
	f := newFixture(t)
	v := f.v.Handle(move("buyer", "buyer_inv", 0, "owner_inv", 1))
	if v.Action != ActionPassThrough || !v.Apply || v.Rejected() {
		t.Fatalf("verdict=%+v", v)
	}
}

func TestOwnerWithdrawsFromStorage(t *testing.T) {
	f := newFixture(t)
	f.put("storage", 0, "coin", 10)
	f.trader.SetState(model.Ready)
	v := f.v.Handle(move("owner", "storage", 0, "owner_inv", -1))
	if v.Action != ActionWithdraw || !v.Apply {
		t.Fatalf("verdict=%+v", v)
	}
	v = f.v.Handle(Event{Kind: KindDrop, Actor: "owner", From: "storage", FromSlot: 0, ToSlot: -1})
	if v.Action != ActionWithdraw {
		t.Fatalf("drop from own storage=%+v", v)
	}
	v = f.v.Handle(move("buyer", "storage", 0, "buyer_inv", -1))
	if !errors.Is(v.Err, model.ErrCannotDo) {
		t.Fatalf("stranger withdrew: %+v", v)
	}
}

func TestSelfMoveRejected(t *testing.T) {
	f := newFixture(t)
	f.put("stand", 0, "sword", 1)
	v := f.v.Handle(move("owner", "stand", 0, "stand", 1))
	if !errors.Is(v.Err, model.ErrCannotMove) || v.Apply || v.Status != model.StatusCannotMove {
		t.Fatalf("verdict=%+v", v)
	}
	v = f.v.Handle(move("owner", "storage", 0, "storage", 1))
	if !errors.Is(v.Err, model.ErrCannotMove) {
		t.Fatalf("storage self-move=%+v", v)
	}
}

func TestOwnerAddProduct(t *testing.T) {
	f := newFixture(t)
	f.put("owner_inv", 2, "sword", 1)
	for _, bad := range []int{7, 14, 34} {
		if v := f.v.Handle(move("owner", "owner_inv", 2, "stand", bad)); !errors.Is(v.Err, model.ErrCannotMove) {
			t.Fatalf("slot %d accepted: %+v", bad, v)
		}
	}
	v := f.v.Handle(move("owner", "owner_inv", 2, "stand", -1))
	if v.Action != ActionAddProduct || v.ToSlot != 0 || !v.Apply {
		t.Fatalf("verdict=%+v", v)
	}
	if _, err := f.store.Move("owner_inv", 2, "stand", v.ToSlot, 0); err != nil {
		t.Fatalf("apply: %v", err)
	}
	f.v.Commit(v, move("owner", "owner_inv", 2, "stand", -1))
	if f.trader.State != model.WaitingForCost {
		t.Fatalf("state=%v", f.trader.State)
	}

	f.put("owner_inv", 3, "axe", 1)
	v = f.v.Handle(move("owner", "owner_inv", 3, "stand", 1))
	if !errors.Is(v.Err, model.ErrCannotDo) {
		t.Fatalf("second unpriced product accepted: %+v", v)
	}
	if v := f.v.Handle(move("owner", "owner_inv", 5, "stand", 1)); !errors.Is(v.Err, model.ErrCannotDo) {
		t.Fatalf("empty source accepted: %+v", v)
	}
}

func TestOwnerCannotAddWhileReady(t *testing.T) {
	f := newFixture(t)
	f.put("stand", 0, "sword", 1)
	f.put("stand", 7, "coin", 10)
	f.trader.SetState(model.Ready)
	f.put("owner_inv", 0, "axe", 1)
	v := f.v.Handle(move("owner", "owner_inv", 0, "stand", 1))
	if !errors.Is(v.Err, model.ErrDisabled) || v.Status != model.StatusDisabled {
		t.Fatalf("verdict=%+v", v)
	}
}

func TestOwnerRemoveProductDestroysPriceTag(t *testing.T) {
	f := newFixture(t)
	f.put("stand", 0, "sword", 1)
	f.put("stand", 7, "coin", 10)
	f.put("stand", 21, "axe", 1)
	f.put("stand", 28, "coin", 2)
	f.trader.SetState(model.Ready)

	ev := move("owner", "stand", 0, "owner_inv", -1)
	v := f.v.Handle(ev)
	if v.Action != ActionRemoveProduct || !v.Apply {
		t.Fatalf("verdict=%+v", v)
	}
	f.store.Move("stand", 0, "owner_inv", -1, 0)
	f.v.Commit(v, ev)
	if _, ok := f.store.ItemAt("stand", 7); ok {
		t.Fatalf("price tag survived")
	}
	if f.store.CountOf("owner_inv", "coin") != 0 {
		t.Fatalf("owner received the price tag")
	}
	if f.trader.State != model.Ready {
		t.Fatalf("other pair remains, state=%v", f.trader.State)
	}

	ev = move("owner", "stand", 21, "storage", -1)
	v = f.v.Handle(ev)
	f.store.Move("stand", 21, "storage", -1, 0)
	f.v.Commit(v, ev)
	if f.trader.State != model.WaitingForItem {
		t.Fatalf("last pair removed, state=%v", f.trader.State)
	}

	if v := f.v.Handle(move("owner", "stand", 14, "owner_inv", -1)); !errors.Is(v.Err, model.ErrCannotDo) {
		t.Fatalf("blocked filler removable: %+v", v)
	}
}

func TestPurchaseIntoTrackedContainerRejected(t *testing.T) {
	f := newFixture(t)
	f.put("stand", 0, "sword", 1)
	f.put("stand", 7, "coin", 1)
	f.trader.SetState(model.Ready)
	f.put("buyer_inv", 0, "coin", 5)
	v := f.v.Handle(move("buyer", "stand", 0, "storage", -1))
	if !errors.Is(v.Err, model.ErrCannotMove) {
		t.Fatalf("verdict=%+v", v)
	}
	v = f.v.Handle(move("buyer", "stand", 0, "buyer_inv", -1))
	if v.Action != ActionPurchase || v.Apply || v.Receipt == nil {
		t.Fatalf("purchase=%+v", v)
	}
}

func TestStrangerCannotStock(t *testing.T) {
	f := newFixture(t)
	f.put("buyer_inv", 0, "rock", 1)
	v := f.v.Handle(move("buyer", "buyer_inv", 0, "stand", 0))
	if !errors.Is(v.Err, model.ErrCannotDo) || v.Apply {
		t.Fatalf("verdict=%+v", v)
	}
}

func TestDestructiveKindsRejected(t *testing.T) {
	f := newFixture(t)
	for _, k := range []Kind{KindSplit, KindMerge, KindEquip, KindUnequip, KindSortAll} {
		v := f.v.Handle(Event{Kind: k, Actor: "owner", From: "stand", FromSlot: 0, ToSlot: -1})
		if !errors.Is(v.Err, model.ErrCannotDo) || v.Apply {
			t.Fatalf("%s: verdict=%+v", k, v)
		}
	}
	v := f.v.Handle(Event{Kind: KindDrop, Actor: "owner", From: "stand", FromSlot: 0, ToSlot: -1})
	if !errors.Is(v.Err, model.ErrCannotMove) {
		t.Fatalf("drop from stand=%+v", v)
	}
	v = f.v.Handle(Event{Kind: KindMoveAll, Actor: "buyer", From: "stand", To: "buyer_inv"})
	if !errors.Is(v.Err, model.ErrCannotMove) {
		t.Fatalf("stranger move-all=%+v", v)
	}
}

func TestGestures(t *testing.T) {
	f := newFixture(t)
	f.put("stand", 0, "sword", 1)
	f.put("stand", 7, "coin", 10)
	f.trader.SetState(model.ReceivedCost)

	v := f.v.Handle(Event{Kind: KindMoveAll, Actor: "owner", From: "stand", To: "owner_inv"})
	if v.Action != ActionGesture || v.Apply || v.Status != model.StatusOpen || f.trader.State != model.Ready {
		t.Fatalf("open gesture=%+v state=%v", v, f.trader.State)
	}
	v = f.v.Handle(Event{Kind: KindSort, Actor: "owner", From: "stand"})
	if v.Action != ActionGesture || v.Status != model.StatusClose || f.trader.State != model.WaitingForItem {
		t.Fatalf("close gesture=%+v state=%v", v, f.trader.State)
	}
	v = f.v.Handle(Event{Kind: KindSort, Actor: "owner", From: "stand"})
	if !errors.Is(v.Err, model.ErrAlreadyAssigned) || v.Apply {
		t.Fatalf("second close=%+v", v)
	}
	v = f.v.Handle(Event{Kind: KindSort, Actor: "buyer", From: "stand"})
	if !errors.Is(v.Err, model.ErrCannotDo) {
		t.Fatalf("stranger sort=%+v", v)
	}
}

func TestUnregisteredTrackedContainerIsInternal(t *testing.T) {
	f := newFixture(t)
	if _, err := f.store.Create("lost_stand", containers.KindStand, "ghost", slots.Count); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.put("buyer_inv", 0, "rock", 1)
	v := f.v.Handle(move("buyer", "buyer_inv", 0, "lost_stand", 0))
	if !errors.Is(v.Err, model.ErrInternal) || v.Apply {
		t.Fatalf("verdict=%+v", v)
	}
	if v.Notice != "Something went wrong... contact an administrator." {
		t.Fatalf("notice=%q", v.Notice)
	}
}
