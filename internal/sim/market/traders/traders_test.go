package traders

import (
	"errors"
	"testing"

	"plotbazaar.io/internal/sim/market/model"
)

type grid map[int]model.Item

func (g grid) ItemAt(_ model.ContainerID, slot int) (model.Item, bool) {
	it, ok := g[slot]
	return it, ok
}

func newTrader(owner string) *model.Trader {
	t := &model.Trader{
		ID:        model.TraderID("t_" + owner),
		Owner:     model.PlayerID(owner),
		OwnerName: owner,
		Stand:     model.ContainerID(owner + "_stand"),
		Storage:   model.ContainerID(owner + "_storage"),
		Host:      model.ActorID(owner + "_host"),
	}
	t.SetState(model.WaitingForItem)
	return t
}

func TestRegistryIndexesTogether(t *testing.T) {
	r := NewRegistry()
	a := newTrader("ana")
	if err := r.Add(a); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.Add(newTrader("ana")); !errors.Is(err, model.ErrAlreadyOwnsTrader) {
		t.Fatalf("expected AlreadyOwnsTrader, got %v", err)
	}
	dup := newTrader("bo")
	dup.Storage = a.Stand
	if err := r.Add(dup); !errors.Is(err, model.ErrInternal) {
		t.Fatalf("expected Internal for shared container, got %v", err)
	}
	if got, role := r.Resolve(a.Stand); got != a || role != RoleStand {
		t.Fatalf("resolve stand=%v,%v", got, role)
	}
	if got, role := r.Resolve(a.Storage); got != a || role != RoleStorage {
		t.Fatalf("resolve storage=%v,%v", got, role)
	}
	if got, ok := r.ByHost(a.Host); !ok || got != a {
		t.Fatalf("byHost")
	}
	if err := r.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
	if _, ok := r.Remove(a.ID); !ok {
		t.Fatalf("remove")
	}
	if _, role := r.Resolve(a.Stand); role != RoleNone {
		t.Fatalf("stand still resolves after remove")
	}
	if _, ok := r.ByOwner(a.Owner); ok {
		t.Fatalf("owner still indexed")
	}
	if err := r.Check(); err != nil || r.Len() != 0 {
		t.Fatalf("check after remove: %v len=%d", err, r.Len())
	}
}

func TestInspectClassifiesSlots(t *testing.T) {
	g := grid{
		0:  {ID: "sword", Amount: 1},
		7:  {ID: "coin", Amount: 10},
		1:  {ID: "axe", Amount: 1},
		29: {ID: "coin", Amount: 3},
		14: {ID: "blocked", Amount: 1},
	}
	c := Inspect(g, "s")
	if len(c.Pairs) != 1 || c.Pairs[0] != 0 {
		t.Fatalf("pairs=%v", c.Pairs)
	}
	if len(c.Unpriced) != 1 || c.Unpriced[0] != 1 {
		t.Fatalf("unpriced=%v", c.Unpriced)
	}
	if len(c.Orphans) != 1 || c.Orphans[0] != 29 {
		t.Fatalf("orphans=%v", c.Orphans)
	}
	if e := Inspect(grid{}, "s"); len(e.Pairs)+len(e.Unpriced)+len(e.Orphans) != 0 {
		t.Fatalf("empty stand classified as %+v", e)
	}
}

func TestDerive(t *testing.T) {
	cases := []struct {
		name string
		g    grid
		want model.TraderState
	}{
		{"empty", grid{}, model.WaitingForItem},
		{"pair", grid{0: {ID: "sword", Amount: 1}, 7: {ID: "coin", Amount: 10}}, model.Ready},
		{"unpriced wins", grid{0: {ID: "sword", Amount: 1}, 7: {ID: "coin", Amount: 10}, 21: {ID: "axe", Amount: 1}}, model.WaitingForCost},
		{"orphan only", grid{8: {ID: "coin", Amount: 1}}, model.WaitingForItem},
	}
	for _, tc := range cases {
		if got := Derive(Inspect(tc.g, "s")); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestOpenGuard(t *testing.T) {
	tr := newTrader("ana")
	g := grid{0: {ID: "sword", Amount: 1}}
	ProductAdded(tr)
	err := Open(tr, Inspect(g, tr.Stand))
	if !errors.Is(err, model.ErrNoPriceSet) || tr.State != model.WaitingForCost {
		t.Fatalf("open unpriced: err=%v state=%v", err, tr.State)
	}
	g[7] = model.Item{ID: "coin", Amount: 10}
	PriceAttached(tr, Inspect(g, tr.Stand))
	if tr.State != model.ReceivedCost {
		t.Fatalf("state after price=%v", tr.State)
	}
	if err := Open(tr, Inspect(g, tr.Stand)); err != nil || tr.State != model.Ready {
		t.Fatalf("open: %v state=%v", err, tr.State)
	}
	if err := Open(tr, Inspect(g, tr.Stand)); !errors.Is(err, model.ErrAlreadyAssigned) {
		t.Fatalf("reopen: %v", err)
	}
	if err := CanAddProduct(tr); !errors.Is(err, model.ErrDisabled) {
		t.Fatalf("add while ready: %v", err)
	}
}

func TestOpenWithoutProducts(t *testing.T) {
	tr := newTrader("ana")
	if err := Open(tr, Inspect(grid{}, tr.Stand)); !errors.Is(err, model.ErrCannotDo) || tr.State != model.WaitingForItem {
		t.Fatalf("err=%v state=%v", err, tr.State)
	}
}

func TestClose(t *testing.T) {
	tr := newTrader("ana")
	if err := Close(tr); !errors.Is(err, model.ErrAlreadyAssigned) {
		t.Fatalf("close closed: %v", err)
	}
	tr.SetState(model.Ready)
	if err := Close(tr); err != nil || tr.State != model.WaitingForItem {
		t.Fatalf("close ready: %v state=%v", err, tr.State)
	}
	if tr.Name != "ana's Shop (Closed)" {
		t.Fatalf("name=%q", tr.Name)
	}
}

func TestSettle(t *testing.T) {
	pair := Inspect(grid{0: {ID: "sword", Amount: 1}, 7: {ID: "coin", Amount: 1}}, "s")
	none := Inspect(grid{}, "s")
	if Settle(model.Ready, pair) != model.Ready {
		t.Fatalf("ready with pair must stay ready")
	}
	if Settle(model.Ready, none) != model.WaitingForItem {
		t.Fatalf("ready without pair must revert")
	}
	if Settle(model.WaitingForCost, pair) != model.WaitingForItem {
		t.Fatalf("nothing unpriced leaves WaitingForCost")
	}
	unpriced := Inspect(grid{3: {ID: "axe", Amount: 1}}, "s")
	if Settle(model.ReceivedCost, unpriced) != model.WaitingForCost {
		t.Fatalf("unpriced forces WaitingForCost")
	}
}
