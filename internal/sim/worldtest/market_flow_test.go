package worldtest

import (
	"strings"
	"testing"

	"plotbazaar.io/internal/protocol"
	"plotbazaar.io/internal/sim/market/model"
)

func TestShopLifecycle(t *testing.T) {
	h := NewHarness(t, DefaultConfig(), nil)
	pos := model.Vec3{X: 20, Z: 20}
	h.Plot(pos)
	h.Join("mira")
	tr := h.OpenShop("mira", pos, "arrow", 64, "coin", 30)
	if tr.State != model.Ready {
		t.Fatalf("state=%s want Ready", tr.State)
	}

	stand, ok := h.LastContainer("mira", tr.Stand)
	if !ok {
		t.Fatalf("no stand view sent to owner")
	}
	locked := false
	for _, s := range stand.Slots {
		if s.Slot == 7 && s.Item == "coin" {
			locked = s.Locked
		}
	}
	if !locked {
		t.Fatalf("price tag not locked: %+v", stand.Slots)
	}

	h.Join("oskar")
	h.Give("oskar", "coin", 100)
	h.MoveTo("oskar", model.Vec3{X: 21, Z: 20})
	r := h.Mutate("oskar", protocol.MutateMsg{Kind: "move", From: string(tr.Stand), FromSlot: Slot(0)})
	if !r.OK {
		t.Fatalf("purchase: %s %s", r.Code, r.Message)
	}
	if got := h.Count(h.Inventory("oskar"), "arrow"); got != 64 {
		t.Fatalf("arrows=%d want 64", got)
	}
	if got := h.Count(tr.Storage, "coin"); got != 30 {
		t.Fatalf("storage=%d want 30", got)
	}
	if n := h.Notices("oskar"); len(n) == 0 || !strings.HasPrefix(n[len(n)-1], "Successfully bought 64x Arrow") {
		t.Fatalf("buyer notices=%v", n)
	}
	sold := false
	for _, n := range h.Notices("mira") {
		if strings.Contains(n, "oskar bought 64x Arrow") {
			sold = true
		}
	}
	if !sold {
		t.Fatalf("seller was not told about the sale: %v", h.Notices("mira"))
	}

	// Proceeds go back to the owner.
	r = h.Mutate("mira", protocol.MutateMsg{Kind: "move", From: string(tr.Storage), FromSlot: Slot(0)})
	if !r.OK {
		t.Fatalf("withdraw: %s %s", r.Code, r.Message)
	}
	if got := h.Count(h.Inventory("mira"), "coin"); got != 30 {
		t.Fatalf("seller coins=%d want 30", got)
	}
	h.MustCmd("mira", "unclaim")
	h.Check()
}

func TestBuyingIntoAnotherShopIsRefused(t *testing.T) {
	h := NewHarness(t, DefaultConfig(), nil)
	a, b := model.Vec3{X: 0}, model.Vec3{X: 6}
	h.Plot(a)
	h.Plot(b)
	h.Join("ana")
	h.Join("ben")
	ta := h.OpenShop("ana", a, "bread", 5, "coin", 2)
	tb := h.OpenShop("ben", b, "apple", 5, "coin", 2)

	h.MoveTo("ben", model.Vec3{X: 3})
	r := h.Mutate("ben", protocol.MutateMsg{Kind: "move", From: string(ta.Stand), FromSlot: Slot(0), To: string(tb.Stand), ToSlot: Slot(1)})
	if r.OK || r.Code != protocol.ErrCannotMove {
		t.Fatalf("result=%+v want %s", r, protocol.ErrCannotMove)
	}
	if got := h.Count(ta.Stand, "bread"); got != 5 {
		t.Fatalf("bread left=%d want 5", got)
	}
	h.Check()
}

func TestClosedShopRefusesBuyers(t *testing.T) {
	h := NewHarness(t, DefaultConfig(), nil)
	pos := model.Vec3{X: -8}
	h.Plot(pos)
	h.Join("ana")
	tr := h.OpenShop("ana", pos, "stone", 10, "coin", 1)
	h.MustCmd("ana", "close")

	h.Join("ben")
	h.Give("ben", "coin", 5)
	h.MoveTo("ben", pos)
	r := h.Mutate("ben", protocol.MutateMsg{Kind: "move", From: string(tr.Stand), FromSlot: Slot(0)})
	if r.OK || r.Code != protocol.ErrClosed {
		t.Fatalf("result=%+v want %s", r, protocol.ErrClosed)
	}
	if r.Status != string(model.StatusPrivate) {
		t.Fatalf("status=%q want %s", r.Status, model.StatusPrivate)
	}
}

func TestPlayerPlots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Market.AllowPlayerPlots = true
	h := NewHarness(t, cfg, nil)
	h.Join("ana")
	h.Join("ben")

	h.MoveTo("ana", model.Vec3{X: 50, Z: 50})
	h.MustCmd("ana", "claim")
	h.MoveTo("ben", model.Vec3{X: 53, Z: 50})
	if r := h.Cmd("ben", "claim"); r.OK || r.Code != protocol.ErrOverlap {
		t.Fatalf("overlapping claim=%+v", r)
	}
	h.MoveTo("ben", model.Vec3{X: 50.5, Z: 50})
	if r := h.Cmd("ben", "claim"); r.OK || r.Code != protocol.ErrOccupied {
		t.Fatalf("claim on occupied plot=%+v", r)
	}
	if r := h.Cmd("ana", "claim"); r.OK || r.Code != protocol.ErrAlreadyOwns {
		t.Fatalf("second claim=%+v", r)
	}
	h.Check()
}
