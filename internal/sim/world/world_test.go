package world

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"plotbazaar.io/internal/logging"
	"plotbazaar.io/internal/persistence/snapshot"
	"plotbazaar.io/internal/protocol"
	"plotbazaar.io/internal/sim/catalogs"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/tuning"
)

func TestJoinHandsOutStarterItemsOnce(t *testing.T) {
	f := newFixture(t, func(c *WorldConfig) {
		c.StarterItems = []model.Item{{ID: "coin", Amount: 100}}
	})
	r := f.join("ada")
	if r.Code != "" || r.Welcome.PlayerID != "ada" || r.Welcome.Inventory == "" {
		t.Fatalf("welcome=%+v code=%s", r.Welcome, r.Code)
	}
	if got := f.w.DebugCount(f.inv("ada"), "coin"); got != 100 {
		t.Fatalf("coins=%d want 100", got)
	}
	if dup := f.join("ada"); dup.Code != protocol.ErrConflict {
		t.Fatalf("second session code=%q want %s", dup.Code, protocol.ErrConflict)
	}

	f.leave("ada")
	if back := f.join("ada"); back.Code != "" || back.Welcome.Inventory != r.Welcome.Inventory {
		t.Fatalf("returning player got %+v", back)
	}
	if got := f.w.DebugCount(f.inv("ada"), "coin"); got != 100 {
		t.Fatalf("coins after rejoin=%d want 100", got)
	}
}

func TestPurchaseEndToEnd(t *testing.T) {
	f := newFixture(t)
	pos := model.Vec3{X: 10}
	tr := f.shop("seller", pos, "iron_sword", 250)
	if tr.State != model.Ready || tr.Name != "seller's Shop" {
		t.Fatalf("trader state=%s name=%q", tr.State, tr.Name)
	}

	f.join("buyer")
	f.give("buyer", "coin", 1000)
	f.at("buyer", pos)
	r := f.mutate("buyer", protocol.MutateMsg{Kind: "move", From: string(tr.Stand), FromSlot: slot(0)})
	if !r.OK || r.Status != string(model.StatusDone) {
		t.Fatalf("purchase result=%+v", r)
	}
	if got := f.w.DebugCount(f.inv("buyer"), "coin"); got != 750 {
		t.Fatalf("buyer coins=%d want 750", got)
	}
	if got := f.w.DebugCount(f.inv("buyer"), "iron_sword"); got != 1 {
		t.Fatalf("buyer swords=%d want 1", got)
	}
	if got := f.w.DebugCount(tr.Storage, "coin"); got != 250 {
		t.Fatalf("storage coins=%d want 250", got)
	}
	if len(f.log.receipts) != 1 || f.log.receipts[0].CostAmount != 250 || f.log.receipts[0].Buyer != "buyer" {
		t.Fatalf("receipts=%+v", f.log.receipts)
	}
	if !strings.Contains(strings.Join(f.log.actions(), ","), "PURCHASE") {
		t.Fatalf("audit actions=%v", f.log.actions())
	}
	after, _ := f.w.DebugTrader("seller")
	if after.State == model.Ready {
		t.Fatalf("sold-out shop still Ready")
	}
	f.check()
}

func TestPurchaseWithoutFundsLeavesEverything(t *testing.T) {
	f := newFixture(t)
	pos := model.Vec3{X: 10}
	tr := f.shop("seller", pos, "bow", 50)
	f.join("buyer")
	f.give("buyer", "coin", 10)
	f.at("buyer", pos)

	r := f.mutate("buyer", protocol.MutateMsg{Kind: "move", From: string(tr.Stand), FromSlot: slot(0)})
	if r.OK || r.Code != protocol.ErrNoFunds {
		t.Fatalf("result=%+v", r)
	}
	if got := f.w.DebugCount(f.inv("buyer"), "coin"); got != 10 {
		t.Fatalf("buyer coins=%d want 10", got)
	}
	if it, ok := f.w.DebugItemAt(tr.Stand, 0); !ok || it.ID != "bow" {
		t.Fatalf("product gone: %+v", it)
	}
	if len(f.log.receipts) != 0 {
		t.Fatalf("unexpected receipt")
	}
}

func TestAccessRules(t *testing.T) {
	f := newFixture(t)
	pos := model.Vec3{X: 10}
	tr := f.shop("seller", pos, "bread", 5)
	f.join("thief")
	f.give("thief", "coin", 100)

	r := f.mutate("thief", protocol.MutateMsg{Kind: "move", From: string(tr.Stand), FromSlot: slot(0)})
	if r.OK || r.Code != protocol.ErrInvalidTarget {
		t.Fatalf("far purchase result=%+v", r)
	}
	r = f.mutate("thief", protocol.MutateMsg{Kind: "move", From: string(f.inv("seller")), FromSlot: slot(0)})
	if r.OK || r.Code != protocol.ErrNoPermission {
		t.Fatalf("foreign inventory result=%+v", r)
	}
	f.at("thief", pos)
	r = f.mutate("thief", protocol.MutateMsg{Kind: "move", From: string(tr.Storage), FromSlot: slot(0)})
	if r.OK || r.Code == "" {
		t.Fatalf("storage raid result=%+v", r)
	}
	r = f.mutate("thief", protocol.MutateMsg{Kind: "teleport"})
	if r.OK || r.Code != protocol.ErrBadRequest {
		t.Fatalf("unknown kind result=%+v", r)
	}
}

func TestOwnerGestures(t *testing.T) {
	f := newFixture(t)
	tr := f.shop("seller", model.Vec3{X: 10}, "apple", 3)

	r := f.mutate("seller", protocol.MutateMsg{Kind: "sort", From: string(tr.Stand)})
	if !r.OK || r.Status != string(model.StatusClose) {
		t.Fatalf("sort gesture=%+v", r)
	}
	if got, _ := f.w.DebugTrader("seller"); got.State == model.Ready {
		t.Fatalf("shop still open after sort gesture")
	}
	r = f.mutate("seller", protocol.MutateMsg{Kind: "move_all", From: string(tr.Stand)})
	if !r.OK || r.Status != string(model.StatusOpen) {
		t.Fatalf("move_all gesture=%+v", r)
	}
	if got, _ := f.w.DebugTrader("seller"); got.State != model.Ready {
		t.Fatalf("state=%s want Ready", got.State)
	}
	acts := strings.Join(f.log.actions(), ",")
	if !strings.Contains(acts, "CLOSE") || !strings.Contains(acts, "OPEN") {
		t.Fatalf("audit actions=%s", acts)
	}
}

func TestAddCostResolvesItemNames(t *testing.T) {
	f := newFixture(t)
	pos := model.Vec3{X: 10}
	if _, err := f.w.adminCreatePlot(0, pos, false); err != nil {
		t.Fatalf("create plot: %v", err)
	}
	f.join("seller")
	f.at("seller", pos)
	if r := f.cmd("seller", "claim"); !r.OK {
		t.Fatalf("claim: %+v", r)
	}
	f.give("seller", "shield", 1)
	tr, _ := f.w.DebugTrader("seller")
	if r := f.mutate("seller", protocol.MutateMsg{Kind: "move", FromSlot: slot(0), To: string(tr.Stand), ToSlot: slot(3)}); !r.OK {
		t.Fatalf("stock: %+v", r)
	}

	cases := []struct {
		args []string
		code string
	}{
		{[]string{"ingot", "5"}, protocol.ErrUnknownItem},
		{[]string{"unobtainium", "5"}, protocol.ErrUnknownItem},
		{[]string{"coin", "many"}, protocol.ErrInvalidPrice},
		{[]string{"coin", "0"}, protocol.ErrInvalidPrice},
		{[]string{"coin", "4001"}, protocol.ErrPriceTooHigh},
		{[]string{"shield", "1"}, protocol.ErrSameItem},
		{[]string{"coin"}, protocol.ErrBadRequest},
	}
	for _, tc := range cases {
		r := f.cmd("seller", "addcost", tc.args...)
		if r.OK || r.Code != tc.code {
			t.Fatalf("addcost %v: result=%+v want %s", tc.args, r, tc.code)
		}
	}
	r := f.cmd("seller", "addcost", "gold", "ingot", "12")
	if !r.OK {
		t.Fatalf("addcost gold ingot: %+v", r)
	}
	if it, ok := f.w.DebugItemAt(tr.Stand, 10); !ok || it.ID != "gold_ingot" || it.Amount != 12 {
		t.Fatalf("cost slot=%+v", it)
	}
	if got, _ := f.w.DebugTrader("seller"); got.State != model.ReceivedCost {
		t.Fatalf("state=%s want ReceivedCost", got.State)
	}
	f.check()
}

func TestCommandsWithoutShop(t *testing.T) {
	f := newFixture(t)
	f.join("ada")
	if r := f.cmd("ada", "open"); r.OK || r.Code != protocol.ErrNoTrader {
		t.Fatalf("open=%+v", r)
	}
	if r := f.cmd("ada", "unclaim"); r.OK || r.Code != protocol.ErrNoTrader {
		t.Fatalf("unclaim=%+v", r)
	}
	if r := f.cmd("ada", "claim"); r.OK || r.Code != protocol.ErrNotInPlot {
		t.Fatalf("claim outside plot=%+v", r)
	}
	if r := f.cmd("ada", "info"); !r.OK || r.Message != "There is no shop here." {
		t.Fatalf("info=%+v", r)
	}
	if r := f.cmd("ada", "items", "potion"); !r.OK || !strings.Contains(r.Message, "potion_small") {
		t.Fatalf("items=%+v", r)
	}
	if r := f.cmd("ada", "dance"); r.OK || r.Code != protocol.ErrBadRequest {
		t.Fatalf("unknown cmd=%+v", r)
	}
}

func TestClaimCostIsCharged(t *testing.T) {
	f := newFixture(t, func(c *WorldConfig) {
		c.Market.AllowPlayerPlots = true
		c.Market.ClaimCost = model.Item{ID: "coin", Amount: 100}
	})
	f.join("ada")
	f.give("ada", "coin", 60)
	if r := f.cmd("ada", "claim"); r.OK || r.Code != protocol.ErrNoFunds {
		t.Fatalf("poor claim=%+v", r)
	}
	f.give("ada", "coin", 60)
	if r := f.cmd("ada", "claim"); !r.OK {
		t.Fatalf("claim=%+v", r)
	}
	if got := f.w.DebugCount(f.inv("ada"), "coin"); got != 20 {
		t.Fatalf("coins=%d want 20", got)
	}
	if n := f.w.market.Plots().Len(); n != 1 {
		t.Fatalf("plots=%d want 1", n)
	}
}

func TestUnclaimNeedsEmptyShop(t *testing.T) {
	f := newFixture(t)
	tr := f.shop("seller", model.Vec3{X: 10}, "wood", 2)
	if r := f.cmd("seller", "unclaim"); r.OK || r.Code != protocol.ErrNotEmpty {
		t.Fatalf("unclaim stocked=%+v", r)
	}
	if r := f.cmd("seller", "close"); !r.OK {
		t.Fatalf("close=%+v", r)
	}
	r := f.mutate("seller", protocol.MutateMsg{Kind: "move", From: string(tr.Stand), FromSlot: slot(0)})
	if !r.OK {
		t.Fatalf("take back=%+v", r)
	}
	if _, ok := f.w.DebugItemAt(tr.Stand, 7); ok {
		t.Fatalf("price tag left behind")
	}
	if r := f.cmd("seller", "unclaim"); !r.OK {
		t.Fatalf("unclaim=%+v", r)
	}
	if _, ok := f.w.DebugTrader("seller"); ok {
		t.Fatalf("trader survived unclaim")
	}
	f.check()
}

func TestAdminOperations(t *testing.T) {
	f := newFixture(t)
	tr := f.shop("seller", model.Vec3{X: 10}, "arrow", 1)

	if _, err := f.w.adminCreatePlot(0, model.Vec3{X: 11}, false); !errors.Is(err, model.ErrAlreadyOccupied) {
		t.Fatalf("create inside plot err=%v", err)
	}
	if _, err := f.w.adminCreatePlot(0, model.Vec3{X: 13}, false); !errors.Is(err, model.ErrWouldOverlap) {
		t.Fatalf("create overlapping err=%v", err)
	}
	empty, err := f.w.adminCreatePlot(0, model.Vec3{X: 30}, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if empty.Ghost == "" {
		t.Fatalf("empty plot has no ghost")
	}
	rot, err := f.w.adminRotatePlot(0, model.PlotID(empty.ID))
	if err != nil || rot.Rotation != 90 {
		t.Fatalf("rotate=%+v err=%v", rot, err)
	}
	moved, err := f.w.adminMovePlot(0, model.PlotID(empty.ID), model.Vec3{X: 40.2})
	if err != nil || moved.Pos[0] != 40 {
		t.Fatalf("move=%+v err=%v", moved, err)
	}

	if err := f.w.adminRemovePlot(0, tr.PlotID, false); !errors.Is(err, model.ErrNotEmpty) {
		t.Fatalf("remove occupied err=%v", err)
	}
	if n, err := f.w.adminClearEmptyPlots(0); err != nil || n != 1 {
		t.Fatalf("clear empty plots n=%d err=%v", n, err)
	}
	views := f.w.traderViews()
	if len(views) != 1 || len(views[0].Listing) != 1 || views[0].Listing[0] != "1x Arrow for 1x Coin" {
		t.Fatalf("trader views=%+v", views)
	}
	if err := f.w.adminRemoveTrader(0, tr.ID); err != nil {
		t.Fatalf("remove trader: %v", err)
	}
	if n := len(f.w.plotViews()); n != 1 {
		t.Fatalf("plots=%d want 1", n)
	}
	res, err := f.w.adminClearAll(0)
	if err != nil || res.Plots != 1 || res.Traders != 0 {
		t.Fatalf("clear all=%+v err=%v", res, err)
	}
	f.check()
}

func TestSweepRemovesInactiveTraders(t *testing.T) {
	f := newFixture(t)
	f.shop("seller", model.Vec3{X: 10}, "stone", 1)
	f.leave("seller")

	f.clock = f.clock.Add(29 * 24 * time.Hour)
	if n, err := f.w.sweep(1); err != nil || n != 0 {
		t.Fatalf("early sweep n=%d err=%v", n, err)
	}
	f.clock = f.clock.Add(2 * 24 * time.Hour)
	if n, err := f.w.sweep(2); err != nil || n != 1 {
		t.Fatalf("sweep n=%d err=%v", n, err)
	}
	if _, ok := f.w.DebugTrader("seller"); ok {
		t.Fatalf("inactive trader kept")
	}
	f.check()
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := newFixture(t)
	pos := model.Vec3{X: 10}
	tr := f.shop("seller", pos, "gem", 40)
	f.join("buyer")
	f.give("buyer", "coin", 5)

	snap := f.w.ExportSnapshot(f.w.CurrentTick())
	if snap.Header.Plots != 1 || snap.Header.Traders != 1 || len(snap.Players) != 2 {
		t.Fatalf("header=%+v players=%d", snap.Header, len(snap.Players))
	}

	g := newFixture(t)
	rep, err := g.w.ImportSnapshot(snap)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if rep.Traders != 1 || rep.DroppedTraders != 0 {
		t.Fatalf("report=%+v", rep)
	}
	got, ok := g.w.DebugTrader("seller")
	if !ok || got.State != model.Ready || got.Stand != tr.Stand {
		t.Fatalf("restored trader=%+v ok=%v", got, ok)
	}
	if g.w.CurrentTick() != snap.Header.Tick+1 {
		t.Fatalf("tick=%d", g.w.CurrentTick())
	}
	if r := g.join("buyer"); r.Code != "" || g.w.DebugCount(g.inv("buyer"), "coin") != 5 {
		t.Fatalf("buyer lost inventory: %+v", r)
	}
	g.check()

	bad := snap
	bad.Header.Version = snapshot.Version + 1
	if _, err := g.w.ImportSnapshot(bad); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestRunServesAdminRequests(t *testing.T) {
	w, err := New(testConfig(), catalogs.Defaults(), logging.NewTest())
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()

	p, err := w.RequestCreatePlot(callCtx, model.Vec3{X: 3.2, Z: -1.1}, false)
	if err != nil {
		t.Fatalf("create plot: %v", err)
	}
	if p.Pos != [3]float64{3, 0, -1} {
		t.Fatalf("plot not snapped: %v", p.Pos)
	}
	plots, err := w.RequestPlots(callCtx)
	if err != nil || len(plots) != 1 {
		t.Fatalf("plots=%v err=%v", plots, err)
	}
	st, err := w.RequestState(callCtx)
	if err != nil || st.Plots != 1 || st.EmptyPlots != 1 || st.Ghosts != 1 {
		t.Fatalf("state=%+v err=%v", st, err)
	}
	if err := w.RequestRemovePlot(callCtx, "plot_missing", false); !errors.Is(err, model.ErrUnknownPlot) {
		t.Fatalf("remove missing err=%v", err)
	}
	if _, err := w.RequestSnapshot(callCtx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	select {
	case s := <-sink:
		if len(s.Plots) != 1 {
			t.Fatalf("snapshot plots=%d", len(s.Plots))
		}
	case <-callCtx.Done():
		t.Fatalf("snapshot never reached the sink")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("world.Run did not exit")
	}
}

func TestConfigFromTuning(t *testing.T) {
	tu := tuning.Defaults()
	tu.Market.ClaimCost = tuning.ItemCount{Item: "coin", Count: 50}
	tu.Market.StarterItems = []tuning.ItemCount{{Item: "coin", Count: 10}}
	cfg := ConfigFromTuning("w1", tu)
	if cfg.Market.ClaimCost != (model.Item{ID: "coin", Amount: 50}) {
		t.Fatalf("claim cost=%+v", cfg.Market.ClaimCost)
	}
	if cfg.Market.PlotRadius != 2.3 || cfg.InventorySlots != 35 || len(cfg.StarterItems) != 1 {
		t.Fatalf("cfg=%+v", cfg)
	}
}
