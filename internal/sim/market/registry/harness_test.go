package registry

import (
	"testing"

	"github.com/rs/zerolog"

	"plotbazaar.io/internal/sim/market/containers"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/slots"
	"plotbazaar.io/internal/sim/market/validate"
)

type inbox map[model.PlayerID][]string

func (b inbox) Notify(p model.PlayerID, text string) { b[p] = append(b[p], text) }

type harness struct {
	t     *testing.T
	store *containers.Store
	m     *Market
	inbox inbox
	cfg   Config
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	for _, f := range mutate {
		f(&cfg)
	}
	h := &harness{t: t, store: containers.NewStore(nil), inbox: inbox{}, cfg: cfg}
	h.m = New(cfg, Deps{Boxes: h.store, Notify: h.inbox, Log: zerolog.Nop()})
	return h
}

func (h *harness) player(id string, coins int) model.ContainerID {
	h.t.Helper()
	inv := model.ContainerID(id + "_inv")
	if _, err := h.store.Create(inv, containers.KindInventory, model.PlayerID(id), slots.Count); err != nil {
		h.t.Fatalf("create inventory: %v", err)
	}
	if coins > 0 {
		if err := h.store.AddAmount(inv, "coin", coins); err != nil {
			h.t.Fatalf("give coins: %v", err)
		}
	}
	return inv
}

func (h *harness) plot(x, z float64) *model.Plot {
	h.t.Helper()
	p, err := h.m.CreatePlot(model.Vec3{X: x, Z: z}, false)
	if err != nil {
		h.t.Fatalf("create plot: %v", err)
	}
	return p
}

func (h *harness) claim(id string, p *model.Plot) *model.Trader {
	h.t.Helper()
	tr, err := h.m.Claim(ClaimRequest{Player: model.PlayerID(id), Name: id, Inventory: model.ContainerID(id + "_inv"), Pos: p.Pos})
	if err != nil {
		h.t.Fatalf("claim: %v", err)
	}
	return tr
}

// mutate runs one event through the market the way the host loop does.
func (h *harness) mutate(ev validate.Event) validate.Verdict {
	h.t.Helper()
	if ev.Inventory == "" {
		ev.Inventory = model.ContainerID(string(ev.Actor) + "_inv")
	}
	if ev.ActorName == "" {
		ev.ActorName = string(ev.Actor)
	}
	v := h.m.Handle(ev)
	if _, ok := h.store.ItemAt(ev.From, ev.FromSlot); v.Apply && ok {
		if _, err := h.store.Move(ev.From, ev.FromSlot, ev.To, v.ToSlot, ev.Amount); err != nil {
			h.t.Fatalf("apply %s: %v", ev.Kind, err)
		}
		h.m.Commit(v, ev)
	}
	if err := h.m.Check(); err != nil {
		h.t.Fatalf("invariants after %s: %v", ev.Kind, err)
	}
	return v
}

func (h *harness) give(c model.ContainerID, slot int, id string, n int) {
	h.t.Helper()
	if err := h.store.SetItemAt(c, slot, model.Item{ID: id, Amount: n}); err != nil {
		h.t.Fatalf("give: %v", err)
	}
}

// stock places a product in slot and prices it, leaving the trader closed.
func (h *harness) stock(tr *model.Trader, product string, slot int, cost string, amount int) {
	h.t.Helper()
	inv := model.ContainerID(string(tr.Owner) + "_inv")
	free, ok := h.store.FirstEmpty(inv, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	if !ok {
		h.t.Fatalf("owner inventory full")
	}
	h.give(inv, free, product, 1)
	v := h.mutate(validate.Event{Kind: validate.KindMove, Actor: tr.Owner, From: inv, FromSlot: free, To: tr.Stand, ToSlot: slot})
	if v.Action != validate.ActionAddProduct {
		h.t.Fatalf("stock: verdict=%v err=%v", v.Action, v.Err)
	}
	if _, err := h.m.SetPrice(tr.Owner, cost, amount); err != nil {
		h.t.Fatalf("stock price: %v", err)
	}
}
