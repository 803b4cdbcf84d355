package world

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"plotbazaar.io/internal/protocol"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/registry"
	"plotbazaar.io/internal/sim/market/slots"
)

const commandHelp = "Commands: claim, unclaim, open, close, addcost <item> <amount>, info, items <query>"

func (w *World) applyCmd(tick uint64, p *Player, c protocol.CmdMsg) protocol.ResultMsg {
	w.stats.commands.Add(1)
	switch strings.ToLower(strings.TrimSpace(c.Cmd)) {
	case "claim":
		return w.cmdClaim(tick, p, c.Ref)
	case "unclaim":
		return w.cmdUnclaim(tick, p, c.Ref)
	case "open":
		return w.cmdOpen(tick, p, c.Ref)
	case "close":
		return w.cmdClose(tick, p, c.Ref)
	case "addcost":
		return w.cmdAddCost(tick, p, c.Ref, c.Args)
	case "info":
		return success(c.Ref, w.shopInfo(p), "")
	case "items":
		return w.cmdItems(c.Ref, c.Args)
	case "help":
		return success(c.Ref, commandHelp, "")
	default:
		return failure(c.Ref, protocol.ErrBadRequest, "unknown command "+c.Cmd+". "+commandHelp)
	}
}

func (w *World) cmdClaim(tick uint64, p *Player, ref string) protocol.ResultMsg {
	t, err := w.market.Claim(registry.ClaimRequest{
		Player:    p.ID,
		Name:      p.Name,
		Inventory: p.Inventory,
		Pos:       p.Pos,
	})
	if err != nil {
		return marketFailure(ref, err)
	}
	e := AuditEntry{Tick: tick, Actor: string(p.ID), Action: "CLAIM", Target: string(t.ID), Pos: vecArray(p.Pos)}
	if plot, ok := w.market.Plots().Get(t.PlotID); ok {
		e.Pos = vecArray(plot.Pos)
		e.Details = map[string]any{"plot": string(plot.ID)}
	}
	if cost := w.cfg.Market.ClaimCost; cost.ID != "" && cost.Amount > 0 {
		if e.Details == nil {
			e.Details = map[string]any{}
		}
		e.Details["cost"] = w.describe(cost)
	}
	w.audit(e)
	w.refreshViews(p.ID, p.Inventory, t.Stand, t.Storage)
	return success(ref, "Your shop is ready! Put items on the stand, then use addcost to price them.", model.StatusEnabled)
}

func (w *World) cmdUnclaim(tick uint64, p *Player, ref string) protocol.ResultMsg {
	t, _ := w.market.Traders().ByOwner(p.ID)
	if err := w.market.Unclaim(p.ID); err != nil {
		return marketFailure(ref, err)
	}
	w.audit(AuditEntry{Tick: tick, Actor: string(p.ID), Action: "UNCLAIM", Target: string(t.ID), Pos: vecArray(p.Pos)})
	return success(ref, "Your shop has been removed.", model.StatusDone)
}

func (w *World) cmdOpen(tick uint64, p *Player, ref string) protocol.ResultMsg {
	t, err := w.market.OpenShop(p.ID)
	if err != nil {
		return marketFailure(ref, err)
	}
	w.audit(AuditEntry{Tick: tick, Actor: string(p.ID), Action: "OPEN", Target: string(t.ID), Pos: vecArray(p.Pos)})
	return success(ref, t.Name+" is open for business.", model.StatusOpen)
}

func (w *World) cmdClose(tick uint64, p *Player, ref string) protocol.ResultMsg {
	t, err := w.market.CloseShop(p.ID)
	if err != nil {
		return marketFailure(ref, err)
	}
	w.audit(AuditEntry{Tick: tick, Actor: string(p.ID), Action: "CLOSE", Target: string(t.ID), Pos: vecArray(p.Pos)})
	return success(ref, "Your shop is closed. You can change it now.", model.StatusClose)
}

// cmdAddCost prices the single unpriced product. The last argument is the
// amount; everything before it is the item name.
func (w *World) cmdAddCost(tick uint64, p *Player, ref string, args []string) protocol.ResultMsg {
	if len(args) < 2 {
		return failure(ref, protocol.ErrBadRequest, "usage: addcost <item> <amount>")
	}
	amount, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		return failure(ref, protocol.ErrInvalidPrice, "The price must be a whole number.")
	}
	name := strings.Join(args[:len(args)-1], " ")
	def, cands, ok := w.items.Resolve(name)
	if !ok {
		if len(cands) == 0 {
			return failure(ref, protocol.ErrUnknownItem, fmt.Sprintf("There is no item called %q.", name))
		}
		names := make([]string, 0, len(cands))
		for _, d := range cands {
			names = append(names, d.Name)
		}
		return failure(ref, protocol.ErrUnknownItem, "Which item did you mean: "+strings.Join(names, ", ")+"?")
	}
	slot, err := w.market.SetPrice(p.ID, def.ID, amount)
	if err != nil {
		return marketFailure(ref, err)
	}
	t, _ := w.market.Traders().ByOwner(p.ID)
	product, _ := w.store.ItemAt(t.Stand, slot)
	cost := model.Item{ID: def.ID, Amount: amount}
	w.audit(AuditEntry{
		Tick:   tick,
		Actor:  string(p.ID),
		Action: "PRICE",
		Target: string(t.ID),
		Pos:    vecArray(p.Pos),
		Details: map[string]any{
			"slot":    slot,
			"product": product.ID,
			"cost":    def.ID,
			"amount":  amount,
		},
	})
	w.refreshViews(p.ID, t.Stand)
	msg := fmt.Sprintf("%s will sell for %s.", w.describe(product), w.describe(cost))
	if t.State == model.ReceivedCost {
		msg += " Every product has a price; use open to start selling."
	}
	return success(ref, msg, model.StatusDone)
}

func (w *World) cmdItems(ref string, args []string) protocol.ResultMsg {
	q := strings.Join(args, " ")
	if strings.TrimSpace(q) == "" {
		return failure(ref, protocol.ErrBadRequest, "usage: items <query>")
	}
	found := w.items.Search(q)
	if len(found) == 0 {
		return success(ref, "No items match "+strconv.Quote(q)+".", "")
	}
	parts := make([]string, 0, len(found))
	for _, d := range found {
		parts = append(parts, d.Name+" ("+d.ID+")")
	}
	return success(ref, strings.Join(parts, ", "), "")
}

// shopInfo describes the player's own shop, or the one they stand in.
func (w *World) shopInfo(p *Player) string {
	t, ok := w.market.Traders().ByOwner(p.ID)
	if !ok {
		t, _, ok = w.market.TraderAt(p.Pos)
	}
	if !ok {
		if _, plot, _ := w.market.TraderAt(p.Pos); plot != nil {
			return "This plot is free. Use claim to open a shop here."
		}
		return "There is no shop here."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]", t.Name, t.State)
	for _, o := range w.offers(t) {
		if o.Cost.Empty() {
			fmt.Fprintf(&sb, "\n  slot %d: %s (no price)", o.Slot, w.describe(o.Product))
			continue
		}
		fmt.Fprintf(&sb, "\n  slot %d: %s for %s", o.Slot, w.describe(o.Product), w.describe(o.Cost))
	}
	if t.Owner == p.ID {
		fmt.Fprintf(&sb, "\nStorage: %s", w.summarize(t.Storage))
	}
	return sb.String()
}

// Offer is one product slot of a stand and its price, if any.
type Offer struct {
	Slot    int        `json:"slot"`
	Product model.Item `json:"product"`
	Cost    model.Item `json:"cost"`
}

func (w *World) offers(t *model.Trader) []Offer {
	var out []Offer
	for _, s := range slots.Products() {
		product, ok := w.store.ItemAt(t.Stand, s)
		if !ok || product.Empty() {
			continue
		}
		o := Offer{Slot: s, Product: model.Item{ID: product.ID, Amount: product.Amount}}
		if c, ok := slots.CostFor(s); ok {
			if cost, ok := w.store.ItemAt(t.Stand, c); ok && !cost.Empty() {
				o.Cost = model.Item{ID: cost.ID, Amount: cost.Amount}
			}
		}
		out = append(out, o)
	}
	return out
}

// summarize totals a container by item, e.g. "1,200x Coin, 3x Gem".
func (w *World) summarize(id model.ContainerID) string {
	c, ok := w.store.Get(id)
	if !ok {
		return "missing"
	}
	totals := map[string]int{}
	var order []string
	for _, it := range c.Slots {
		if it.Empty() {
			continue
		}
		if _, seen := totals[it.ID]; !seen {
			order = append(order, it.ID)
		}
		totals[it.ID] += it.Amount
	}
	if len(order) == 0 {
		return "empty"
	}
	parts := make([]string, 0, len(order))
	for _, id := range order {
		parts = append(parts, w.describe(model.Item{ID: id, Amount: totals[id]}))
	}
	return strings.Join(parts, ", ")
}

func (w *World) describe(it model.Item) string {
	return humanize.Comma(int64(it.Amount)) + "x " + w.items.Name(it.ID)
}

func marketFailure(ref string, err error) protocol.ResultMsg {
	code, _ := model.CodeOf(err)
	wire := protocol.WireCode(string(code))
	if wire == "" {
		wire = protocol.ErrInternal
	}
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Ref:             ref,
		OK:              false,
		Code:            wire,
		Message:         model.Message(err),
		Status:          string(model.StatusFor(err)),
	}
}

func success(ref, msg string, status model.Status) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Ref:             ref,
		OK:              true,
		Message:         msg,
		Status:          string(status),
	}
}
