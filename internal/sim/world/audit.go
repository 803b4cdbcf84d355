package world

import (
	"time"

	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/trade"
)

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type ReceiptLogger interface {
	WriteReceipt(entry ReceiptEntry) error
}

type AuditEntry struct {
	Tick    uint64         `json:"tick"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"` // e.g. "CLAIM", "PLOT_CREATE"
	Target  string         `json:"target,omitempty"`
	Pos     [3]float64     `json:"pos"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ReceiptEntry is one completed purchase.
type ReceiptEntry struct {
	ID            string `json:"id"`
	Tick          uint64 `json:"tick"`
	At            string `json:"at"`
	Trader        string `json:"trader_id"`
	Seller        string `json:"seller"`
	Buyer         string `json:"buyer"`
	ProductSlot   int    `json:"product_slot"`
	ProductItem   string `json:"product_item"`
	ProductAmount int    `json:"product_amount"`
	CostItem      string `json:"cost_item"`
	CostAmount    int    `json:"cost_amount"`
	StateAfter    string `json:"state_after"`
}

const adminActor = "ADMIN"

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	if err := w.auditLogger.WriteAudit(e); err != nil {
		w.log.Warn().Err(err).Str("action", e.Action).Msg("audit write failed")
	}
}

func (w *World) auditPlot(tick uint64, actor, action string, p *model.Plot, details map[string]any) {
	w.audit(AuditEntry{
		Tick:    tick,
		Actor:   actor,
		Action:  action,
		Target:  string(p.ID),
		Pos:     vecArray(p.Pos),
		Details: details,
	})
}

func receiptEntry(tick uint64, r *trade.Receipt) ReceiptEntry {
	return ReceiptEntry{
		ID:            r.ID,
		Tick:          tick,
		At:            r.At.UTC().Format(time.RFC3339Nano),
		Trader:        string(r.Trader),
		Seller:        string(r.Seller),
		Buyer:         string(r.Buyer),
		ProductSlot:   r.ProductSlot,
		ProductItem:   r.Product.ID,
		ProductAmount: r.Product.Amount,
		CostItem:      r.Cost.ID,
		CostAmount:    r.Cost.Amount,
		StateAfter:    r.StateAfter,
	}
}

func (w *World) recordReceipt(tick uint64, r *trade.Receipt) {
	e := receiptEntry(tick, r)
	w.stats.purchases.Add(1)
	if w.receiptLogger != nil {
		if err := w.receiptLogger.WriteReceipt(e); err != nil {
			w.log.Warn().Err(err).Str("receipt", e.ID).Msg("receipt write failed")
		}
	}
	w.audit(AuditEntry{
		Tick:   tick,
		Actor:  e.Buyer,
		Action: "PURCHASE",
		Target: e.Trader,
		Details: map[string]any{
			"receipt": e.ID,
			"seller":  e.Seller,
			"product": e.ProductItem,
			"amount":  e.ProductAmount,
			"cost":    e.CostItem,
			"price":   e.CostAmount,
		},
	})
}
