package world

import (
	"errors"
	"fmt"

	"plotbazaar.io/internal/protocol"
	"plotbazaar.io/internal/sim/market/containers"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/validate"
)

// reach is how far outside a plot's radius a player may still touch the
// trader's containers.
const reach = 3.0

var errUnsupported = errors.New("not supported by this host")

var actionAudit = map[validate.Action]string{
	validate.ActionWithdraw:      "WITHDRAW",
	validate.ActionAddProduct:    "STOCK",
	validate.ActionRemoveProduct: "UNSTOCK",
}

// applyMutate runs one inventory mutation through the market and, when the
// market allows it, applies it to the container store. Every path answers
// with exactly one RESULT.
func (w *World) applyMutate(tick uint64, p *Player, m protocol.MutateMsg) protocol.ResultMsg {
	w.stats.mutations.Add(1)
	kind, ok := validate.ParseKind(m.Kind)
	if !ok {
		return failure(m.Ref, protocol.ErrBadRequest, "unknown mutation kind "+m.Kind)
	}
	ev := validate.Event{
		Kind:      kind,
		Actor:     p.ID,
		ActorName: p.Name,
		Inventory: p.Inventory,
		From:      model.ContainerID(m.From),
		To:        model.ContainerID(m.To),
		FromSlot:  slotOrAny(m.FromSlot),
		ToSlot:    slotOrAny(m.ToSlot),
		ItemID:    m.Item,
		Amount:    m.Amount,
	}
	if ev.From == "" {
		ev.From = p.Inventory
	}
	if ev.To == "" {
		ev.To = p.Inventory
	}
	if code, msg := w.checkAccess(p, ev.From, ev.To); code != "" {
		return failure(m.Ref, code, msg)
	}
	if ev.ItemID == "" {
		if it, ok := w.store.ItemAt(ev.From, ev.FromSlot); ok {
			ev.ItemID = it.ID
		}
	}

	v := w.market.Handle(ev)
	if v.Rejected() {
		return w.rejectMutation(tick, p, m.Ref, ev, v)
	}

	if v.Apply {
		if err := w.applyToStore(ev, v); err != nil {
			if errors.Is(err, errUnsupported) {
				return failure(m.Ref, protocol.ErrBadRequest, err.Error())
			}
			w.log.Error().Err(err).
				Str("player", string(p.ID)).
				Str("kind", ev.Kind.String()).
				Str("action", v.Action.String()).
				Msg("allowed mutation failed to apply")
			return failure(m.Ref, protocol.ErrConflict, err.Error())
		}
		w.market.Commit(v, ev)
	}

	switch {
	case v.Receipt != nil:
		w.recordReceipt(tick, v.Receipt)
	case v.Action == validate.ActionGesture && v.Trader != nil:
		w.auditTrader(tick, p, gestureAudit(v.Status), v)
	case actionAudit[v.Action] != "" && v.Trader != nil:
		w.auditTrader(tick, p, actionAudit[v.Action], v)
	}
	if v.Trader != nil {
		w.sendStatus(p.ID, v.Status, v.Trader.Stand)
	}
	w.Notify(p.ID, v.Notice)
	w.refreshViews(p.ID, ev.From, ev.To)

	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Ref:             m.Ref,
		OK:              true,
		Status:          string(v.Status),
	}
}

func (w *World) rejectMutation(tick uint64, p *Player, ref string, ev validate.Event, v validate.Verdict) protocol.ResultMsg {
	w.stats.rejected.Add(1)
	code, _ := model.CodeOf(v.Err)
	if code == model.Internal {
		w.log.Error().Err(v.Err).Str("player", string(p.ID)).Str("kind", ev.Kind.String()).Msg("mutation destroyed")
	} else {
		w.log.Debug().Str("player", string(p.ID)).Str("kind", ev.Kind.String()).Str("code", string(code)).Msg("mutation rejected")
	}
	// Refused gestures are audited too.
	if v.Action == validate.ActionGesture && v.Trader != nil {
		w.auditTrader(tick, p, "GESTURE_REFUSED", v)
	}
	container := ev.From
	if v.Trader != nil {
		container = v.Trader.Stand
	}
	w.sendStatus(p.ID, v.Status, container)
	w.refreshViews(p.ID, ev.From, ev.To)
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
		Message:         model.Message(v.Err),
		Status:          string(v.Status),
	}
}

// checkAccess keeps players out of other players' inventories and away from
// shops they are not standing at.
func (w *World) checkAccess(p *Player, ids ...model.ContainerID) (code, msg string) {
	for _, id := range ids {
		c, ok := w.store.Get(id)
		if !ok {
			return protocol.ErrInvalidTarget, fmt.Sprintf("unknown container %s", id)
		}
		if c.Kind == containers.KindInventory {
			if c.Owner != p.ID {
				return protocol.ErrNoPermission, "that inventory belongs to someone else"
			}
			continue
		}
		t, _ := w.market.Traders().Resolve(id)
		if t == nil {
			// Untracked stand or storage; the market reports it.
			continue
		}
		plot, ok := w.market.Plots().Get(t.PlotID)
		if ok && p.Pos.Dist(plot.Pos) > plot.Radius+reach {
			return protocol.ErrInvalidTarget, "you are too far from " + t.Name
		}
	}
	return "", ""
}

// applyToStore performs the host side of an allowed mutation.
func (w *World) applyToStore(ev validate.Event, v validate.Verdict) error {
	switch ev.Kind {
	case validate.KindMove, validate.KindMerge:
		if _, ok := w.store.ItemAt(ev.From, ev.FromSlot); !ok {
			return fmt.Errorf("slot %d of %s is empty", ev.FromSlot, ev.From)
		}
		_, err := w.store.Move(ev.From, ev.FromSlot, ev.To, v.ToSlot, ev.Amount)
		return err
	case validate.KindMoveAll:
		_, err := w.store.MoveAll(ev.From, ev.To)
		return err
	case validate.KindDrop:
		_, err := w.store.Drop(ev.From, ev.FromSlot)
		return err
	case validate.KindSplit:
		_, err := w.store.Split(ev.From, ev.FromSlot)
		return err
	case validate.KindSort, validate.KindSortAll:
		return w.store.Sort(ev.From)
	default:
		return fmt.Errorf("%s: %w", ev.Kind, errUnsupported)
	}
}

func (w *World) refreshViews(p model.PlayerID, ids ...model.ContainerID) {
	seen := map[model.ContainerID]bool{}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		w.sendContainer(p, id)
	}
}

func (w *World) auditTrader(tick uint64, p *Player, action string, v validate.Verdict) {
	e := AuditEntry{
		Tick:   tick,
		Actor:  string(p.ID),
		Action: action,
		Target: string(v.Trader.ID),
		Pos:    vecArray(p.Pos),
		Details: map[string]any{
			"state": v.Trader.State.String(),
		},
	}
	if v.Err != nil {
		e.Reason = model.Message(v.Err)
	}
	w.audit(e)
}

func gestureAudit(s model.Status) string {
	if s == model.StatusOpen {
		return "OPEN"
	}
	return "CLOSE"
}

func slotOrAny(s *int) int {
	if s == nil {
		return -1
	}
	return *s
}

func failure(ref, code, msg string) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Ref:             ref,
		OK:              false,
		Code:            code,
		Message:         msg,
	}
}
