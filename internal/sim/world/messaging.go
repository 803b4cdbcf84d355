package world

import (
	"encoding/json"

	"plotbazaar.io/internal/protocol"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/traders"
)

// Notify delivers a NOTICE to an online player. Offline players miss it.
func (w *World) Notify(p model.PlayerID, text string) {
	if text == "" {
		return
	}
	w.sendTo(p, protocol.NoticeMsg{
		Type:            protocol.TypeNotice,
		ProtocolVersion: protocol.Version,
		Text:            text,
	})
}

func (w *World) sendStatus(p model.PlayerID, status model.Status, container model.ContainerID) {
	if status == "" {
		return
	}
	w.sendTo(p, protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		Status:          string(status),
		Container:       string(container),
	})
}

func (w *World) sendContainer(p model.PlayerID, id model.ContainerID) {
	c, ok := w.store.Get(id)
	if !ok {
		return
	}
	msg := protocol.ContainerMsg{
		Type:            protocol.TypeContainer,
		ProtocolVersion: protocol.Version,
		Container:       string(c.ID),
		Kind:            c.Kind.String(),
		Slots:           []protocol.ItemStack{},
	}
	if t, role := w.market.Traders().Resolve(id); t != nil {
		msg.Name = t.Name
		if role == traders.RoleStorage {
			msg.Name += " Storage"
		}
	}
	for i, it := range c.Slots {
		if it.Empty() {
			continue
		}
		msg.Slots = append(msg.Slots, protocol.ItemStack{
			Slot:   i,
			Item:   it.ID,
			Count:  it.Amount,
			Max:    it.MaxAmount,
			Locked: it.MaxAmount > 0 && it.MaxAmount == it.Amount,
		})
	}
	w.sendTo(p, msg)
}

func (w *World) sendTo(p model.PlayerID, v any) {
	c, ok := w.clients[p]
	if !ok || c.Out == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		w.log.Error().Err(err).Msg("encode outbound frame")
		return
	}
	select {
	case c.Out <- b:
		w.stats.sent.Add(1)
	default:
		// Slow client; don't block the sim loop.
		w.stats.dropped.Add(1)
	}
}
