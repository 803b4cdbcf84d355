package world

import (
	"time"

	"github.com/google/uuid"

	"plotbazaar.io/internal/protocol"
	"plotbazaar.io/internal/sim/market/containers"
	"plotbazaar.io/internal/sim/market/model"
)

// Player is the directory entry for a persistent player identity. Entries
// outlive sessions so the inactivity sweep can see who was here and when.
type Player struct {
	ID        model.PlayerID
	Name      string
	Pos       model.Vec3
	Inventory model.ContainerID
	Online    bool
	LastSeen  time.Time
}

func (w *World) handleJoin(tick uint64, req JoinRequest) {
	reply := func(r JoinResponse) {
		if req.Resp == nil {
			return
		}
		select {
		case req.Resp <- r:
		default:
		}
	}
	id := model.PlayerID(req.PlayerID)
	if id == "" {
		reply(JoinResponse{Code: protocol.ErrBadRequest, Message: "missing player id"})
		return
	}
	if _, ok := w.clients[id]; ok {
		reply(JoinResponse{Code: protocol.ErrConflict, Message: "player already connected"})
		return
	}

	p, known := w.players[id]
	if !known {
		var err error
		p, err = w.newPlayer(id, req.Name)
		if err != nil {
			w.log.Error().Err(err).Str("player", req.PlayerID).Msg("create player")
			reply(JoinResponse{Code: protocol.ErrInternal, Message: "could not create player"})
			return
		}
	}
	if req.Name != "" && req.Name != p.Name {
		p.Name = req.Name
		w.renameOwner(p)
	}
	p.Online = true
	p.LastSeen = w.now()

	session := uuid.NewString()
	w.clients[id] = &clientState{Session: session, Out: req.Out}
	w.stats.joins.Add(1)
	w.log.Info().Str("player", req.PlayerID).Str("name", p.Name).Bool("returning", known).Uint64("tick", tick).Msg("player joined")

	reply(JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        string(p.ID),
		SessionID:       session,
		Inventory:       string(p.Inventory),
		TickRateHz:      w.cfg.TickRateHz,
		Pos:             vecArray(p.Pos),
		Catalog: protocol.CatalogDigests{
			ItemsDigest: w.items.Digest,
			ItemCount:   len(w.items.Palette),
		},
	}})
	w.sendContainer(p.ID, p.Inventory)
}

func (w *World) newPlayer(id model.PlayerID, name string) (*Player, error) {
	if name == "" {
		name = string(id)
	}
	p := &Player{ID: id, Name: name, Pos: w.cfg.SpawnPos, Inventory: model.NewContainerID()}
	if _, err := w.store.Create(p.Inventory, containers.KindInventory, id, w.cfg.InventorySlots); err != nil {
		return nil, err
	}
	for _, it := range w.cfg.StarterItems {
		if err := w.store.AddAmount(p.Inventory, it.ID, it.Amount); err != nil {
			w.log.Warn().Err(err).Str("player", string(id)).Str("item", it.ID).Msg("starter item skipped")
		}
	}
	w.players[id] = p
	return p, nil
}

// renameOwner keeps the shop name in step with the owner's display name.
func (w *World) renameOwner(p *Player) {
	t, ok := w.market.Traders().ByOwner(p.ID)
	if !ok {
		return
	}
	t.OwnerName = p.Name
	t.SetState(t.State)
}

func (w *World) handleLeave(playerID string) {
	id := model.PlayerID(playerID)
	delete(w.clients, id)
	if p, ok := w.players[id]; ok && p.Online {
		p.Online = false
		p.LastSeen = w.now()
		w.log.Info().Str("player", playerID).Msg("player left")
	}
}

func (w *World) onlinePlayer(playerID string) (*Player, bool) {
	id := model.PlayerID(playerID)
	if _, ok := w.clients[id]; !ok {
		return nil, false
	}
	p, ok := w.players[id]
	return p, ok
}

func (w *World) movePlayer(p *Player, pos [3]float64) {
	p.Pos = arrayVec(pos)
}

// lastSeen is the player directory as the market's inactivity sweep reads it.
func (w *World) lastSeen(id model.PlayerID) (time.Time, bool, bool) {
	p, ok := w.players[id]
	if !ok {
		return time.Time{}, false, false
	}
	return p.LastSeen, p.Online, true
}

func vecArray(v model.Vec3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func arrayVec(a [3]float64) model.Vec3 { return model.Vec3{X: a[0], Y: a[1], Z: a[2]} }
