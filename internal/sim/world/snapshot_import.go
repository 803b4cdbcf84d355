package world

import (
	"fmt"
	"time"

	"plotbazaar.io/internal/persistence/snapshot"
	"plotbazaar.io/internal/sim/market/containers"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/registry"
)

// ImportSnapshot replaces the world state with s and reconciles the market
// against the restored containers. Call it before Run. The returned error
// lists records the reconciliation had to drop; the world is usable either
// way.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) (registry.Report, error) {
	if s.Header.Version != snapshot.Version {
		return registry.Report{}, fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}

	boxes := make([]containers.Container, 0, len(s.Containers))
	for _, cv := range s.Containers {
		c := containers.Container{
			ID:    model.ContainerID(cv.ID),
			Kind:  parseKind(cv.Kind),
			Owner: model.PlayerID(cv.Owner),
			Slots: make([]model.Item, len(cv.Slots)),
		}
		for i, sl := range cv.Slots {
			if sl.Item == "" || sl.Amount <= 0 {
				continue
			}
			c.Slots[i] = model.Item{ID: sl.Item, Amount: sl.Amount, MaxAmount: sl.Max}
		}
		boxes = append(boxes, c)
	}
	w.store.Import(boxes)

	w.players = make(map[model.PlayerID]*Player, len(s.Players))
	w.clients = map[model.PlayerID]*clientState{}
	for _, pv := range s.Players {
		p := &Player{
			ID:        model.PlayerID(pv.ID),
			Name:      pv.Name,
			Pos:       arrayVec(pv.Pos),
			Inventory: model.ContainerID(pv.Inventory),
		}
		if pv.LastSeen > 0 {
			p.LastSeen = time.Unix(pv.LastSeen, 0)
		}
		if !w.store.Exists(p.Inventory) {
			p.Inventory = model.NewContainerID()
			if _, err := w.store.Create(p.Inventory, containers.KindInventory, p.ID, w.cfg.InventorySlots); err != nil {
				return registry.Report{}, fmt.Errorf("player %s inventory: %w", p.ID, err)
			}
		}
		w.players[p.ID] = p
	}

	var st registry.State
	for _, pv := range s.Plots {
		st.Plots = append(st.Plots, model.Plot{
			ID:       model.PlotID(pv.ID),
			Pos:      arrayVec(pv.Pos),
			Radius:   pv.Radius,
			Rotation: model.Rotation(pv.Rotation).Norm(),
			TraderID: model.TraderID(pv.TraderID),
		})
	}
	for _, tv := range s.Traders {
		state, _ := model.ParseTraderState(tv.State)
		st.Traders = append(st.Traders, registry.TraderRecord{
			Trader: model.Trader{
				ID:        model.TraderID(tv.ID),
				Owner:     model.PlayerID(tv.Owner),
				OwnerName: tv.OwnerName,
				State:     state,
				Stand:     model.ContainerID(tv.Stand),
				Storage:   model.ContainerID(tv.Storage),
				Host:      model.ActorID(tv.Host),
				PlotID:    model.PlotID(tv.PlotID),
				Blocked:   append([]int(nil), tv.Blocked...),
			},
			HostPos:    arrayVec(tv.HostPos),
			StandPos:   arrayVec(tv.StandPos),
			StoragePos: arrayVec(tv.StoragePos),
		})
	}
	rep, err := w.market.Import(st)
	w.tick.Store(s.Header.Tick + 1)
	w.log.Info().
		Uint64("tick", s.Header.Tick).
		Int("plots", rep.Plots).
		Int("traders", rep.Traders).
		Int("relinked", rep.Relinked).
		Int("dropped_traders", rep.DroppedTraders).
		Int("orphan_costs", rep.OrphanCosts).
		Msg("snapshot imported")
	return rep, err
}

func parseKind(s string) containers.Kind {
	switch s {
	case containers.KindStand.String():
		return containers.KindStand
	case containers.KindStorage.String():
		return containers.KindStorage
	default:
		return containers.KindInventory
	}
}
