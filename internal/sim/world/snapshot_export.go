package world

import (
	"errors"
	"sort"
	"time"

	"plotbazaar.io/internal/persistence/snapshot"
	"plotbazaar.io/internal/sim/market/model"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	st := w.market.Export()
	now := w.now()

	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			Tick:      nowTick,
			CreatedAt: now.UTC().Format(time.RFC3339),
			Plots:     len(st.Plots),
			Traders:   len(st.Traders),
		},
		TickRate:   w.cfg.TickRateHz,
		PlotRadius: w.market.Plots().Radius(),
	}
	for _, p := range st.Plots {
		s.Plots = append(s.Plots, snapshot.PlotV1{
			ID:       string(p.ID),
			Pos:      vecArray(p.Pos),
			Radius:   p.Radius,
			Rotation: int(p.Rotation.Norm()),
			TraderID: string(p.TraderID),
		})
	}
	for _, rec := range st.Traders {
		s.Traders = append(s.Traders, snapshot.TraderV1{
			ID:         string(rec.ID),
			Owner:      string(rec.Owner),
			OwnerName:  rec.OwnerName,
			State:      rec.State.String(),
			Stand:      string(rec.Stand),
			Storage:    string(rec.Storage),
			Host:       string(rec.Host),
			PlotID:     string(rec.PlotID),
			Blocked:    append([]int(nil), rec.Blocked...),
			HostPos:    vecArray(rec.HostPos),
			StandPos:   vecArray(rec.StandPos),
			StoragePos: vecArray(rec.StoragePos),
		})
	}
	for _, c := range w.store.Export() {
		cv := snapshot.ContainerV1{
			ID:    string(c.ID),
			Kind:  c.Kind.String(),
			Owner: string(c.Owner),
			Slots: make([]snapshot.SlotV1, len(c.Slots)),
		}
		for i, it := range c.Slots {
			if it.Empty() {
				continue
			}
			cv.Slots[i] = snapshot.SlotV1{Item: it.ID, Amount: it.Amount, Max: it.MaxAmount}
		}
		s.Containers = append(s.Containers, cv)
	}

	ids := make([]model.PlayerID, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		p := w.players[id]
		seen := p.LastSeen
		if p.Online {
			seen = now
		}
		pv := snapshot.PlayerV1{
			ID:        string(p.ID),
			Name:      p.Name,
			Pos:       vecArray(p.Pos),
			Inventory: string(p.Inventory),
		}
		if !seen.IsZero() {
			pv.LastSeen = seen.Unix()
		}
		s.Players = append(s.Players, pv)
	}
	return s
}

// enqueueSnapshot hands a snapshot to the writer without blocking the loop.
func (w *World) enqueueSnapshot(tick uint64) error {
	if w.snapshotSink == nil {
		return errors.New("snapshot sink not configured")
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot(tick):
		w.stats.snapshots.Add(1)
		return nil
	default:
		return errors.New("snapshot sink backpressure")
	}
}
