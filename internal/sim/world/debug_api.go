package world

import (
	"fmt"

	"plotbazaar.io/internal/sim/market/model"
)

// Debug helpers give tests deterministic preconditions. They touch world
// state directly and must only be called when Run is not active.

func (w *World) DebugGive(playerID string, itemID string, n int) error {
	p, ok := w.players[model.PlayerID(playerID)]
	if !ok {
		return fmt.Errorf("unknown player %s", playerID)
	}
	if n < 0 {
		return w.store.RemoveAmount(p.Inventory, itemID, -n, -1)
	}
	return w.store.AddAmount(p.Inventory, itemID, n)
}

func (w *World) DebugCount(container model.ContainerID, itemID string) int {
	return w.store.CountOf(container, itemID)
}

func (w *World) DebugItemAt(container model.ContainerID, slot int) (model.Item, bool) {
	return w.store.ItemAt(container, slot)
}

// DebugTrader returns a copy of the player's trader.
func (w *World) DebugTrader(playerID string) (model.Trader, bool) {
	t, ok := w.market.Traders().ByOwner(model.PlayerID(playerID))
	if !ok {
		return model.Trader{}, false
	}
	return *t, true
}

// DebugCheck verifies every market invariant.
func (w *World) DebugCheck() error { return w.market.Check() }

// DebugCreatePlot places an empty plot at pos without going through the
// admin queue.
func (w *World) DebugCreatePlot(pos model.Vec3) (PlotView, error) {
	return w.adminCreatePlot(w.CurrentTick(), pos, false)
}
