package registry

import (
	"errors"
	"fmt"
	"time"

	"plotbazaar.io/internal/sim/market/model"
)

func (m *Market) CreatePlot(pos model.Vec3, force bool) (*model.Plot, error) {
	p, err := m.placement.Create(pos, force)
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("plot", string(p.ID)).Float64("x", p.Pos.X).Float64("z", p.Pos.Z).Bool("force", force).Msg("plot created")
	return p, nil
}

func (m *Market) MovePlot(id model.PlotID, pos model.Vec3) error {
	return m.placement.Move(id, pos)
}

func (m *Market) RotatePlot(id model.PlotID) (model.Rotation, error) {
	return m.placement.Rotate(id)
}

// RemovePlot deletes a plot. An occupied plot needs force, which destroys
// its trader first.
func (m *Market) RemovePlot(id model.PlotID, force bool) error {
	p, ok := m.plotReg.Get(id)
	if !ok {
		return model.Placement(model.UnknownPlot, "")
	}
	if p.Occupied() {
		if !force {
			return model.Placement(model.NotEmpty, "")
		}
		if t, ok := m.traders.Get(p.TraderID); ok {
			m.destroyTrader(t)
		} else {
			m.placement.Detach(id)
		}
	}
	return m.placement.Remove(id)
}

// ForceRemoveTrader destroys a trader whatever it holds.
func (m *Market) ForceRemoveTrader(id model.TraderID) error {
	t, ok := m.traders.Get(id)
	if !ok {
		return model.Validation(model.NoTrader, fmt.Sprintf("no trader %s", id))
	}
	m.destroyTrader(t)
	return nil
}

// scan runs fn for each item, converting a panic into an error so that one
// bad record never stops the pass.
func scan[T any](items []T, fn func(T) (bool, error)) (int, error) {
	n := 0
	var errs []error
	for _, it := range items {
		hit, err := guard(func() (bool, error) { return fn(it) })
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if hit {
			n++
		}
	}
	return n, errors.Join(errs...)
}

func guard(fn func() (bool, error)) (hit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan: %v", r)
		}
	}()
	return fn()
}

// ClearEmptyTraders removes every trader with an empty stand and storage.
func (m *Market) ClearEmptyTraders() (int, error) {
	return scan(m.traders.All(), func(t *model.Trader) (bool, error) {
		if _, ok := m.traders.Get(t.ID); !ok || !m.IsEmpty(t) {
			return false, nil
		}
		m.destroyTrader(t)
		return true, nil
	})
}

// LastSeen reports when a player was last online. ok is false for players
// the directory has never seen.
type LastSeen func(p model.PlayerID) (at time.Time, online bool, ok bool)

// RemoveInactiveTraders destroys traders whose owner has been offline longer
// than maxIdle.
func (m *Market) RemoveInactiveTraders(seen LastSeen, maxIdle time.Duration, now time.Time) (int, error) {
	if maxIdle <= 0 || seen == nil {
		return 0, nil
	}
	return scan(m.traders.All(), func(t *model.Trader) (bool, error) {
		at, online, ok := seen(t.Owner)
		if !ok || online || now.Sub(at) <= maxIdle {
			return false, nil
		}
		m.destroyTrader(t)
		m.log.Info().Str("owner", string(t.Owner)).Time("last_seen", at).Msg("inactive trader removed")
		return true, nil
	})
}

// ClearEmptyPlots removes every plot without a trader.
func (m *Market) ClearEmptyPlots() (int, error) {
	return scan(m.plotReg.All(), func(p *model.Plot) (bool, error) {
		if p.Occupied() {
			return false, nil
		}
		if err := m.placement.Remove(p.ID); err != nil {
			return false, fmt.Errorf("plot %s: %w", p.ID, err)
		}
		return true, nil
	})
}

// ClearAll destroys every trader and then every plot.
func (m *Market) ClearAll() (int, int, error) {
	nTraders, terr := scan(m.traders.All(), func(t *model.Trader) (bool, error) {
		m.destroyTrader(t)
		return true, nil
	})
	nPlots, perr := scan(m.plotReg.All(), func(p *model.Plot) (bool, error) {
		if err := m.placement.Remove(p.ID); err != nil {
			return false, fmt.Errorf("plot %s: %w", p.ID, err)
		}
		return true, nil
	})
	return nPlots, nTraders, errors.Join(terr, perr)
}
