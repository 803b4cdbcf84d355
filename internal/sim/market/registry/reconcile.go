package registry

import (
	"errors"
	"fmt"

	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/plots"
	"plotbazaar.io/internal/sim/market/slots"
	"plotbazaar.io/internal/sim/market/traders"
)

// TraderRecord is a persisted trader plus where its parts stood, which is
// what the load pass votes with when the plot reference is lost.
type TraderRecord struct {
	model.Trader
	HostPos    model.Vec3
	StandPos   model.Vec3
	StoragePos model.Vec3
}

// State is everything the market persists. Trader states are stored for
// reference only; loading re-derives them from the stand.
type State struct {
	Plots   []model.Plot
	Traders []TraderRecord
}

type Report struct {
	Plots          int `json:"plots"`
	Traders        int `json:"traders"`
	DroppedPlots   int `json:"dropped_plots"`
	DroppedTraders int `json:"dropped_traders"`
	Relinked       int `json:"relinked"`
	Ghosted        int `json:"ghosted"`
	OrphanCosts    int `json:"orphan_costs"`
	ClearedEmpty   int `json:"cleared_empty"`
}

func (m *Market) Export() State {
	var st State
	for _, p := range m.plotReg.All() {
		st.Plots = append(st.Plots, *p)
	}
	for _, t := range m.traders.All() {
		rec := TraderRecord{Trader: *t}
		rec.Blocked = append([]int(nil), t.Blocked...)
		if p, ok := m.plotReg.Get(t.PlotID); ok {
			a := plots.AnchorsFor(p)
			rec.HostPos, rec.StandPos, rec.StoragePos = a.Host, a.Stand, a.Storage
		}
		st.Traders = append(st.Traders, rec)
	}
	return st
}

// Import replaces plots and traders with st and reconciles them against the
// container store, which must already hold the persisted containers. The
// pass is idempotent: importing its own export changes nothing.
func (m *Market) Import(st State) (Report, error) {
	m.resetIndexes()
	var rep Report
	var errs []error

	claimed := map[model.PlotID]model.TraderID{}
	for _, p := range st.Plots {
		if _, err := m.placement.Restore(p); err != nil {
			rep.DroppedPlots++
			errs = append(errs, fmt.Errorf("plot %s: %w", p.ID, err))
			continue
		}
		if p.TraderID != "" {
			claimed[p.ID] = p.TraderID
		}
	}

	for _, rec := range st.Traders {
		if err := m.restoreTrader(rec, claimed, &rep); err != nil {
			rep.DroppedTraders++
			errs = append(errs, fmt.Errorf("trader %s: %w", rec.ID, err))
		}
	}

	for id, tid := range claimed {
		if p, ok := m.plotReg.Get(id); ok && p.TraderID != tid {
			rep.Ghosted++
		}
	}

	for _, t := range m.traders.All() {
		c := m.contents(t)
		for _, cost := range c.Orphans {
			_ = m.boxes.SetItemAt(t.Stand, cost, model.Item{})
			rep.OrphanCosts++
		}
		t.SetState(traders.Derive(m.contents(t)))
	}

	if m.cfg.DropEmptyOnLoad {
		n, err := m.ClearEmptyTraders()
		rep.ClearedEmpty = n
		if err != nil {
			errs = append(errs, err)
		}
	}
	rep.Plots = m.plotReg.Len()
	rep.Traders = m.traders.Len()
	return rep, errors.Join(errs...)
}

func (m *Market) restoreTrader(rec TraderRecord, claimed map[model.PlotID]model.TraderID, rep *Report) error {
	t := rec.Trader
	if !m.boxes.Exists(t.Stand) || !m.boxes.Exists(t.Storage) {
		m.dropContainers(t)
		return errors.New("missing stand or storage")
	}
	t.Blocked = slots.Blocked()
	m.fillBlocked(&t)
	if err := m.traders.Add(&t); err != nil {
		m.dropContainers(t)
		return err
	}

	plotID, relinked := m.locatePlot(&t, rec, claimed)
	if plotID == "" {
		p, err := m.placement.Create(rec.HostPos, false)
		if err != nil {
			m.traders.Remove(t.ID)
			m.dropContainers(t)
			return fmt.Errorf("no plot to stand on: %w", err)
		}
		plotID, relinked = p.ID, true
	}
	if err := m.placement.Attach(plotID, t.ID); err != nil {
		m.traders.Remove(t.ID)
		m.dropContainers(t)
		return err
	}
	t.PlotID = plotID
	if relinked {
		rep.Relinked++
	}
	return nil
}

// dropContainers destroys the stand and storage of a trader that did not
// survive loading. Containers a loaded trader still owns are left alone.
func (m *Market) dropContainers(t model.Trader) {
	for _, c := range []model.ContainerID{t.Stand, t.Storage} {
		if _, role := m.traders.Resolve(c); role == traders.RoleNone {
			m.boxes.Destroy(c)
		}
	}
}

// locatePlot trusts the stored plot reference when the plot agrees, and
// otherwise lets the trader's host, stand and storage positions vote.
func (m *Market) locatePlot(t *model.Trader, rec TraderRecord, claimed map[model.PlotID]model.TraderID) (model.PlotID, bool) {
	if p, ok := m.plotReg.Get(t.PlotID); ok && !p.Occupied() {
		if owner, ok := claimed[p.ID]; !ok || owner == t.ID {
			return p.ID, false
		}
	}
	votes := map[model.PlotID]int{}
	var order []model.PlotID
	for _, pos := range []model.Vec3{rec.HostPos, rec.StandPos, rec.StoragePos} {
		p, ok := m.plotReg.FindContaining(pos)
		if !ok || p.Occupied() {
			continue
		}
		if votes[p.ID] == 0 {
			order = append(order, p.ID)
		}
		votes[p.ID]++
	}
	var best model.PlotID
	for _, id := range order {
		if best == "" || votes[id] > votes[best] {
			best = id
		}
	}
	return best, best != ""
}

// Reload rebuilds plots and traders from their own export, re-deriving
// every trader state and repairing links.
func (m *Market) Reload() (Report, error) {
	return m.Import(m.Export())
}

func (m *Market) resetIndexes() {
	if m.placer != nil {
		for _, p := range m.plotReg.All() {
			if p.Ghost != "" {
				m.placer.DespawnGhost(p.Ghost)
			}
		}
	}
	m.init()
}

// Check verifies every market invariant and reports the first violations.
func (m *Market) Check() error {
	var errs []error
	if err := m.traders.Check(); err != nil {
		errs = append(errs, err)
	}
	for _, t := range m.traders.All() {
		p, ok := m.plotReg.Get(t.PlotID)
		if !ok || p.TraderID != t.ID {
			errs = append(errs, fmt.Errorf("trader %s: plot %s does not point back", t.ID, t.PlotID))
		}
		c := m.contents(t)
		if t.State == model.Ready && (!c.HasAnyCompletePair() || c.HasUnpricedProduct()) {
			errs = append(errs, fmt.Errorf("trader %s: ready without a complete offer", t.ID))
		}
		for _, s := range slots.Blocked() {
			if it, ok := m.boxes.ItemAt(t.Stand, s); !ok || it.ID != m.cfg.BlockItem {
				errs = append(errs, fmt.Errorf("trader %s: slot %d not blocked", t.ID, s))
				break
			}
		}
	}
	all := m.plotReg.All()
	for i, p := range all {
		if p.Occupied() == (p.Ghost != "") {
			errs = append(errs, fmt.Errorf("plot %s: occupancy and ghost disagree", p.ID))
		}
		if p.Occupied() {
			if t, ok := m.traders.Get(p.TraderID); !ok || t.PlotID != p.ID {
				errs = append(errs, fmt.Errorf("plot %s: trader %s does not point back", p.ID, p.TraderID))
			}
		}
		for _, q := range all[i+1:] {
			if p.Pos.Dist(q.Pos) < p.Radius+q.Radius {
				errs = append(errs, fmt.Errorf("plots %s and %s overlap", p.ID, q.ID))
			}
		}
	}
	return errors.Join(errs...)
}
