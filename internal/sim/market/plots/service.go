package plots

import (
	"plotbazaar.io/internal/sim/market/model"
)

// Placer moves the visible parts of a plot. It has no say in whether a
// placement is legal.
type Placer interface {
	SpawnGhost(p *model.Plot) model.ActorID
	DespawnGhost(id model.ActorID)
	Align(p *model.Plot)
}

// Service validates and applies every plot mutation.
type Service struct {
	reg    *Registry
	placer Placer
}

func NewService(reg *Registry, placer Placer) *Service {
	if placer == nil {
		placer = nopPlacer{}
	}
	return &Service{reg: reg, placer: placer}
}

func (s *Service) Registry() *Registry { return s.reg }

// Create claims a new plot at pos, snapped to the tile grid.
//
// Without force a position already inside a plot fails with AlreadyOccupied.
// With force the containing plot is replaced when it is empty and the call
// fails with NotEmpty when a trader stands on it. Overlap with any other
// plot always fails.
func (s *Service) Create(pos model.Vec3, force bool) (*model.Plot, error) {
	pos = pos.Snap()
	var replace model.PlotID
	if existing, ok := s.reg.FindContaining(pos); ok {
		if !force {
			return nil, model.Placement(model.AlreadyOccupied, "")
		}
		if existing.Occupied() {
			return nil, model.Placement(model.NotEmpty, "")
		}
		replace = existing.ID
	}
	if s.reg.WouldOverlap(pos, replace) {
		return nil, model.Placement(model.WouldOverlap, "")
	}
	if replace != "" {
		if err := s.Remove(replace); err != nil {
			return nil, err
		}
	}
	p := &model.Plot{ID: model.NewPlotID(), Pos: pos, Radius: s.reg.radius}
	s.reg.insert(p)
	p.Ghost = s.placer.SpawnGhost(p)
	s.placer.Align(p)
	return p, nil
}

// Restore re-inserts a persisted plot. Its radius is reset to the registry's
// and the overlap rule still applies. The plot comes back unattached; the
// caller relinks traders once they are loaded.
func (s *Service) Restore(p model.Plot) (*model.Plot, error) {
	if _, ok := s.reg.Get(p.ID); ok || p.ID == "" {
		return nil, model.Placement(model.AlreadyOccupied, "duplicate plot id "+string(p.ID))
	}
	if s.reg.WouldOverlap(p.Pos, p.ID) {
		return nil, model.Placement(model.WouldOverlap, "")
	}
	cp := p
	cp.Radius = s.reg.radius
	cp.Rotation = cp.Rotation.Norm()
	cp.TraderID = ""
	s.reg.insert(&cp)
	cp.Ghost = s.placer.SpawnGhost(&cp)
	s.placer.Align(&cp)
	return &cp, nil
}

func (s *Service) Move(id model.PlotID, pos model.Vec3) error {
	p, ok := s.reg.Get(id)
	if !ok {
		return model.Placement(model.UnknownPlot, "")
	}
	pos = pos.Snap()
	if s.reg.WouldOverlap(pos, id) {
		return model.Placement(model.WouldOverlap, "")
	}
	s.reg.relocate(p, pos)
	s.placer.Align(p)
	return nil
}

func (s *Service) Rotate(id model.PlotID) (model.Rotation, error) {
	p, ok := s.reg.Get(id)
	if !ok {
		return 0, model.Placement(model.UnknownPlot, "")
	}
	p.Rotation = p.Rotation.Next()
	s.placer.Align(p)
	return p.Rotation, nil
}

// Realign re-applies the current placement without changing it.
func (s *Service) Realign(id model.PlotID) {
	if p, ok := s.reg.Get(id); ok {
		s.placer.Align(p)
	}
}

// Remove deletes an empty plot. Callers destroy the trader first.
func (s *Service) Remove(id model.PlotID) error {
	p, ok := s.reg.Get(id)
	if !ok {
		return model.Placement(model.UnknownPlot, "")
	}
	if p.Occupied() {
		return model.Placement(model.NotEmpty, "")
	}
	if p.Ghost != "" {
		s.placer.DespawnGhost(p.Ghost)
		p.Ghost = ""
	}
	s.reg.delete(id)
	return nil
}

// Attach seats a trader on an empty plot and hides the ghost.
func (s *Service) Attach(id model.PlotID, trader model.TraderID) error {
	p, ok := s.reg.Get(id)
	if !ok {
		return model.Placement(model.UnknownPlot, "")
	}
	if p.Occupied() {
		return model.Placement(model.AlreadyOccupied, "This plot already has a shop!")
	}
	if p.Ghost != "" {
		s.placer.DespawnGhost(p.Ghost)
		p.Ghost = ""
	}
	p.TraderID = trader
	s.placer.Align(p)
	return nil
}

// Detach clears the trader reference and shows the ghost again.
func (s *Service) Detach(id model.PlotID) {
	p, ok := s.reg.Get(id)
	if !ok || !p.Occupied() {
		return
	}
	p.TraderID = ""
	p.Ghost = s.placer.SpawnGhost(p)
	s.placer.Align(p)
}

type nopPlacer struct{}

func (nopPlacer) SpawnGhost(*model.Plot) model.ActorID { return model.NewActorID() }
func (nopPlacer) DespawnGhost(model.ActorID)           {}
func (nopPlacer) Align(*model.Plot)                    {}
