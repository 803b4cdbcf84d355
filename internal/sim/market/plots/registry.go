package plots

import (
	"sort"

	"plotbazaar.io/internal/sim/market/model"
)

// Registry owns every plot. Readers get live pointers and must not mutate
// them; all changes go through Service.
type Registry struct {
	radius float64
	plots  map[model.PlotID]*model.Plot
	seq    map[model.PlotID]uint64
	next   uint64
	grid   *spatialHash
}

func NewRegistry(radius float64) *Registry {
	return &Registry{
		radius: radius,
		plots:  map[model.PlotID]*model.Plot{},
		seq:    map[model.PlotID]uint64{},
		grid:   newSpatialHash(2 * radius),
	}
}

func (r *Registry) Radius() float64 { return r.radius }
func (r *Registry) Len() int        { return len(r.plots) }

func (r *Registry) Get(id model.PlotID) (*model.Plot, bool) {
	p, ok := r.plots[id]
	return p, ok
}

// All returns plots in creation order.
func (r *Registry) All() []*model.Plot {
	out := make([]*model.Plot, 0, len(r.plots))
	for _, p := range r.plots {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] < r.seq[out[j].ID] })
	return out
}

// FindContaining returns the plot whose circle holds pos. Plots never
// overlap, so at most one should match; ties go to the oldest plot.
func (r *Registry) FindContaining(pos model.Vec3) (*model.Plot, bool) {
	var best *model.Plot
	for _, id := range r.grid.near(pos) {
		p := r.plots[id]
		if p == nil || !p.Contains(pos) {
			continue
		}
		if best == nil || r.seq[id] < r.seq[best.ID] {
			best = p
		}
	}
	return best, best != nil
}

// WouldOverlap reports whether a plot centred at pos would come closer than
// one diameter to any plot other than exclude.
func (r *Registry) WouldOverlap(pos model.Vec3, exclude model.PlotID) bool {
	for _, id := range r.grid.near(pos) {
		if id == exclude {
			continue
		}
		p := r.plots[id]
		if p != nil && p.Pos.Dist(pos) < r.radius+p.Radius {
			return true
		}
	}
	return false
}

func (r *Registry) insert(p *model.Plot) {
	r.next++
	r.plots[p.ID] = p
	r.seq[p.ID] = r.next
	r.grid.insert(p.ID, p.Pos)
}

func (r *Registry) delete(id model.PlotID) {
	p, ok := r.plots[id]
	if !ok {
		return
	}
	r.grid.remove(id, p.Pos)
	delete(r.plots, id)
	delete(r.seq, id)
}

func (r *Registry) relocate(p *model.Plot, pos model.Vec3) {
	r.grid.remove(p.ID, p.Pos)
	p.Pos = pos
	r.grid.insert(p.ID, p.Pos)
}
