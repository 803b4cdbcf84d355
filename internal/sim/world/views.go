package world

import (
	"sort"

	"github.com/dustin/go-humanize"

	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/plots"
)

type StateView struct {
	WorldID    string `json:"world_id"`
	Tick       uint64 `json:"tick"`
	Plots      int    `json:"plots"`
	EmptyPlots int    `json:"empty_plots"`
	Traders    int    `json:"traders"`
	Open       int    `json:"open_traders"`
	Players    int    `json:"players"`
	Online     int    `json:"online"`
	Containers int    `json:"containers"`
	Ghosts     int    `json:"ghosts"`
}

type PlotView struct {
	ID       string     `json:"id"`
	Pos      [3]float64 `json:"pos"`
	Radius   float64    `json:"radius"`
	Rotation int        `json:"rotation_deg"`
	TraderID string     `json:"trader_id,omitempty"`
	Ghost    string     `json:"ghost,omitempty"`
	HostPos  [3]float64 `json:"host_pos"`
	StandPos [3]float64 `json:"stand_pos"`
}

type TraderView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Owner     string     `json:"owner"`
	OwnerName string     `json:"owner_name"`
	State     string     `json:"state"`
	PlotID    string     `json:"plot_id"`
	Pos       [3]float64 `json:"pos"`
	Online    bool       `json:"online"`
	LastSeen  string     `json:"last_seen,omitempty"`
	Offers    []Offer    `json:"offers"`
	Listing   []string   `json:"listing"`
	Storage   string     `json:"storage"`
}

func (w *World) stateView(tick uint64) StateView {
	v := StateView{
		WorldID:    w.cfg.ID,
		Tick:       tick,
		Plots:      w.market.Plots().Len(),
		Traders:    w.market.Traders().Len(),
		Players:    len(w.players),
		Online:     len(w.clients),
		Containers: len(w.store.Export()),
		Ghosts:     len(w.actors.ghosts),
	}
	for _, p := range w.market.Plots().All() {
		if !p.Occupied() {
			v.EmptyPlots++
		}
	}
	for _, t := range w.market.Traders().All() {
		if t.State == model.Ready {
			v.Open++
		}
	}
	return v
}

func (w *World) plotViews() []PlotView {
	all := w.market.Plots().All()
	out := make([]PlotView, 0, len(all))
	for _, p := range all {
		out = append(out, w.plotView(p))
	}
	return out
}

func (w *World) plotView(p *model.Plot) PlotView {
	a := plots.AnchorsFor(p)
	v := PlotView{
		ID:       string(p.ID),
		Pos:      vecArray(p.Pos),
		Radius:   p.Radius,
		Rotation: p.Rotation.Degrees(),
		TraderID: string(p.TraderID),
		Ghost:    string(p.Ghost),
		HostPos:  vecArray(a.Host),
		StandPos: vecArray(a.Stand),
	}
	if g, ok := w.actors.ghost(p.Ghost); ok {
		v.HostPos = vecArray(g.Pos)
	}
	return v
}

// traderViews lists traders by owner name with humanized listings.
func (w *World) traderViews() []TraderView {
	all := w.market.Traders().All()
	out := make([]TraderView, 0, len(all))
	for _, t := range all {
		v := TraderView{
			ID:        string(t.ID),
			Name:      t.Name,
			Owner:     string(t.Owner),
			OwnerName: t.OwnerName,
			State:     t.State.String(),
			PlotID:    string(t.PlotID),
			Offers:    w.offers(t),
			Listing:   []string{},
			Storage:   w.summarize(t.Storage),
		}
		if p, ok := w.market.Plots().Get(t.PlotID); ok {
			v.Pos = vecArray(p.Pos)
		}
		if at, online, ok := w.lastSeen(t.Owner); ok {
			v.Online = online
			if !online && !at.IsZero() {
				v.LastSeen = humanize.RelTime(at, w.now(), "ago", "from now")
			}
		}
		for _, o := range v.Offers {
			line := w.describe(o.Product)
			if !o.Cost.Empty() {
				line += " for " + w.describe(o.Cost)
			}
			v.Listing = append(v.Listing, line)
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OwnerName < out[j].OwnerName })
	return out
}
