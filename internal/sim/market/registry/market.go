// Package registry owns the market's plots and traders as one constructed
// object, keeping the plot and trader back-references symmetric.
package registry

import (
	"github.com/rs/zerolog"

	"plotbazaar.io/internal/sim/market/containers"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/plots"
	"plotbazaar.io/internal/sim/market/slots"
	"plotbazaar.io/internal/sim/market/trade"
	"plotbazaar.io/internal/sim/market/traders"
	"plotbazaar.io/internal/sim/market/validate"
)

// Containers is the container store as the market uses it.
type Containers interface {
	validate.Containers
	trade.Containers
	IsEmpty(c model.ContainerID) bool
	Exists(c model.ContainerID) bool
	Create(id model.ContainerID, kind containers.Kind, owner model.PlayerID, size int) (*containers.Container, error)
	Destroy(id model.ContainerID)
}

type Config struct {
	PlotRadius       float64
	MaxPrice         int
	ClaimCost        model.Item
	AllowPlayerPlots bool
	BlockItem        string
	DropEmptyOnLoad  bool
}

func DefaultConfig() Config {
	return Config{PlotRadius: 2.3, MaxPrice: 4000, BlockItem: "blocked_slot"}
}

type Deps struct {
	Boxes  Containers
	Placer plots.Placer
	Notify trade.Notifier
	Names  trade.Names
	Log    zerolog.Logger
}

type Market struct {
	cfg       Config
	placer    plots.Placer
	boxes     Containers
	plotReg   *plots.Registry
	placement *plots.Service
	traders   *traders.Registry
	engine    *trade.Engine
	validator *validate.Validator
	notify    trade.Notifier
	names     trade.Names
	log       zerolog.Logger
}

func New(cfg Config, d Deps) *Market {
	def := DefaultConfig()
	if cfg.PlotRadius <= 0 {
		cfg.PlotRadius = def.PlotRadius
	}
	if cfg.MaxPrice <= 0 {
		cfg.MaxPrice = def.MaxPrice
	}
	if cfg.BlockItem == "" {
		cfg.BlockItem = def.BlockItem
	}
	if d.Names == nil {
		d.Names = func(id string) string { return id }
	}
	m := &Market{cfg: cfg, placer: d.Placer, boxes: d.Boxes, notify: d.Notify, names: d.Names, log: d.Log}
	m.init()
	return m
}

func (m *Market) init() {
	m.plotReg = plots.NewRegistry(m.cfg.PlotRadius)
	m.placement = plots.NewService(m.plotReg, m.placer)
	m.traders = traders.NewRegistry()
	m.engine = trade.NewEngine(m.boxes, m.notify, m.names)
	m.validator = validate.New(m.traders, m.boxes, m.engine, m.log)
}

// Close tears the market down. Containers of live traders are released.
func (m *Market) Close() {
	for _, t := range m.traders.All() {
		m.destroyTrader(t)
	}
	for _, p := range m.plotReg.All() {
		_ = m.placement.Remove(p.ID)
	}
}

func (m *Market) Config() Config             { return m.cfg }
func (m *Market) Plots() *plots.Registry     { return m.plotReg }
func (m *Market) Traders() *traders.Registry { return m.traders }

// Handle classifies an intercepted inventory mutation.
func (m *Market) Handle(ev validate.Event) validate.Verdict {
	return m.validator.Handle(ev)
}

// Commit settles state after the host applied an accepted mutation.
func (m *Market) Commit(v validate.Verdict, ev validate.Event) {
	m.validator.Commit(v, ev)
}

// TraderAt returns the trader standing on the plot containing pos.
func (m *Market) TraderAt(pos model.Vec3) (*model.Trader, *model.Plot, bool) {
	p, ok := m.plotReg.FindContaining(pos)
	if !ok {
		return nil, nil, false
	}
	if !p.Occupied() {
		return nil, p, false
	}
	t, ok := m.traders.Get(p.TraderID)
	return t, p, ok
}

// IsEmpty reports whether a trader holds nothing its owner could lose: no
// products on the stand and nothing in storage.
func (m *Market) IsEmpty(t *model.Trader) bool {
	for _, s := range slots.Products() {
		if _, ok := m.boxes.ItemAt(t.Stand, s); ok {
			return false
		}
	}
	return m.boxes.IsEmpty(t.Storage)
}

func (m *Market) contents(t *model.Trader) traders.Contents {
	return traders.Inspect(m.boxes, t.Stand)
}

func (m *Market) destroyTrader(t *model.Trader) {
	m.traders.Remove(t.ID)
	if t.PlotID != "" {
		m.placement.Detach(t.PlotID)
	}
	m.boxes.Destroy(t.Stand)
	m.boxes.Destroy(t.Storage)
	m.log.Info().Str("trader", string(t.ID)).Str("owner", string(t.Owner)).Msg("trader destroyed")
}
