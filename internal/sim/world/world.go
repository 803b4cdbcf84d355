package world

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"plotbazaar.io/internal/logging"
	"plotbazaar.io/internal/persistence/snapshot"
	"plotbazaar.io/internal/protocol"
	"plotbazaar.io/internal/sim/catalogs"
	"plotbazaar.io/internal/sim/market/containers"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/registry"
	"plotbazaar.io/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	TickRateHz int

	// Zero disables the periodic job.
	SnapshotEveryTicks int
	SweepEveryTicks    int
	InactivityDays     int

	InventorySlots int
	StarterItems   []model.Item
	SpawnPos       model.Vec3

	Market registry.Config
}

// ConfigFromTuning maps a tuning file onto the world configuration.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	cfg := WorldConfig{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
		SweepEveryTicks:    t.SweepEveryTicks,
		InactivityDays:     t.Market.InactivityDays,
		InventorySlots:     t.Market.ContainerSlots,
		Market: registry.Config{
			PlotRadius:       t.Market.PlotRadius,
			MaxPrice:         t.Market.MaxPrice,
			AllowPlayerPlots: t.Market.AllowPlayerPlots,
			BlockItem:        t.Market.BlockSlotItem,
			DropEmptyOnLoad:  t.Market.DropEmptyOnLoad,
		},
	}
	if c := t.Market.ClaimCost; c.Item != "" && c.Count > 0 {
		cfg.Market.ClaimCost = model.Item{ID: c.Item, Amount: c.Count}
	}
	for _, it := range t.Market.StarterItems {
		cfg.StarterItems = append(cfg.StarterItems, model.Item{ID: it.Item, Amount: it.Count})
	}
	return cfg
}

type JoinRequest struct {
	PlayerID string
	Name     string
	Out      chan []byte
	Resp     chan JoinResponse
}

// JoinResponse carries the WELCOME frame, or Code/Message when the join was
// refused.
type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Code    string
	Message string
}

// ActionEnvelope is one inbound frame from a joined player. Exactly one of
// Mutate, Cmd and MoveTo is set.
type ActionEnvelope struct {
	PlayerID string
	Mutate   *protocol.MutateMsg
	Cmd      *protocol.CmdMsg
	MoveTo   *protocol.MoveToMsg
}

// World is the single-threaded host of the market.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg   WorldConfig
	items *catalogs.ItemCatalog
	log   zerolog.Logger
	now   func() time.Time

	tick atomic.Uint64

	store   *containers.Store
	market  *registry.Market
	actors  *actorBoard
	players map[model.PlayerID]*Player
	clients map[model.PlayerID]*clientState

	inbox    chan ActionEnvelope
	join     chan JoinRequest
	leave    chan string
	admin    chan adminReq
	stop     chan struct{}
	stopOnce sync.Once

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	auditLogger   AuditLogger
	receiptLogger ReceiptLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	stats   counters
	metrics atomic.Value
}

type clientState struct {
	Session string
	Out     chan []byte
}

func New(cfg WorldConfig, items *catalogs.ItemCatalog, log zerolog.Logger) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, errors.New("world: tick rate must be positive")
	}
	if cfg.InventorySlots <= 0 {
		cfg.InventorySlots = 35
	}
	if items == nil {
		items = catalogs.Defaults()
	}
	w := &World{
		cfg:     cfg,
		items:   items,
		log:     logging.Component(log, "world"),
		now:     time.Now,
		store:   containers.NewStore(items.Stack),
		actors:  newActorBoard(),
		players: map[model.PlayerID]*Player{},
		clients: map[model.PlayerID]*clientState{},
		inbox:   make(chan ActionEnvelope, 1024),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		admin:   make(chan adminReq, 64),
		stop:    make(chan struct{}),
	}
	w.market = registry.New(cfg.Market, registry.Deps{
		Boxes:  w.store,
		Placer: w.actors,
		Notify: w,
		Names:  items.Name,
		Log:    logging.Component(log, "market"),
	})
	return w, nil
}

func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetReceiptLogger(l ReceiptLogger)              { w.receiptLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

// SetClock replaces the wall clock used for last-seen times and the
// inactivity sweep. Call before Run.
func (w *World) SetClock(now func() time.Time) { w.now = now }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string { return w.cfg.ID }

func (w *World) TickRateHz() int { return w.cfg.TickRateHz }

func (w *World) Items() *catalogs.ItemCatalog { return w.items }
