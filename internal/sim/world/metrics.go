package world

import (
	"sync/atomic"
	"time"

	"plotbazaar.io/internal/sim/market/model"
)

// counters are bumped from the world loop goroutine and read anywhere.
type counters struct {
	joins     atomic.Uint64
	mutations atomic.Uint64
	rejected  atomic.Uint64
	commands  atomic.Uint64
	purchases atomic.Uint64
	swept     atomic.Uint64
	snapshots atomic.Uint64
	sent      atomic.Uint64
	dropped   atomic.Uint64
}

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players     int `json:"players"`
	Online      int `json:"online"`
	Plots       int `json:"plots"`
	Traders     int `json:"traders"`
	OpenTraders int `json:"open_traders"`

	TradersByState map[string]int `json:"traders_by_state"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	JoinsTotal     uint64 `json:"joins_total"`
	MutationsTotal uint64 `json:"mutations_total"`
	RejectedTotal  uint64 `json:"rejected_total"`
	CommandsTotal  uint64 `json:"commands_total"`
	PurchasesTotal uint64 `json:"purchases_total"`
	SweptTotal     uint64 `json:"swept_total"`
	SnapshotsTotal uint64 `json:"snapshots_total"`
	FramesSent     uint64 `json:"frames_sent_total"`
	FramesDropped  uint64 `json:"frames_dropped_total"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
	Admin int `json:"admin"`
}

func (w *World) publishMetrics(tick uint64, took time.Duration) {
	m := WorldMetrics{
		Tick:    tick,
		Players: len(w.players),
		Online:  len(w.clients),
		Plots:   w.market.Plots().Len(),
		Traders: w.market.Traders().Len(),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
			Admin: len(w.admin),
		},
		StepMS:         float64(took.Microseconds()) / 1000,
		JoinsTotal:     w.stats.joins.Load(),
		MutationsTotal: w.stats.mutations.Load(),
		RejectedTotal:  w.stats.rejected.Load(),
		CommandsTotal:  w.stats.commands.Load(),
		PurchasesTotal: w.stats.purchases.Load(),
		SweptTotal:     w.stats.swept.Load(),
		SnapshotsTotal: w.stats.snapshots.Load(),
		FramesSent:     w.stats.sent.Load(),
		FramesDropped:  w.stats.dropped.Load(),
	}
	m.TradersByState = make(map[string]int, 4)
	for _, s := range []model.TraderState{model.WaitingForItem, model.WaitingForCost, model.ReceivedCost, model.Ready} {
		m.TradersByState[s.String()] = 0
	}
	for _, t := range w.market.Traders().All() {
		m.TradersByState[t.State.String()]++
		if t.State == model.Ready {
			m.OpenTraders++
		}
	}
	w.metrics.Store(m)
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
