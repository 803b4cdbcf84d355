package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/world"
)

const metricsNamespace = "plotbazaar"

// newMetricsRegistry exposes the world and index counters. Every collector
// reads the latest published snapshot when scraped.
func newMetricsRegistry(w *world.World, idx runtimeIndex) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	worldLabel := prometheus.Labels{"world": w.ID()}

	gauge := func(name, help string, labels prometheus.Labels, fn func(world.WorldMetrics) float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: merge(worldLabel, labels),
		}, func() float64 { return fn(w.Metrics()) }))
	}
	counter := func(name, help string, labels prometheus.Labels, fn func(world.WorldMetrics) uint64) {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: merge(worldLabel, labels),
		}, func() float64 { return float64(fn(w.Metrics())) }))
	}

	gauge("world_tick", "Current world tick.", nil, func(m world.WorldMetrics) float64 {
		if m.Tick != 0 {
			return float64(m.Tick)
		}
		return float64(w.CurrentTick())
	})
	gauge("players", "Known and connected players.", prometheus.Labels{"state": "known"},
		func(m world.WorldMetrics) float64 { return float64(m.Players) })
	gauge("players", "Known and connected players.", prometheus.Labels{"state": "online"},
		func(m world.WorldMetrics) float64 { return float64(m.Online) })
	gauge("plots", "Plots in the world.", nil,
		func(m world.WorldMetrics) float64 { return float64(m.Plots) })

	for s := model.WaitingForItem; s <= model.Ready; s++ {
		name := s.String()
		gauge("traders", "Traders by state.", prometheus.Labels{"state": name},
			func(m world.WorldMetrics) float64 { return float64(m.TradersByState[name]) })
	}

	for _, q := range []struct {
		name string
		fn   func(world.QueueDepths) int
	}{
		{"inbox", func(d world.QueueDepths) int { return d.Inbox }},
		{"join", func(d world.QueueDepths) int { return d.Join }},
		{"leave", func(d world.QueueDepths) int { return d.Leave }},
		{"admin", func(d world.QueueDepths) int { return d.Admin }},
	} {
		fn := q.fn
		gauge("queue_depth", "Channel backlog depth.", prometheus.Labels{"queue": q.name},
			func(m world.WorldMetrics) float64 { return float64(fn(m.QueueDepths)) })
	}

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "step_seconds",
		Help:        "Last tick step duration in seconds.",
		ConstLabels: worldLabel,
	}, func() float64 { return w.Metrics().StepMS / 1000 }))

	for _, e := range []struct {
		kind string
		fn   func(world.WorldMetrics) uint64
	}{
		{"join", func(m world.WorldMetrics) uint64 { return m.JoinsTotal }},
		{"mutation", func(m world.WorldMetrics) uint64 { return m.MutationsTotal }},
		{"rejected", func(m world.WorldMetrics) uint64 { return m.RejectedTotal }},
		{"command", func(m world.WorldMetrics) uint64 { return m.CommandsTotal }},
		{"purchase", func(m world.WorldMetrics) uint64 { return m.PurchasesTotal }},
		{"swept", func(m world.WorldMetrics) uint64 { return m.SweptTotal }},
		{"snapshot", func(m world.WorldMetrics) uint64 { return m.SnapshotsTotal }},
	} {
		counter("events_total", "World events by kind.", prometheus.Labels{"kind": e.kind}, e.fn)
	}
	counter("frames_total", "Outbound frames sent or dropped on full client queues.", prometheus.Labels{"result": "sent"},
		func(m world.WorldMetrics) uint64 { return m.FramesSent })
	counter("frames_total", "Outbound frames sent or dropped on full client queues.", prometheus.Labels{"result": "dropped"},
		func(m world.WorldMetrics) uint64 { return m.FramesDropped })

	if idx != nil {
		registerIndexMetrics(reg, idx)
	}
	return reg
}

func registerIndexMetrics(reg *prometheus.Registry, idx runtimeIndex) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "index",
		Name:        "queue_depth",
		Help:        "Index writer backlog.",
		ConstLabels: prometheus.Labels{"dialect": idx.Stats().Dialect},
	}, func() float64 { return float64(idx.Stats().QueueDepth) }))

	for _, d := range []struct {
		kind string
		fn   func() uint64
	}{
		{"audit", func() uint64 { return idx.Stats().DropAuditTotal }},
		{"receipt", func() uint64 { return idx.Stats().DropReceiptTotal }},
		{"snapshot", func() uint64 { return idx.Stats().DropSnapshotTotal }},
	} {
		fn := d.fn
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "index",
			Name:        "dropped_total",
			Help:        "Index writes dropped on a full queue.",
			ConstLabels: prometheus.Labels{"kind": d.kind},
		}, func() float64 { return float64(fn()) }))
	}
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "index",
		Name:      "write_fail_total",
		Help:      "Index writes that failed.",
	}, func() float64 { return float64(idx.Stats().WriteFailTotal) }))
}

func metricsHandler(w *world.World, idx runtimeIndex) http.Handler {
	return promhttp.HandlerFor(newMetricsRegistry(w, idx), promhttp.HandlerOpts{})
}

func merge(a, b prometheus.Labels) prometheus.Labels {
	out := make(prometheus.Labels, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
