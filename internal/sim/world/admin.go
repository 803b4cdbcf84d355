package world

import (
	"context"
	"errors"
	"fmt"

	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/registry"
)

type adminReq struct {
	Name string
	Run  func(tick uint64) (any, error)
	Resp chan adminResp
}

type adminResp struct {
	Tick  uint64
	Value any
	Err   error
}

// request hands fn to the world loop goroutine and waits for its answer.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func request[T any](ctx context.Context, w *World, name string, fn func(tick uint64) (T, error)) (T, error) {
	var zero T
	if w == nil || w.admin == nil {
		return zero, errors.New("admin not available")
	}
	resp := make(chan adminResp, 1)
	req := adminReq{
		Name: name,
		Run:  func(tick uint64) (any, error) { return fn(tick) },
		Resp: resp,
	}

	select {
	case w.admin <- req:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-resp:
		v, _ := r.Value.(T)
		return v, r.Err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (w *World) handleAdminRequests(reqs []adminReq) {
	if len(reqs) == 0 {
		return
	}
	cur := w.tick.Load()
	tick := uint64(0)
	if cur > 0 {
		tick = cur - 1
	}
	for _, r := range reqs {
		v, err := w.runAdmin(r, tick)
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- adminResp{Tick: tick, Value: v, Err: err}:
		default:
			// Client timed out; don't block the sim loop.
		}
	}
}

func (w *World) runAdmin(r adminReq, tick uint64) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("admin %s: %v", r.Name, rec)
			w.log.Error().Str("op", r.Name).Interface("panic", rec).Msg("admin request panicked")
		}
	}()
	return r.Run(tick)
}

func (w *World) RequestState(ctx context.Context) (StateView, error) {
	return request(ctx, w, "state", func(tick uint64) (StateView, error) { return w.stateView(tick), nil })
}

func (w *World) RequestPlots(ctx context.Context) ([]PlotView, error) {
	return request(ctx, w, "plots", func(uint64) ([]PlotView, error) { return w.plotViews(), nil })
}

func (w *World) RequestTraders(ctx context.Context) ([]TraderView, error) {
	return request(ctx, w, "traders", func(uint64) ([]TraderView, error) { return w.traderViews(), nil })
}

func (w *World) RequestCreatePlot(ctx context.Context, pos model.Vec3, force bool) (PlotView, error) {
	return request(ctx, w, "create_plot", func(tick uint64) (PlotView, error) { return w.adminCreatePlot(tick, pos, force) })
}

func (w *World) RequestMovePlot(ctx context.Context, id model.PlotID, pos model.Vec3) (PlotView, error) {
	return request(ctx, w, "move_plot", func(tick uint64) (PlotView, error) { return w.adminMovePlot(tick, id, pos) })
}

func (w *World) RequestRotatePlot(ctx context.Context, id model.PlotID) (PlotView, error) {
	return request(ctx, w, "rotate_plot", func(tick uint64) (PlotView, error) { return w.adminRotatePlot(tick, id) })
}

func (w *World) RequestRemovePlot(ctx context.Context, id model.PlotID, force bool) error {
	_, err := request(ctx, w, "remove_plot", func(tick uint64) (struct{}, error) {
		return struct{}{}, w.adminRemovePlot(tick, id, force)
	})
	return err
}

func (w *World) RequestRemoveTrader(ctx context.Context, id model.TraderID) error {
	_, err := request(ctx, w, "remove_trader", func(tick uint64) (struct{}, error) {
		return struct{}{}, w.adminRemoveTrader(tick, id)
	})
	return err
}

func (w *World) RequestClearEmptyPlots(ctx context.Context) (int, error) {
	return request(ctx, w, "clear_empty_plots", w.adminClearEmptyPlots)
}

func (w *World) RequestClearEmptyTraders(ctx context.Context) (int, error) {
	return request(ctx, w, "clear_empty_traders", w.adminClearEmptyTraders)
}

func (w *World) RequestClearAll(ctx context.Context) (ClearAllResult, error) {
	return request(ctx, w, "clear_all", w.adminClearAll)
}

func (w *World) RequestReload(ctx context.Context) (registry.Report, error) {
	return request(ctx, w, "reload", w.adminReload)
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot of the
// last completed tick.
func (w *World) RequestSnapshot(ctx context.Context) (uint64, error) {
	return request(ctx, w, "snapshot", func(tick uint64) (uint64, error) {
		return tick, w.enqueueSnapshot(tick)
	})
}

// RequestSweep runs the inactivity sweep now.
func (w *World) RequestSweep(ctx context.Context) (int, error) {
	return request(ctx, w, "sweep", w.sweep)
}

type ClearAllResult struct {
	Plots   int `json:"plots"`
	Traders int `json:"traders"`
}

func (w *World) adminCreatePlot(tick uint64, pos model.Vec3, force bool) (PlotView, error) {
	p, err := w.market.CreatePlot(pos, force)
	if err != nil {
		return PlotView{}, err
	}
	w.auditPlot(tick, adminActor, "PLOT_CREATE", p, map[string]any{"force": force})
	return w.plotView(p), nil
}

func (w *World) adminMovePlot(tick uint64, id model.PlotID, pos model.Vec3) (PlotView, error) {
	if err := w.market.MovePlot(id, pos); err != nil {
		return PlotView{}, err
	}
	p, _ := w.market.Plots().Get(id)
	w.auditPlot(tick, adminActor, "PLOT_MOVE", p, nil)
	return w.plotView(p), nil
}

func (w *World) adminRotatePlot(tick uint64, id model.PlotID) (PlotView, error) {
	rot, err := w.market.RotatePlot(id)
	if err != nil {
		return PlotView{}, err
	}
	p, _ := w.market.Plots().Get(id)
	w.auditPlot(tick, adminActor, "PLOT_ROTATE", p, map[string]any{"degrees": rot.Degrees()})
	return w.plotView(p), nil
}

func (w *World) adminRemovePlot(tick uint64, id model.PlotID, force bool) error {
	p, ok := w.market.Plots().Get(id)
	if !ok {
		return model.Placement(model.UnknownPlot, "")
	}
	snap := *p
	if err := w.market.RemovePlot(id, force); err != nil {
		return err
	}
	details := map[string]any{"force": force}
	if snap.TraderID != "" {
		details["trader"] = string(snap.TraderID)
	}
	w.auditPlot(tick, adminActor, "PLOT_REMOVE", &snap, details)
	return nil
}

func (w *World) adminRemoveTrader(tick uint64, id model.TraderID) error {
	t, ok := w.market.Traders().Get(id)
	if !ok {
		return model.Validation(model.NoTrader, fmt.Sprintf("no trader %s", id))
	}
	owner := t.Owner
	if err := w.market.ForceRemoveTrader(id); err != nil {
		return err
	}
	w.audit(AuditEntry{Tick: tick, Actor: adminActor, Action: "TRADER_REMOVE", Target: string(id), Details: map[string]any{"owner": string(owner)}})
	w.Notify(owner, "Your shop was removed by an administrator.")
	return nil
}

func (w *World) adminClearEmptyPlots(tick uint64) (int, error) {
	n, err := w.market.ClearEmptyPlots()
	w.auditScan(tick, "CLEAR_EMPTY_PLOTS", n, err)
	return n, err
}

func (w *World) adminClearEmptyTraders(tick uint64) (int, error) {
	n, err := w.market.ClearEmptyTraders()
	w.auditScan(tick, "CLEAR_EMPTY_TRADERS", n, err)
	return n, err
}

func (w *World) adminClearAll(tick uint64) (ClearAllResult, error) {
	plots, traders, err := w.market.ClearAll()
	w.auditScan(tick, "CLEAR_ALL", plots+traders, err)
	return ClearAllResult{Plots: plots, Traders: traders}, err
}

func (w *World) adminReload(tick uint64) (registry.Report, error) {
	rep, err := w.market.Reload()
	w.auditScan(tick, "RELOAD", rep.Relinked+rep.DroppedTraders+rep.OrphanCosts, err)
	if err != nil {
		w.log.Warn().Err(err).Msg("reload reported problems")
	}
	return rep, err
}

func (w *World) auditScan(tick uint64, action string, n int, err error) {
	e := AuditEntry{Tick: tick, Actor: adminActor, Action: action, Details: map[string]any{"count": n}}
	if err != nil {
		e.Reason = err.Error()
	}
	w.audit(e)
}
