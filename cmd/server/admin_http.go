package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"plotbazaar.io/internal/persistence/indexdb"
	"plotbazaar.io/internal/protocol"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/world"
)

const adminTimeout = 5 * time.Second

var errNoIndex = errors.New("index backend disabled")

type plotRequest struct {
	ID    string     `json:"id"`
	Pos   [3]float64 `json:"pos"`
	Force bool       `json:"force"`
}

type traderRequest struct {
	ID string `json:"id"`
}

type adminFunc func(ctx context.Context, r *http.Request) (any, error)

// registerAdminRoutes mounts the loopback-only admin API. Every mutation is
// queued to the world loop and answered after the tick that ran it.
func registerAdminRoutes(mux *http.ServeMux, w *world.World, idx runtimeIndex, logger zerolog.Logger) {
	handle := func(path, method string, fn adminFunc) {
		mux.HandleFunc(path, adminHandler(method, fn, logger))
	}

	handle("/admin/v1/state", http.MethodGet, func(ctx context.Context, r *http.Request) (any, error) {
		st, err := w.RequestState(ctx)
		if err != nil {
			return nil, err
		}
		resp := struct {
			State   world.StateView    `json:"state"`
			Metrics world.WorldMetrics `json:"metrics"`
			Index   *indexdb.Stats     `json:"index,omitempty"`
		}{State: st, Metrics: w.Metrics()}
		if idx != nil {
			s := idx.Stats()
			resp.Index = &s
		}
		return resp, nil
	})
	handle("/admin/v1/plots", http.MethodGet, func(ctx context.Context, r *http.Request) (any, error) {
		return w.RequestPlots(ctx)
	})
	handle("/admin/v1/plots/create", http.MethodPost, func(ctx context.Context, r *http.Request) (any, error) {
		var req plotRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return w.RequestCreatePlot(ctx, vec(req.Pos), req.Force)
	})
	handle("/admin/v1/plots/move", http.MethodPost, func(ctx context.Context, r *http.Request) (any, error) {
		var req plotRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return w.RequestMovePlot(ctx, model.PlotID(req.ID), vec(req.Pos))
	})
	handle("/admin/v1/plots/rotate", http.MethodPost, func(ctx context.Context, r *http.Request) (any, error) {
		var req plotRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return w.RequestRotatePlot(ctx, model.PlotID(req.ID))
	})
	handle("/admin/v1/plots/remove", http.MethodPost, func(ctx context.Context, r *http.Request) (any, error) {
		var req plotRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return map[string]any{"removed": req.ID}, w.RequestRemovePlot(ctx, model.PlotID(req.ID), req.Force)
	})
	handle("/admin/v1/traders", http.MethodGet, func(ctx context.Context, r *http.Request) (any, error) {
		return w.RequestTraders(ctx)
	})
	handle("/admin/v1/traders/remove", http.MethodPost, func(ctx context.Context, r *http.Request) (any, error) {
		var req traderRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return map[string]any{"removed": req.ID}, w.RequestRemoveTrader(ctx, model.TraderID(req.ID))
	})
	handle("/admin/v1/clear/empty-plots", http.MethodPost, func(ctx context.Context, r *http.Request) (any, error) {
		n, err := w.RequestClearEmptyPlots(ctx)
		return map[string]int{"plots": n}, err
	})
	handle("/admin/v1/clear/empty-traders", http.MethodPost, func(ctx context.Context, r *http.Request) (any, error) {
		n, err := w.RequestClearEmptyTraders(ctx)
		return map[string]int{"traders": n}, err
	})
	handle("/admin/v1/clear/all", http.MethodPost, func(ctx context.Context, r *http.Request) (any, error) {
		return w.RequestClearAll(ctx)
	})
	handle("/admin/v1/reload", http.MethodPost, func(ctx context.Context, r *http.Request) (any, error) {
		return w.RequestReload(ctx)
	})
	handle("/admin/v1/snapshot", http.MethodPost, func(ctx context.Context, r *http.Request) (any, error) {
		tick, err := w.RequestSnapshot(ctx)
		return map[string]uint64{"tick": tick}, err
	})
	handle("/admin/v1/sweep", http.MethodPost, func(ctx context.Context, r *http.Request) (any, error) {
		n, err := w.RequestSweep(ctx)
		return map[string]int{"removed": n}, err
	})
	handle("/admin/v1/receipts", http.MethodGet, func(ctx context.Context, r *http.Request) (any, error) {
		if idx == nil {
			return nil, errNoIndex
		}
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		return idx.Receipts(ctx, indexdb.ReceiptFilter{
			Trader: q.Get("trader"),
			Buyer:  q.Get("buyer"),
			Seller: q.Get("seller"),
			Limit:  limit,
		})
	})
	handle("/admin/v1/snapshots", http.MethodGet, func(ctx context.Context, r *http.Request) (any, error) {
		if idx == nil {
			return nil, errNoIndex
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		return idx.Snapshots(ctx, limit)
	})
	handle("/admin/v1/schemas", http.MethodGet, func(ctx context.Context, r *http.Request) (any, error) {
		raw, err := protocol.Schemas()
		if err != nil {
			return nil, err
		}
		out := make(map[string]json.RawMessage, len(raw))
		for typ, b := range raw {
			out[typ] = b
		}
		return out, nil
	})
}

func adminHandler(method string, fn adminFunc, logger zerolog.Logger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if r.Method != method {
			rw.Header().Set("Allow", method)
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
		defer cancel()

		v, err := fn(ctx, r)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			status, code := adminStatus(err)
			if status >= 500 {
				logger.Error().Err(err).Str("path", r.URL.Path).Msg("admin request failed")
			}
			rw.WriteHeader(status)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "code": code, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "result": v})
	}
}

// adminStatus maps market errors to HTTP statuses and wire codes.
func adminStatus(err error) (int, string) {
	var bad *badRequest
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, protocol.ErrBadRequest
	case errors.Is(err, errNoIndex):
		return http.StatusNotImplemented, protocol.ErrNoResource
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, protocol.ErrWorldBusy
	}
	code, ok := model.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError, protocol.ErrInternal
	}
	wire := protocol.WireCode(string(code))
	switch code {
	case model.UnknownPlot, model.NoTrader:
		return http.StatusNotFound, wire
	case model.Internal:
		return http.StatusInternalServerError, wire
	default:
		return http.StatusConflict, wire
	}
}

type badRequest struct{ err error }

func (e *badRequest) Error() string { return "bad request: " + e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &badRequest{err: err}
	}
	return nil
}

func vec(p [3]float64) model.Vec3 { return model.Vec3{X: p[0], Y: p[1], Z: p[2]} }
