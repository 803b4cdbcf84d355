package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"plotbazaar.io/internal/logging"
	persistlog "plotbazaar.io/internal/persistence/log"
	"plotbazaar.io/internal/persistence/snapshot"
	"plotbazaar.io/internal/sim/catalogs"
	"plotbazaar.io/internal/sim/tuning"
	"plotbazaar.io/internal/sim/world"
	"plotbazaar.io/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "market_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml or tuning.toml (default: <configs>/tuning.yaml)")
		itemsPath  = flag.String("items", "", "path to items.yaml (default: <configs>/items.yaml)")
		envFile    = flag.String("env", ".env", "dotenv file to load before reading the environment (optional)")
		disableDB  = flag.Bool("disable_db", false, "disable the SQL index (receipts, audits, snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	envErr := loadEnv(*envFile)
	logger := logging.Component(logging.NewRuntime(), "server")
	if envErr != nil {
		logger.Warn().Err(envErr).Str("file", *envFile).Msg("env file not loaded")
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatal().Err(err).Msg("load tuning")
		}
		logger.Warn().Str("path", tp).Msg("tuning not found; using defaults")
		tune = tuning.Defaults()
	}

	ip := strings.TrimSpace(*itemsPath)
	if ip == "" {
		ip = filepath.Join(*configDir, "items.yaml")
	}
	items, err := catalogs.Load(ip)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatal().Err(err).Msg("load items")
		}
		logger.Warn().Str("path", ip).Msg("items not found; using built-in catalog")
		items = catalogs.Defaults()
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapDir := filepath.Join(worldDir, "snapshots")
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create data dir")
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Optional read-model index (does not affect the market).
	idx, err := openRuntimeIndex(ctx, worldDir, *disableDB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open index backend")
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(ctx, items, tune); err != nil {
			logger.Warn().Err(err).Msg("index backend: upsert catalogs")
		}
	}

	w, err := world.New(world.ConfigFromTuning(*worldID, tune), items, logging.Component(logger, "world"))
	if err != nil {
		logger.Fatal().Err(err).Msg("world")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(snapDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatal().Err(err).Msg("read snapshot")
		}
		rep, err := w.ImportSnapshot(snap)
		if err != nil {
			// Reconciliation drops broken records and keeps going.
			logger.Warn().Err(err).Int("dropped_traders", rep.DroppedTraders).Int("dropped_plots", rep.DroppedPlots).Msg("snapshot reconciled with losses")
		}
		logger.Info().Str("snapshot", filepath.Base(snapshotToLoad)).Uint64("tick", w.CurrentTick()).Msg("resumed from snapshot")
	}

	auditLog := persistlog.NewAuditLogger(worldDir)
	receiptLog := persistlog.NewReceiptLogger(worldDir)
	defer auditLog.Close()
	defer receiptLog.Close()
	var idxAudit world.AuditLogger
	var idxReceipt world.ReceiptLogger
	if idx != nil {
		idxAudit, idxReceipt = idx, idx
	}
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idxAudit})
	w.SetReceiptLogger(multiReceiptLogger{a: receiptLog, b: idxReceipt})

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go writeSnapshots(ctx, snapDir, snapCh, idx, logger)

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("world stopped")
		}
	}()

	wsSrv, err := ws.NewServer(w, ws.Config{
		EventsPerSecond: tune.RateLimit.EventsPerSecond,
		Burst:           tune.RateLimit.Burst,
	}, logging.Component(logger, "ws"))
	if err != nil {
		logger.Fatal().Err(err).Msg("ws server")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metricsHandler(w, idx))

	if envBool("PLOTBAZAAR_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		registerAdminRoutes(mux, w, idx, logging.Component(logger, "admin"))
	} else {
		logger.Info().Msg("admin endpoints disabled (PLOTBAZAAR_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("PLOTBAZAAR_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", *addr).Str("world", *worldID).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("ListenAndServe")
	}
}

func writeSnapshots(ctx context.Context, dir string, ch <-chan snapshot.SnapshotV1, idx runtimeIndex, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path := snapshot.PathFor(dir, snap.Header.Tick)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Error().Err(err).Uint64("tick", snap.Header.Tick).Msg("snapshot write")
				continue
			}
			logger.Debug().Str("path", path).Msg("snapshot written")
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
		}
	}
}

// loadEnv reads a dotenv file without overriding variables already set.
// A missing file is not an error.
func loadEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
