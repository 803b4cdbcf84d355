package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"plotbazaar.io/internal/persistence/snapshot"
	"plotbazaar.io/internal/sim/world"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type Config struct {
	Dialect     Dialect
	SQLitePath  string
	PostgresDSN string
	QueueSize   int
	Log         zerolog.Logger
}

// ConfigFromEnv reads DB_DIALECT, DB_SQLITE_PATH and DB_POSTGRES_DSN
// (DATABASE_URL as fallback). dataDir roots the default sqlite path.
func ConfigFromEnv(dataDir string) (Config, error) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv("DB_DIALECT")))
	if raw == "" {
		raw = string(DialectSQLite)
	}
	cfg := Config{Dialect: Dialect(raw)}
	switch cfg.Dialect {
	case DialectSQLite:
		cfg.SQLitePath = strings.TrimSpace(os.Getenv("DB_SQLITE_PATH"))
		if cfg.SQLitePath == "" {
			cfg.SQLitePath = filepath.Join(dataDir, "index", "market.sqlite")
		}
	case DialectPostgres:
		cfg.PostgresDSN = strings.TrimSpace(os.Getenv("DB_POSTGRES_DSN"))
		if cfg.PostgresDSN == "" {
			cfg.PostgresDSN = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		}
		if cfg.PostgresDSN == "" {
			return cfg, errors.New("DB_DIALECT=postgres requires DB_POSTGRES_DSN or DATABASE_URL")
		}
	default:
		return cfg, fmt.Errorf("unsupported DB_DIALECT %q", raw)
	}
	return cfg, nil
}

// Index is a secondary, append-mostly read model of purchases, audits and
// snapshots. Writes are queued to a single writer goroutine and dropped when
// the queue is full; the JSONL logs remain the source of truth.
type Index struct {
	dialect Dialect
	db      *sql.DB
	log     zerolog.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAudit    atomic.Uint64
	dropReceipt  atomic.Uint64
	dropSnapshot atomic.Uint64
	writeFail    atomic.Uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqReceipt
	reqSnapshot
)

type req struct {
	kind reqKind

	audit    world.AuditEntry
	receipt  world.ReceiptEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	Plots      int
	Traders    int
	Containers int
	Players    int
	RecordedAt string
}

type Stats struct {
	Dialect           string `json:"dialect"`
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropAuditTotal    uint64 `json:"drop_audit_total"`
	DropReceiptTotal  uint64 `json:"drop_receipt_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	WriteFailTotal    uint64 `json:"write_fail_total"`
}

func Open(ctx context.Context, cfg Config) (*Index, error) {
	var driver, dsn string
	switch cfg.Dialect {
	case DialectSQLite, "":
		cfg.Dialect = DialectSQLite
		if cfg.SQLitePath == "" {
			return nil, errors.New("empty sqlite path")
		}
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		driver, dsn = "sqlite", cfg.SQLitePath
	case DialectPostgres:
		driver, dsn = "pgx", cfg.PostgresDSN
	default:
		return nil, fmt.Errorf("unsupported dialect %q", cfg.Dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Dialect, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.Dialect, err)
	}
	if cfg.Dialect == DialectSQLite {
		if err := initPragmas(pingCtx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := initSchema(pingCtx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = 65536
	}
	s := &Index{
		dialect: cfg.Dialect,
		db:      db,
		log:     cfg.Log,
		ch:      make(chan req, size),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	s.log.Info().Str("dialect", string(cfg.Dialect)).Msg("index opened")
	return s, nil
}

func (s *Index) Dialect() Dialect { return s.dialect }

func (s *Index) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Index) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *Index) WriteAudit(entry world.AuditEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry}, &s.dropAudit)
	return nil
}

func (s *Index) WriteReceipt(entry world.ReceiptEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqReceipt, receipt: entry}, &s.dropReceipt)
	return nil
}

func (s *Index) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	r := snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		Plots:      len(snap.Plots),
		Traders:    len(snap.Traders),
		Containers: len(snap.Containers),
		Players:    len(snap.Players),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

func (s *Index) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		Dialect:           string(s.dialect),
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropAuditTotal:    s.dropAudit.Load(),
		DropReceiptTotal:  s.dropReceipt.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		WriteFailTotal:    s.writeFail.Load(),
	}
}

// bind returns the placeholder for the pos-th (1-based) argument.
func (s *Index) bind(pos int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (s *Index) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.bind(i + 1)
	}
	return strings.Join(ph, ",")
}
