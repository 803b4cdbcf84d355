package main

import (
	"context"

	"github.com/rs/zerolog"

	"plotbazaar.io/internal/logging"
	"plotbazaar.io/internal/persistence/indexdb"
	"plotbazaar.io/internal/persistence/snapshot"
	"plotbazaar.io/internal/sim/catalogs"
	"plotbazaar.io/internal/sim/tuning"
	"plotbazaar.io/internal/sim/world"
)

type runtimeIndex interface {
	world.AuditLogger
	world.ReceiptLogger
	Close() error
	UpsertCatalogs(ctx context.Context, items *catalogs.ItemCatalog, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Receipts(ctx context.Context, f indexdb.ReceiptFilter) ([]world.ReceiptEntry, error)
	Snapshots(ctx context.Context, limit int) ([]indexdb.SnapshotInfo, error)
	Stats() indexdb.Stats
}

// openRuntimeIndex opens the SQL index chosen by DB_DIALECT. It returns a
// nil interface when indexing is disabled.
func openRuntimeIndex(ctx context.Context, worldDir string, disableDB bool, logger zerolog.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	cfg, err := indexdb.ConfigFromEnv(worldDir)
	if err != nil {
		return nil, err
	}
	cfg.Log = logging.Component(logger, "indexdb")
	idx, err := indexdb.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("dialect", string(idx.Dialect())).Msg("index backend ready")
	return idx, nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}

type multiReceiptLogger struct {
	a world.ReceiptLogger
	b world.ReceiptLogger
}

func (m multiReceiptLogger) WriteReceipt(entry world.ReceiptEntry) error {
	if m.a != nil {
		_ = m.a.WriteReceipt(entry)
	}
	if m.b != nil {
		_ = m.b.WriteReceipt(entry)
	}
	return nil
}
