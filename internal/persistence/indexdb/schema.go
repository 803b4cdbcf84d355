package indexdb

import (
	"context"
	"database/sql"
	"fmt"
)

func initPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// The DDL is shared by both dialects.
var schemaStmts = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS catalogs (
		name TEXT PRIMARY KEY,
		digest TEXT NOT NULL,
		json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS receipts (
		id TEXT PRIMARY KEY,
		tick BIGINT NOT NULL,
		at TEXT NOT NULL,
		trader_id TEXT NOT NULL,
		seller TEXT NOT NULL,
		buyer TEXT NOT NULL,
		product_slot INTEGER NOT NULL,
		product_item TEXT NOT NULL,
		product_amount INTEGER NOT NULL,
		cost_item TEXT NOT NULL,
		cost_amount INTEGER NOT NULL,
		state_after TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_trader_tick ON receipts(trader_id, tick)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_buyer_tick ON receipts(buyer, tick)`,
	`CREATE TABLE IF NOT EXISTS audits (
		tick BIGINT NOT NULL,
		seq INTEGER NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		target TEXT NOT NULL,
		x DOUBLE PRECISION NOT NULL,
		y DOUBLE PRECISION NOT NULL,
		z DOUBLE PRECISION NOT NULL,
		reason TEXT,
		raw_json TEXT NOT NULL,
		PRIMARY KEY (tick, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		tick BIGINT PRIMARY KEY,
		path TEXT NOT NULL,
		plots INTEGER NOT NULL,
		traders INTEGER NOT NULL,
		containers INTEGER NOT NULL,
		players INTEGER NOT NULL,
		recorded_at TEXT NOT NULL
	)`,
}

func initSchema(ctx context.Context, db *sql.DB) error {
	for _, s := range schemaStmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
