package indexdb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"plotbazaar.io/internal/sim/catalogs"
	"plotbazaar.io/internal/sim/tuning"
	"plotbazaar.io/internal/sim/world"
)

// UpsertCatalogs stores the item catalog and the effective tuning so index
// readers can resolve ids without the server's config directory.
func (s *Index) UpsertCatalogs(ctx context.Context, items *catalogs.ItemCatalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if items != nil {
		defs := make([]catalogs.ItemDef, 0, len(items.Palette))
		for _, id := range items.Palette {
			defs = append(defs, items.Defs[id])
		}
		if b, err := json.Marshal(defs); err == nil {
			rows = append(rows, kv{name: "items", digest: items.Digest, json: b})
		}
	}
	if b, err := json.Marshal(tune); err == nil {
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	metaQ := `INSERT INTO meta(key,value) VALUES(` + s.placeholders(2) + `) ON CONFLICT (key) DO UPDATE SET value=excluded.value`
	if _, err := tx.ExecContext(ctx, metaQ, "schema_version", "1"); err != nil {
		return err
	}
	catQ := `INSERT INTO catalogs(name,digest,json,updated_at) VALUES(` + s.placeholders(4) +
		`) ON CONFLICT (name) DO UPDATE SET digest=excluded.digest, json=excluded.json, updated_at=excluded.updated_at`
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, catQ, r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type ReceiptFilter struct {
	Trader string
	Buyer  string
	Seller string
	Limit  int
}

// Receipts lists purchases newest first.
func (s *Index) Receipts(ctx context.Context, f ReceiptFilter) ([]world.ReceiptEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = %s", col, s.bind(len(args))))
	}
	add("trader_id", f.Trader)
	add("buyer", f.Buyer)
	add("seller", f.Seller)

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := `SELECT id,tick,at,trader_id,seller,buyer,product_slot,product_item,product_amount,cost_item,cost_amount,state_after FROM receipts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY tick DESC, id LIMIT %s", s.bind(len(args)))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	var out []world.ReceiptEntry
	for rows.Next() {
		var (
			e    world.ReceiptEntry
			tick int64
		)
		if err := rows.Scan(&e.ID, &tick, &e.At, &e.Trader, &e.Seller, &e.Buyer, &e.ProductSlot,
			&e.ProductItem, &e.ProductAmount, &e.CostItem, &e.CostAmount, &e.StateAfter); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		e.Tick = uint64(tick)
		out = append(out, e)
	}
	return out, rows.Err()
}

type SnapshotInfo struct {
	Tick       uint64 `json:"tick"`
	Path       string `json:"path"`
	Plots      int    `json:"plots"`
	Traders    int    `json:"traders"`
	Containers int    `json:"containers"`
	Players    int    `json:"players"`
	RecordedAt string `json:"recorded_at"`
}

func (s *Index) Snapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT tick,path,plots,traders,containers,players,recorded_at FROM snapshots ORDER BY tick DESC LIMIT ` + s.bind(1)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var (
			si   SnapshotInfo
			tick int64
		)
		if err := rows.Scan(&tick, &si.Path, &si.Plots, &si.Traders, &si.Containers, &si.Players, &si.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		si.Tick = uint64(tick)
		out = append(out, si)
	}
	return out, rows.Err()
}
