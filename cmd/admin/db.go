package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"plotbazaar.io/internal/logging"
	"plotbazaar.io/internal/persistence/indexdb"
)

// dbCmd queries the purchase index without a running server. The index is
// chosen the same way the server chooses it (DB_DIALECT and friends) unless
// -db names a sqlite file.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	worldDir := worldDirFlag(fs)
	dbPath := fs.String("db", "", "sqlite index path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	trader := fs.String("trader", "", "trader id filter (receipts)")
	buyer := fs.String("buyer", "", "buyer id filter (receipts)")
	seller := fs.String("seller", "", "seller id filter (receipts)")
	table := fs.Bool("table", false, "print receipts as a table")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	var cfg indexdb.Config
	if p := strings.TrimSpace(*dbPath); p != "" {
		cfg = indexdb.Config{Dialect: indexdb.DialectSQLite, SQLitePath: p}
	} else {
		var err error
		if cfg, err = indexdb.ConfigFromEnv(worldDir()); err != nil {
			fail("index config", err)
		}
	}
	cfg.Log = logging.Component(logging.NewRuntime(), "admin")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	idx, err := indexdb.Open(ctx, cfg)
	if err != nil {
		fail("open index", err)
	}
	defer idx.Close()

	switch q {
	case "snapshots":
		rows, err := idx.Snapshots(ctx, *limit)
		if err != nil {
			fail("query", err)
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "receipts":
		rows, err := idx.Receipts(ctx, indexdb.ReceiptFilter{Trader: *trader, Buyer: *buyer, Seller: *seller, Limit: *limit})
		if err != nil {
			fail("query", err)
		}
		if *table {
			printReceipts(rows)
			return
		}
		for _, r := range rows {
			printJSON(r)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-limit N] snapshots|receipts")
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
