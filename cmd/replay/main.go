package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"plotbazaar.io/internal/logging"
	persistlog "plotbazaar.io/internal/persistence/log"
	"plotbazaar.io/internal/persistence/snapshot"
	"plotbazaar.io/internal/sim/catalogs"
	"plotbazaar.io/internal/sim/market/registry"
	"plotbazaar.io/internal/sim/tuning"
	"plotbazaar.io/internal/sim/world"
)

// replay restores a snapshot into a fresh world the way the server would,
// checks the market invariants, and lists the purchases logged after it.
func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		worldDir  = flag.String("world_dir", "", "world data dir (optional; reads receipts after the snapshot)")
		configDir = flag.String("configs", "./configs", "config directory")
		asJSON    = flag.Bool("json", false, "print the result as JSON")
	)
	flag.Parse()

	path := strings.TrimSpace(*snapPath)
	if path == "" && *worldDir != "" {
		path = snapshot.Latest(filepath.Join(*worldDir, "snapshots"))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	tune, err := tuning.Load(filepath.Join(*configDir, "tuning.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		tune, err = tuning.Defaults(), nil
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	items, err := catalogs.Load(filepath.Join(*configDir, "items.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		items, err = catalogs.Defaults(), nil
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "load items:", err)
		os.Exit(1)
	}

	res, err := verify(snap, items, tune)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
		os.Exit(1)
	}
	if *worldDir != "" {
		after, err := persistlog.ReadReceipts(*worldDir, func(e world.ReceiptEntry) bool { return e.Tick > snap.Header.Tick })
		if err != nil {
			fmt.Fprintln(os.Stderr, "read receipts:", err)
			os.Exit(1)
		}
		res.LaterReceipts = after
	}

	if *asJSON {
		_ = json.NewEncoder(os.Stdout).Encode(res)
	} else {
		fmt.Printf("snapshot v%d tick=%s plots=%d traders=%d containers=%d players=%d\n",
			snap.Header.Version, humanize.Comma(int64(snap.Header.Tick)),
			len(snap.Plots), len(snap.Traders), len(snap.Containers), len(snap.Players))
		r := res.Report
		fmt.Printf("restored plots=%d traders=%d dropped_plots=%d dropped_traders=%d relinked=%d ghosted=%d orphan_costs=%d\n",
			r.Plots, r.Traders, r.DroppedPlots, r.DroppedTraders, r.Relinked, r.Ghosted, r.OrphanCosts)
		for _, e := range res.LaterReceipts {
			fmt.Printf("after snapshot: tick=%d %s bought %dx %s from %s for %dx %s\n",
				e.Tick, e.Buyer, e.ProductAmount, e.ProductItem, e.Seller, e.CostAmount, e.CostItem)
		}
		if res.Invariants != "" {
			fmt.Println("invariants: FAIL", res.Invariants)
		} else {
			fmt.Println("invariants: ok")
		}
	}
	if res.Invariants != "" {
		os.Exit(1)
	}
}

type result struct {
	Tick          uint64               `json:"tick"`
	Report        registry.Report      `json:"report"`
	ImportError   string               `json:"import_error,omitempty"`
	Invariants    string               `json:"invariant_error,omitempty"`
	LaterReceipts []world.ReceiptEntry `json:"later_receipts,omitempty"`
}

// verify imports snap into a new world. Reconciliation losses are reported,
// not fatal; a broken invariant after import is.
func verify(snap snapshot.SnapshotV1, items *catalogs.ItemCatalog, tune tuning.Tuning) (result, error) {
	w, err := world.New(world.ConfigFromTuning("replay", tune), items, logging.Component(logging.NewRuntime(), "replay"))
	if err != nil {
		return result{}, err
	}
	rep, err := w.ImportSnapshot(snap)
	res := result{Tick: w.CurrentTick(), Report: rep}
	if err != nil {
		res.ImportError = err.Error()
	}
	if err := w.DebugCheck(); err != nil {
		res.Invariants = err.Error()
	}
	return res, nil
}
