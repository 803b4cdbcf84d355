package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	persistlog "plotbazaar.io/internal/persistence/log"
	"plotbazaar.io/internal/persistence/snapshot"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/world"
)

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	worldDir := worldDirFlag(fs)
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		path = snapshot.Latest(filepath.Join(worldDir(), "snapshots"))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run the server until it writes one")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fail("read snapshot", err)
	}
	var size int64
	if st, err := os.Stat(path); err == nil {
		size = st.Size()
	}
	sum := summarize(snap)
	if *asJSON {
		_ = json.NewEncoder(os.Stdout).Encode(sum)
		return
	}

	created := snap.Header.CreatedAt
	if at, err := time.Parse(time.RFC3339, created); err == nil {
		created = humanize.Time(at)
	}
	fmt.Printf("snapshot %s (%s, written %s)\n", filepath.Base(path), humanize.Bytes(uint64(size)), created)
	fmt.Printf("tick=%s plots=%d (empty %d) traders=%d (open %d) players=%d containers=%d\n",
		humanize.Comma(int64(snap.Header.Tick)), sum.Plots, sum.EmptyPlots, sum.Traders, sum.OpenTraders, sum.Players, sum.Containers)

	if len(snap.Traders) > 0 {
		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "\nTRADER\tOWNER\tSTATE\tPLOT")
		for _, t := range snap.Traders {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.OwnerName, t.State, t.PlotID)
		}
		_ = tw.Flush()
	}
	if len(sum.Items) > 0 {
		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "\nITEM\tTOTAL")
		for _, it := range sum.Items {
			fmt.Fprintf(tw, "%s\t%s\n", it.ID, humanize.Comma(int64(it.Total)))
		}
		_ = tw.Flush()
	}
}

type itemTotal struct {
	ID    string `json:"id"`
	Total int    `json:"total"`
}

type snapshotSummary struct {
	Tick        uint64      `json:"tick"`
	Plots       int         `json:"plots"`
	EmptyPlots  int         `json:"empty_plots"`
	Traders     int         `json:"traders"`
	OpenTraders int         `json:"open_traders"`
	Players     int         `json:"players"`
	Containers  int         `json:"containers"`
	Items       []itemTotal `json:"items"`
}

// summarize counts what a snapshot holds. Item totals span every container,
// largest first.
func summarize(snap snapshot.SnapshotV1) snapshotSummary {
	s := snapshotSummary{
		Tick:       snap.Header.Tick,
		Plots:      len(snap.Plots),
		Traders:    len(snap.Traders),
		Players:    len(snap.Players),
		Containers: len(snap.Containers),
	}
	for _, p := range snap.Plots {
		if p.TraderID == "" {
			s.EmptyPlots++
		}
	}
	for _, t := range snap.Traders {
		if t.State == model.Ready.String() {
			s.OpenTraders++
		}
	}
	totals := map[string]int{}
	for _, c := range snap.Containers {
		for _, sl := range c.Slots {
			if sl.Item != "" {
				totals[sl.Item] += sl.Amount
			}
		}
	}
	for id, n := range totals {
		s.Items = append(s.Items, itemTotal{ID: id, Total: n})
	}
	sort.Slice(s.Items, func(i, j int) bool {
		if s.Items[i].Total != s.Items[j].Total {
			return s.Items[i].Total > s.Items[j].Total
		}
		return s.Items[i].ID < s.Items[j].ID
	})
	return s
}

// auditFilter selects audit entries by action, actor and tick window. Zero
// fields match everything.
type auditFilter struct {
	Action    string
	Actor     string
	SinceTick uint64
	ToTick    uint64
}

func (f auditFilter) keep(e world.AuditEntry) bool {
	if f.Action != "" && !strings.EqualFold(e.Action, f.Action) {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if e.Tick < f.SinceTick {
		return false
	}
	return f.ToTick == 0 || e.Tick <= f.ToTick
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	worldDir := worldDirFlag(fs)
	var f auditFilter
	fs.StringVar(&f.Action, "action", "", "action filter, e.g. CLAIM or PURCHASE")
	fs.StringVar(&f.Actor, "actor", "", "actor filter (player id or ADMIN)")
	fs.Uint64Var(&f.SinceTick, "since_tick", 0, "first tick (inclusive)")
	fs.Uint64Var(&f.ToTick, "to_tick", 0, "last tick (inclusive, optional)")
	_ = fs.Parse(args)

	entries, err := persistlog.ReadAudit(worldDir(), f.keep)
	if err != nil {
		fail("read audit", err)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		_ = enc.Encode(e)
	}
	fmt.Fprintf(os.Stderr, "%d entries\n", len(entries))
}

func purchasesCmd(args []string) {
	fs := flag.NewFlagSet("purchases", flag.ExitOnError)
	worldDir := worldDirFlag(fs)
	buyer := fs.String("buyer", "", "buyer id filter")
	seller := fs.String("seller", "", "seller id filter")
	_ = fs.Parse(args)

	receipts, err := persistlog.ReadReceipts(worldDir(), func(e world.ReceiptEntry) bool {
		return (*buyer == "" || e.Buyer == *buyer) && (*seller == "" || e.Seller == *seller)
	})
	if err != nil {
		fail("read receipts", err)
	}
	printReceipts(receipts)
}

func printReceipts(receipts []world.ReceiptEntry) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "TICK\tBUYER\tSELLER\tPRODUCT\tCOST")
	for _, r := range receipts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%sx %s\t%sx %s\n", r.Tick, r.Buyer, r.Seller,
			humanize.Comma(int64(r.ProductAmount)), r.ProductItem,
			humanize.Comma(int64(r.CostAmount)), r.CostItem)
	}
	_ = tw.Flush()
}
