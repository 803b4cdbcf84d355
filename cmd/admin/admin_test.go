package main

import (
	"testing"

	"plotbazaar.io/internal/persistence/snapshot"
	"plotbazaar.io/internal/sim/world"
)

func TestParsePos(t *testing.T) {
	p, err := parsePos(" 1.5, 0 ,-3")
	if err != nil || p != [3]float64{1.5, 0, -3} {
		t.Fatalf("pos=%v err=%v", p, err)
	}
	for _, bad := range []string{"", "1,2", "a,b,c", "1,2,3,4"} {
		if _, err := parsePos(bad); err == nil {
			t.Fatalf("parsePos(%q) accepted", bad)
		}
	}
}

func TestAuditFilter(t *testing.T) {
	e := world.AuditEntry{Tick: 10, Actor: "p1", Action: "CLAIM"}
	cases := []struct {
		f    auditFilter
		want bool
	}{
		{auditFilter{}, true},
		{auditFilter{Action: "claim"}, true},
		{auditFilter{Action: "PURCHASE"}, false},
		{auditFilter{Actor: "p2"}, false},
		{auditFilter{SinceTick: 10, ToTick: 10}, true},
		{auditFilter{SinceTick: 11}, false},
		{auditFilter{ToTick: 9}, false},
	}
	for _, c := range cases {
		if got := c.f.keep(e); got != c.want {
			t.Fatalf("%+v keep=%v want %v", c.f, got, c.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Tick: 42},
		Plots:  []snapshot.PlotV1{{ID: "plot_1", TraderID: "trader_1"}, {ID: "plot_2"}},
		Traders: []snapshot.TraderV1{
			{ID: "trader_1", State: "Ready"},
		},
		Containers: []snapshot.ContainerV1{
			{ID: "a", Slots: []snapshot.SlotV1{{Item: "coin", Amount: 5}, {}, {Item: "arrow", Amount: 64}}},
			{ID: "b", Slots: []snapshot.SlotV1{{Item: "coin", Amount: 100}}},
		},
	}
	s := summarize(snap)
	if s.Tick != 42 || s.Plots != 2 || s.EmptyPlots != 1 || s.OpenTraders != 1 || s.Containers != 2 {
		t.Fatalf("summary=%+v", s)
	}
	if len(s.Items) != 2 || s.Items[0] != (itemTotal{ID: "coin", Total: 105}) {
		t.Fatalf("items=%+v", s.Items)
	}
}
