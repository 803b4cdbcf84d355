package log

import (
	"path/filepath"
	"testing"
	"time"

	"plotbazaar.io/internal/sim/world"
)

func TestReadAuditAcrossHours(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	clock := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	for i, action := range []string{"CLAIM", "OPEN", "PURCHASE"} {
		if i == 2 {
			clock = clock.Add(time.Hour)
		}
		if err := l.WriteAudit(world.AuditEntry{Tick: uint64(i + 1), Actor: "p1", Action: action}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	all, err := ReadAudit(dir, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(all) != 3 || all[0].Action != "CLAIM" || all[2].Action != "PURCHASE" {
		t.Fatalf("entries=%+v", all)
	}
	late, err := ReadAudit(dir, func(e world.AuditEntry) bool { return e.Tick >= 2 })
	if err != nil || len(late) != 2 {
		t.Fatalf("filtered=%+v err=%v", late, err)
	}
}

func TestReadReceiptsMissingDir(t *testing.T) {
	got, err := ReadReceipts(filepath.Join(t.TempDir(), "nope"), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("got=%v err=%v", got, err)
	}
}

func TestReadReceiptsFilters(t *testing.T) {
	dir := t.TempDir()
	l := NewReceiptLogger(dir)
	for _, b := range []string{"alice", "bob", "alice"} {
		if err := l.WriteReceipt(world.ReceiptEntry{Buyer: b, Seller: "sam", ProductItem: "arrow", ProductAmount: 1}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = l.Close()

	got, err := ReadReceipts(dir, func(e world.ReceiptEntry) bool { return e.Buyer == "alice" })
	if err != nil || len(got) != 2 {
		t.Fatalf("got=%+v err=%v", got, err)
	}
}
