package world

import (
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"plotbazaar.io/internal/logging"
	"plotbazaar.io/internal/protocol"
	"plotbazaar.io/internal/sim/catalogs"
	"plotbazaar.io/internal/sim/market/model"
)

type memLog struct {
	mu       sync.Mutex
	audits   []AuditEntry
	receipts []ReceiptEntry
}

func (l *memLog) WriteAudit(e AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audits = append(l.audits, e)
	return nil
}

func (l *memLog) WriteReceipt(e ReceiptEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receipts = append(l.receipts, e)
	return nil
}

func (l *memLog) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.audits))
	for _, e := range l.audits {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	t     *testing.T
	w     *World
	log   *memLog
	clock time.Time
	outs  map[string]chan []byte
	ref   int
}

func testConfig() WorldConfig {
	return WorldConfig{ID: "test", TickRateHz: 20, InactivityDays: 30}
}

func newFixture(t *testing.T, mutate ...func(*WorldConfig)) *fixture {
	t.Helper()
	cfg := testConfig()
	for _, f := range mutate {
		f(&cfg)
	}
	w, err := New(cfg, catalogs.Defaults(), logging.NewTest())
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	f := &fixture{t: t, w: w, log: &memLog{}, clock: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), outs: map[string]chan []byte{}}
	w.SetAuditLogger(f.log)
	w.SetReceiptLogger(f.log)
	w.SetClock(func() time.Time { return f.clock })
	return f
}

func (f *fixture) join(id string) JoinResponse {
	f.t.Helper()
	out := make(chan []byte, 256)
	resp := make(chan JoinResponse, 1)
	f.w.StepOnce([]JoinRequest{{PlayerID: id, Name: id, Out: out, Resp: resp}}, nil, nil)
	r := <-resp
	if r.Code == "" {
		f.outs[id] = out
	}
	return r
}

func (f *fixture) leave(id string) {
	f.w.StepOnce(nil, []string{id}, nil)
}

func (f *fixture) inv(id string) model.ContainerID {
	f.t.Helper()
	p, ok := f.w.players[model.PlayerID(id)]
	if !ok {
		f.t.Fatalf("unknown player %s", id)
	}
	return p.Inventory
}

func (f *fixture) at(id string, pos model.Vec3) {
	f.t.Helper()
	f.w.StepOnce(nil, nil, []ActionEnvelope{{PlayerID: id, MoveTo: &protocol.MoveToMsg{Pos: vecArray(pos)}}})
}

func (f *fixture) cmd(id, cmd string, args ...string) protocol.ResultMsg {
	f.t.Helper()
	f.ref++
	ref := "c" + strconv.Itoa(f.ref)
	f.w.StepOnce(nil, nil, []ActionEnvelope{{PlayerID: id, Cmd: &protocol.CmdMsg{Ref: ref, Cmd: cmd, Args: args}}})
	return f.result(id, ref)
}

func (f *fixture) mutate(id string, m protocol.MutateMsg) protocol.ResultMsg {
	f.t.Helper()
	f.ref++
	m.Ref = "m" + strconv.Itoa(f.ref)
	f.w.StepOnce(nil, nil, []ActionEnvelope{{PlayerID: id, Mutate: &m}})
	return f.result(id, m.Ref)
}

func (f *fixture) result(id, ref string) protocol.ResultMsg {
	f.t.Helper()
	for _, b := range f.drain(id) {
		var r protocol.ResultMsg
		if err := json.Unmarshal(b, &r); err != nil {
			f.t.Fatalf("decode frame: %v", err)
		}
		if r.Type == protocol.TypeResult && r.Ref == ref {
			return r
		}
	}
	f.t.Fatalf("no RESULT for %s", ref)
	return protocol.ResultMsg{}
}

func (f *fixture) drain(id string) [][]byte {
	out := f.outs[id]
	var frames [][]byte
	for {
		select {
		case b := <-out:
			frames = append(frames, b)
		default:
			return frames
		}
	}
}

func (f *fixture) give(id, item string, n int) {
	f.t.Helper()
	if err := f.w.DebugGive(id, item, n); err != nil {
		f.t.Fatalf("give %s: %v", item, err)
	}
}

func (f *fixture) check() {
	f.t.Helper()
	if err := f.w.DebugCheck(); err != nil {
		f.t.Fatalf("market invariants: %v", err)
	}
}

func slot(n int) *int { return &n }

// shop builds an open shop for seller on a fresh plot at pos selling one
// product for price coins from stand slot 0.
func (f *fixture) shop(seller string, pos model.Vec3, product string, price int) model.Trader {
	f.t.Helper()
	if _, err := f.w.adminCreatePlot(0, pos, false); err != nil {
		f.t.Fatalf("create plot: %v", err)
	}
	f.join(seller)
	f.at(seller, pos)
	if r := f.cmd(seller, "claim"); !r.OK {
		f.t.Fatalf("claim: %+v", r)
	}
	f.give(seller, product, 1)
	tr, _ := f.w.DebugTrader(seller)
	r := f.mutate(seller, protocol.MutateMsg{Kind: "move", FromSlot: slot(0), To: string(tr.Stand), ToSlot: slot(0)})
	if !r.OK {
		f.t.Fatalf("stock: %+v", r)
	}
	if r := f.cmd(seller, "addcost", "coin", strconv.Itoa(price)); !r.OK {
		f.t.Fatalf("addcost: %+v", r)
	}
	if r := f.cmd(seller, "open"); !r.OK {
		f.t.Fatalf("open: %+v", r)
	}
	tr, _ = f.w.DebugTrader(seller)
	return tr
}
