package worldtest

import (
	"encoding/json"
	"strconv"
	"testing"

	"plotbazaar.io/internal/logging"
	"plotbazaar.io/internal/persistence/snapshot"
	"plotbazaar.io/internal/protocol"
	"plotbazaar.io/internal/sim/catalogs"
	"plotbazaar.io/internal/sim/market/model"
	world "plotbazaar.io/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() issues JoinRequest via StepOnce()
// - Cmd()/Mutate()/MoveTo() issue one action per StepOnce()
// - Per-player Out channels are drained into frame logs after every step
// - ExportSnapshot/Debug* helpers provide deterministic preconditions
//
// It only uses exported world APIs so tests can live outside the world package.
type Harness struct {
	T     *testing.T
	Items *catalogs.ItemCatalog
	W     *world.World

	sessions map[string]*session
	ref      int
}

func NewHarness(t *testing.T, cfg world.WorldConfig, items *catalogs.ItemCatalog) *Harness {
	t.Helper()
	if items == nil {
		items = catalogs.Defaults()
	}
	w, err := world.New(cfg, items, logging.NewTest())
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w)
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world instance.
// This is useful for snapshot round-trip tests where the snapshot is imported before join.
func NewHarnessWithWorld(t *testing.T, w *world.World) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	return &Harness{T: t, Items: w.Items(), W: w, sessions: map[string]*session{}}
}

// DefaultConfig is a 20 Hz world with no periodic jobs.
func DefaultConfig() world.WorldConfig {
	return world.WorldConfig{ID: "worldtest", TickRateHz: 20, InactivityDays: 30}
}

type session struct {
	PlayerID  string
	Inventory model.ContainerID
	Out       chan []byte
	frames    [][]byte
}

// Join connects playerID and returns its WELCOME.
func (h *Harness) Join(playerID string) protocol.WelcomeMsg {
	h.T.Helper()
	out := make(chan []byte, 256)
	resp := make(chan world.JoinResponse, 1)
	_, _ = h.W.StepOnce([]world.JoinRequest{{PlayerID: playerID, Name: playerID, Out: out, Resp: resp}}, nil, nil)
	jr := <-resp
	if jr.Code != "" {
		h.T.Fatalf("join %s refused: %s %s", playerID, jr.Code, jr.Message)
	}
	h.sessions[playerID] = &session{PlayerID: playerID, Inventory: model.ContainerID(jr.Welcome.Inventory), Out: out}
	h.drainAll()
	return jr.Welcome
}

func (h *Harness) Leave(playerID string) {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, []string{playerID}, nil)
	delete(h.sessions, playerID)
}

func (h *Harness) Inventory(playerID string) model.ContainerID {
	return h.session(playerID).Inventory
}

func (h *Harness) MoveTo(playerID string, pos model.Vec3) {
	h.T.Helper()
	h.step(world.ActionEnvelope{PlayerID: playerID, MoveTo: &protocol.MoveToMsg{
		Type:            protocol.TypeMoveTo,
		ProtocolVersion: protocol.Version,
		Pos:             [3]float64{pos.X, pos.Y, pos.Z},
	}})
}

func (h *Harness) Cmd(playerID, cmd string, args ...string) protocol.ResultMsg {
	h.T.Helper()
	ref := h.nextRef("c")
	h.step(world.ActionEnvelope{PlayerID: playerID, Cmd: &protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		Ref:             ref,
		Cmd:             cmd,
		Args:            args,
	}})
	return h.Result(playerID, ref)
}

// MustCmd runs cmd and fails the test unless it succeeds.
func (h *Harness) MustCmd(playerID, cmd string, args ...string) protocol.ResultMsg {
	h.T.Helper()
	r := h.Cmd(playerID, cmd, args...)
	if !r.OK {
		h.T.Fatalf("%s %s %v: %s %s", playerID, cmd, args, r.Code, r.Message)
	}
	return r
}

func (h *Harness) Mutate(playerID string, m protocol.MutateMsg) protocol.ResultMsg {
	h.T.Helper()
	m.Type = protocol.TypeMutate
	m.ProtocolVersion = protocol.Version
	m.Ref = h.nextRef("m")
	h.step(world.ActionEnvelope{PlayerID: playerID, Mutate: &m})
	return h.Result(playerID, m.Ref)
}

// Result finds the RESULT answering ref among the frames seen so far.
func (h *Harness) Result(playerID, ref string) protocol.ResultMsg {
	h.T.Helper()
	for _, b := range h.session(playerID).frames {
		base, err := protocol.DecodeBase(b)
		if err != nil || base.Type != protocol.TypeResult {
			continue
		}
		var r protocol.ResultMsg
		if err := json.Unmarshal(b, &r); err != nil {
			h.T.Fatalf("decode RESULT: %v", err)
		}
		if r.Ref == ref {
			return r
		}
	}
	h.T.Fatalf("no RESULT for %s", ref)
	return protocol.ResultMsg{}
}

// Notices returns every NOTICE text playerID received, oldest first.
func (h *Harness) Notices(playerID string) []string {
	var out []string
	for _, b := range h.session(playerID).frames {
		var n protocol.NoticeMsg
		if json.Unmarshal(b, &n) == nil && n.Type == protocol.TypeNotice {
			out = append(out, n.Text)
		}
	}
	return out
}

// LastContainer returns the newest CONTAINER view of id sent to playerID.
func (h *Harness) LastContainer(playerID string, id model.ContainerID) (protocol.ContainerMsg, bool) {
	frames := h.session(playerID).frames
	for i := len(frames) - 1; i >= 0; i-- {
		var c protocol.ContainerMsg
		if json.Unmarshal(frames[i], &c) == nil && c.Type == protocol.TypeContainer && c.Container == string(id) {
			return c, true
		}
	}
	return protocol.ContainerMsg{}, false
}

func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	// Keep tick stable: export at currentTick-1 then import would restore to currentTick.
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

func (h *Harness) Give(playerID, item string, n int) {
	h.T.Helper()
	if err := h.W.DebugGive(playerID, item, n); err != nil {
		h.T.Fatalf("DebugGive: %v", err)
	}
}

func (h *Harness) Count(container model.ContainerID, item string) int {
	return h.W.DebugCount(container, item)
}

func (h *Harness) Plot(pos model.Vec3) world.PlotView {
	h.T.Helper()
	p, err := h.W.DebugCreatePlot(pos)
	if err != nil {
		h.T.Fatalf("DebugCreatePlot: %v", err)
	}
	return p
}

func (h *Harness) Trader(playerID string) model.Trader {
	h.T.Helper()
	t, ok := h.W.DebugTrader(playerID)
	if !ok {
		h.T.Fatalf("%s has no trader", playerID)
	}
	return t
}

func (h *Harness) Check() {
	h.T.Helper()
	if err := h.W.DebugCheck(); err != nil {
		h.T.Fatalf("market invariants: %v", err)
	}
}

// OpenShop walks seller through claim, stocking and pricing one product in
// stand slot 0, then opens the shop. The seller's inventory slot 0 must be
// free before the call.
func (h *Harness) OpenShop(seller string, pos model.Vec3, product string, count int, costItem string, price int) model.Trader {
	h.T.Helper()
	h.MoveTo(seller, pos)
	h.MustCmd(seller, "claim")
	h.Give(seller, product, count)
	t := h.Trader(seller)
	r := h.Mutate(seller, protocol.MutateMsg{Kind: "move", FromSlot: Slot(0), To: string(t.Stand), ToSlot: Slot(0)})
	if !r.OK {
		h.T.Fatalf("stock %s: %s %s", product, r.Code, r.Message)
	}
	h.MustCmd(seller, "addcost", costItem, strconv.Itoa(price))
	h.MustCmd(seller, "open")
	return h.Trader(seller)
}

func Slot(n int) *int { return &n }

func (h *Harness) step(env world.ActionEnvelope) {
	_, _ = h.W.StepOnce(nil, nil, []world.ActionEnvelope{env})
	h.drainAll()
}

func (h *Harness) nextRef(prefix string) string {
	h.ref++
	return prefix + strconv.Itoa(h.ref)
}

func (h *Harness) session(playerID string) *session {
	h.T.Helper()
	s := h.sessions[playerID]
	if s == nil {
		h.T.Fatalf("unknown player id: %q", playerID)
	}
	return s
}

func (h *Harness) drainAll() {
	for _, s := range h.sessions {
		for {
			select {
			case b := <-s.Out:
				s.frames = append(s.frames, b)
				continue
			default:
			}
			break
		}
	}
}
