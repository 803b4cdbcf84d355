package world

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingAdmin []adminReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			w.handleAdminRequests(pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// step runs one tick. Leaves go first so a player reconnecting within the
// same tick gets a fresh session.
func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	start := time.Now()
	tick := w.tick.Load()

	for _, id := range leaves {
		w.handleLeave(id)
	}
	for _, req := range joins {
		w.handleJoin(tick, req)
	}
	for _, env := range actions {
		w.handleAction(tick, env)
	}

	if every(tick, w.cfg.SweepEveryTicks) {
		w.sweep(tick)
	}
	if every(tick, w.cfg.SnapshotEveryTicks) {
		if err := w.enqueueSnapshot(tick); err != nil {
			w.log.Warn().Err(err).Uint64("tick", tick).Msg("periodic snapshot skipped")
		}
	}

	w.tick.Add(1)
	w.publishMetrics(tick, time.Since(start))
}

func every(tick uint64, n int) bool {
	return n > 0 && tick > 0 && tick%uint64(n) == 0
}

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(joins, leaves, actions)
	return tick, w.stateDigest(tick)
}

func (w *World) handleAction(tick uint64, env ActionEnvelope) {
	p, ok := w.onlinePlayer(env.PlayerID)
	if !ok {
		w.log.Debug().Str("player", env.PlayerID).Msg("action from unknown player dropped")
		return
	}
	switch {
	case env.Mutate != nil:
		w.sendTo(p.ID, w.applyMutate(tick, p, *env.Mutate))
	case env.Cmd != nil:
		w.sendTo(p.ID, w.applyCmd(tick, p, *env.Cmd))
	case env.MoveTo != nil:
		w.movePlayer(p, env.MoveTo.Pos)
	}
}

// stateDigest hashes the exported market and container state, leaving out
// wall-clock fields.
func (w *World) stateDigest(tick uint64) string {
	snap := w.ExportSnapshot(tick)
	snap.Header.CreatedAt = ""
	for i := range snap.Players {
		snap.Players[i].LastSeen = 0
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
