package world

import "time"

// sweep removes traders whose owners have been away longer than
// InactivityDays. It is a full, idempotent scan.
func (w *World) sweep(tick uint64) (int, error) {
	if w.cfg.InactivityDays <= 0 {
		return 0, nil
	}
	maxIdle := time.Duration(w.cfg.InactivityDays) * 24 * time.Hour
	n, err := w.market.RemoveInactiveTraders(w.lastSeen, maxIdle, w.now())
	if err != nil {
		w.log.Warn().Err(err).Uint64("tick", tick).Msg("inactivity sweep had failures")
	}
	if n > 0 || err != nil {
		w.auditScan(tick, "SWEEP_INACTIVE", n, err)
		w.log.Info().Int("removed", n).Int("days", w.cfg.InactivityDays).Msg("inactive traders removed")
	}
	w.stats.swept.Add(uint64(n))
	return n, err
}
