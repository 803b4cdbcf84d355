package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

func (s *Index) loop() {
	ctx := context.Background()

	insertReceipt := `INSERT INTO receipts(id,tick,at,trader_id,seller,buyer,product_slot,product_item,product_amount,cost_item,cost_amount,state_after) VALUES(` +
		s.placeholders(12) + `) ON CONFLICT (id) DO NOTHING`
	insertAudit := `INSERT INTO audits(tick,seq,actor,action,target,x,y,z,reason,raw_json) VALUES(` +
		s.placeholders(10) + `) ON CONFLICT (tick, seq) DO NOTHING`
	insertSnapshot := `INSERT INTO snapshots(tick,path,plots,traders,containers,players,recorded_at) VALUES(` +
		s.placeholders(7) + `) ON CONFLICT (tick) DO UPDATE SET path=excluded.path, plots=excluded.plots, traders=excluded.traders, containers=excluded.containers, players=excluded.players, recorded_at=excluded.recorded_at`

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeFail.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeFail.Add(1)
			s.log.Warn().Err(err).Msg("index commit")
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	fail := func(what string, err error) {
		s.writeFail.Add(1)
		s.log.Warn().Err(err).Str("op", what).Msg("index write")
		if tx != nil {
			_ = tx.Rollback()
			tx = nil
		}
		opCount = 0
		lastCommit = time.Now()
	}

	for {
		var (
			r  req
			ok bool
		)
		if tx == nil {
			r, ok = <-s.ch
		} else {
			// Flush an idle batch instead of holding it until the next write.
			select {
			case r, ok = <-s.ch:
			case <-time.After(commitMaxWait):
				commit()
				continue
			}
		}
		if !ok {
			break
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqReceipt:
			e := r.receipt
			if _, err := tx.ExecContext(ctx, insertReceipt,
				e.ID, int64(e.Tick), e.At, e.Trader, e.Seller, e.Buyer, e.ProductSlot,
				e.ProductItem, e.ProductAmount, e.CostItem, e.CostAmount, e.StateAfter,
			); err != nil {
				fail("receipt", err)
				continue
			}
			opCount++

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if _, err := tx.ExecContext(ctx, insertAudit,
				int64(a.Tick), seq, a.Actor, a.Action, a.Target,
				a.Pos[0], a.Pos[1], a.Pos[2], a.Reason, string(raw),
			); err != nil {
				fail("audit", err)
				continue
			}
			opCount++

		case reqSnapshot:
			sn := r.snapshot
			if _, err := tx.ExecContext(ctx, insertSnapshot,
				int64(sn.Tick), sn.Path, sn.Plots, sn.Traders, sn.Containers, sn.Players, sn.RecordedAt,
			); err != nil {
				fail("snapshot", err)
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
