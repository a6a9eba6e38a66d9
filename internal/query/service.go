package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"OptionLedger/internal/observability"
)

// Service answers reads from the projection tables. Answers lag the
// in-memory state by the projection watermark; every response carries
// AsOfSequence so callers can tell how fresh it is.
type Service struct {
	db      *sql.DB
	metrics *observability.Metrics
}

func NewService(db *sql.DB, metrics *observability.Metrics) *Service {
	return &Service{db: db, metrics: metrics}
}

// GetPoolStatus returns the projected headline numbers for one pool.
func (qs *Service) GetPoolStatus(ctx context.Context, asset string) (*PoolStatusResponse, error) {
	defer qs.observe("pool_status", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, qs.fail("pool_status", err)
	}

	resp := &PoolStatusResponse{Asset: asset, AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT available, reserved, user_total
		FROM projections.pool_status
		WHERE asset = $1
	`, asset).Scan(&resp.Available, &resp.Reserved, &resp.UserTotal)
	if err == sql.ErrNoRows {
		return resp, nil
	}
	if err != nil {
		return nil, qs.fail("pool_status", err)
	}
	return resp, nil
}

// GetUserBalance returns a user's projected escrow balance in a pool.
func (qs *Service) GetUserBalance(ctx context.Context, asset, user string) (*BalanceResponse, error) {
	defer qs.observe("user_balance", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, qs.fail("user_balance", err)
	}

	accountPath := fmt.Sprintf("user:%s:%s", user, asset)
	resp := &BalanceResponse{
		AccountPath:  accountPath,
		Asset:        asset,
		AsOfSequence: asOfSeq,
	}
	err = qs.db.QueryRowContext(ctx, `
		SELECT balance FROM projections.balances
		WHERE account_path = $1 AND asset = $2
	`, accountPath, asset).Scan(&resp.Balance)
	if err == sql.ErrNoRows {
		return resp, nil
	}
	if err != nil {
		return nil, qs.fail("user_balance", err)
	}
	return resp, nil
}

// GetJournalHistory returns journal entries touching a user's account,
// newest first, with cursor pagination on sequence.
func (qs *Service) GetJournalHistory(
	ctx context.Context,
	asset, user string,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	defer qs.observe("journal_history", time.Now())

	accountPath := fmt.Sprintf("user:%s:%s", user, asset)

	query := `
		SELECT journal_id, batch_id, command_ref, sequence,
		       debit_account, credit_account, asset, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account = $1 OR credit_account = $1) AND asset = $2
	`
	args := []interface{}{accountPath, asset}
	argIdx := 3

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, qs.fail("journal_history", err)
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.CommandRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.Asset, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, qs.fail("journal_history", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the event log and the
// per-asset zero-sum invariant over the balance projections.
func (qs *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	defer qs.observe("verify_integrity", time.Now())

	report := &IntegrityReport{CheckedAt: time.Now().UTC()}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e2.sequence IS NOT NULL AND e1.prev_hash != e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, qs.fail("verify_integrity", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, qs.fail("verify_integrity", err)
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, qs.fail("verify_integrity", err)
	}

	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset, SUM(balance) AS total
		FROM projections.balances
		GROUP BY asset
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, qs.fail("verify_integrity", err)
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var u UnbalancedAsset
		if err := balanceRows.Scan(&u.Asset, &u.Imbalance); err != nil {
			return nil, qs.fail("verify_integrity", err)
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, u)
	}
	if err := balanceRows.Err(); err != nil {
		return nil, qs.fail("verify_integrity", err)
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// --- helpers ---

func (qs *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (qs *Service) observe(endpoint string, start time.Time) {
	if qs.metrics == nil {
		return
	}
	qs.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
	qs.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (qs *Service) fail(endpoint string, err error) error {
	if qs.metrics != nil {
		qs.metrics.QueryErrors.WithLabelValues(endpoint).Inc()
	}
	return err
}
