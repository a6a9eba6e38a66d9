package projection

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"OptionLedger/internal/observability"
)

// Output mirrors the data needed by the projection worker.
// The orchestrator bridges between engine.Output and this.
type Output struct {
	Sequence    int64
	CommandType string
	Asset       string
	Journals    []JournalEntry
	Timestamp   int64
}

// JournalEntry is a simplified journal for projection consumption.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	Asset         string
	Amount        int64
	JournalType   int32
}

// Worker updates projection tables from processed commands. The projection
// channel is non-blocking with drop; if projections fall behind they can be
// rebuilt from the event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan Output
	metrics   *observability.Metrics
	lastSeq   int64
}

func NewWorker(db *sql.DB, inputChan <-chan Output, metrics *observability.Metrics) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run starts the projection worker loop.
func (pw *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", output.Sequence, err)
				// Projections are eventually consistent; keep consuming
				// and can be rebuilt from the event log
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *Worker) processOutput(ctx context.Context, output Output) error {
	start := time.Now()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Update balance projections from journal entries
	for _, j := range output.Journals {
		if err := pw.updateBalanceProjection(ctx, tx, j, output.Sequence); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	// Refresh the per-pool status row from the balance projection
	if output.Asset != "" && len(output.Journals) > 0 {
		if err := pw.updatePoolStatus(ctx, tx, output.Asset, output.Sequence); err != nil {
			return fmt.Errorf("pool status projection: %w", err)
		}
	}

	// Update projection watermark
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if pw.metrics != nil {
		pw.metrics.ProjectionUpdateDur.WithLabelValues("balances").Observe(time.Since(start).Seconds())
	}
	return nil
}

// updateBalanceProjection applies one journal with the same sign convention
// as the in-memory books: debit increases, credit decreases.
func (pw *Worker) updateBalanceProjection(ctx context.Context, tx *sql.Tx, j JournalEntry, seq int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_path, asset)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4
	`, j.DebitAccount, j.Asset, j.Amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account_path, asset)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4
	`, j.CreditAccount, j.Asset, j.Amount, seq); err != nil {
		return err
	}

	return nil
}

// updatePoolStatus recomputes the headline pool numbers for one asset from
// the balance projection.
func (pw *Worker) updatePoolStatus(ctx context.Context, tx *sql.Tx, asset string, seq int64) error {
	availablePath := fmt.Sprintf("treasury:available:%s", asset)
	reservedPath := fmt.Sprintf("treasury:reserved:%s", asset)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.pool_status (asset, available, reserved, user_total, last_sequence, updated_at)
		VALUES (
			$1,
			COALESCE((SELECT balance FROM projections.balances WHERE account_path = $2 AND asset = $1), 0),
			COALESCE((SELECT balance FROM projections.balances WHERE account_path = $3 AND asset = $1), 0),
			COALESCE((SELECT SUM(balance) FROM projections.balances WHERE account_path LIKE 'user:%' AND asset = $1), 0),
			$4, NOW()
		)
		ON CONFLICT (asset) DO UPDATE SET
			available = EXCLUDED.available,
			reserved = EXCLUDED.reserved,
			user_total = EXCLUDED.user_total,
			last_sequence = EXCLUDED.last_sequence,
			updated_at = NOW()
	`, asset, availablePath, reservedPath, seq)
	return err
}

// Rebuild rebuilds all projection tables from the event log.
func Rebuild(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.pool_status`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Rebuild balances from journal entries: debit increases first, then
	// subtract credits.
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset, balance, last_sequence)
		SELECT
			debit_account AS account_path,
			asset,
			SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY debit_account, asset
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset, balance, last_sequence)
		SELECT
			credit_account AS account_path,
			asset,
			-SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY credit_account, asset
		ON CONFLICT (account_path, asset) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	// Rebuild pool_status rows for every asset seen in the journal
	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.pool_status (asset, available, reserved, user_total, last_sequence, updated_at)
		SELECT
			b.asset,
			COALESCE(SUM(CASE WHEN b.account_path = 'treasury:available:' || b.asset THEN b.balance END), 0),
			COALESCE(SUM(CASE WHEN b.account_path = 'treasury:reserved:' || b.asset THEN b.balance END), 0),
			COALESCE(SUM(CASE WHEN b.account_path LIKE 'user:%' THEN b.balance END), 0),
			MAX(b.last_sequence),
			NOW()
		FROM projections.balances b
		GROUP BY b.asset
		ON CONFLICT (asset) DO UPDATE SET
			available = EXCLUDED.available,
			reserved = EXCLUDED.reserved,
			user_total = EXCLUDED.user_total,
			last_sequence = EXCLUDED.last_sequence,
			updated_at = NOW()
	`)
	if err != nil && !strings.Contains(err.Error(), "no rows") {
		return fmt.Errorf("rebuild pool status: %w", err)
	}

	log.Println("INFO: projection rebuild complete")
	return nil
}
