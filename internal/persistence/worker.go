package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"OptionLedger/internal/observability"
)

// Output mirrors engine.Output in row form to avoid an import cycle.
// The orchestrator (cmd/optionledger) bridges between engine.Output and this.
type Output struct {
	EventRow    EventRow
	JournalRows []JournalRow
}

// Worker drains the persist channel and batch-writes to Postgres. The
// engine sends on this channel BLOCKING, so a stalled worker stalls the
// engine rather than losing commands.
type Worker struct {
	db           *sql.DB
	writer       *EventLogWriter
	inputChan    <-chan Output
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan Output,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		db:           db,
		writer:       NewEventLogWriter(),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// Run accumulates outputs and flushes when the batch fills or the flush
// timer fires. Blocks until the context is cancelled or the input channel
// closes; either way the pending batch gets a final flush.
func (w *Worker) Run(ctx context.Context) error {
	events := make([]EventRow, 0, w.batchSize)
	journals := make([]JournalRow, 0, w.batchSize*2) // most commands carry 1-2 journals

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	finalFlush := func() {
		if len(events) == 0 {
			return
		}
		if err := w.flush(context.Background(), events, journals); err != nil {
			log.Printf("ERROR: final flush failed: %v", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			finalFlush()
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				finalFlush()
				return nil
			}

			events = append(events, output.EventRow)
			journals = append(journals, output.JournalRows...)

			if len(events) >= w.batchSize {
				if err := w.flushWithRetry(ctx, events, journals); err != nil {
					log.Printf("ERROR: batch flush failed after retries: %v", err)
				}
				events = events[:0]
				journals = journals[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(events) > 0 {
				if err := w.flushWithRetry(ctx, events, journals); err != nil {
					log.Printf("ERROR: timeout flush failed after retries: %v", err)
				}
				events = events[:0]
				journals = journals[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write lands.
// Commands are never dropped; on context cancellation one last attempt runs
// on a background context so shutdown does not lose the batch.
func (w *Worker) flushWithRetry(ctx context.Context, events []EventRow, journals []JournalRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: persistence retry attempt %d (backoff=%v, events=%d)",
				attempt, backoff, len(events))
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), events, journals); err != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, events, journals)
		if err == nil {
			if attempt > 0 {
				log.Printf("INFO: persistence flush succeeded after %d retries", attempt)
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistRetry.Inc()
		}
	}
}

// flush writes envelopes and journal rows in a single transaction.
func (w *Worker) flush(ctx context.Context, events []EventRow, journals []JournalRow) error {
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.countError("tx_begin")
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		w.countError("write_events")
		return err
	}
	if err := w.writer.WriteJournalBatch(ctx, tx, journals); err != nil {
		w.countError("write_journals")
		return err
	}
	if err := tx.Commit(); err != nil {
		w.countError("tx_commit")
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(events)))
		w.metrics.PersistEventsWritten.Add(float64(len(events)))
		w.metrics.PersistJournalsWritten.Add(float64(len(journals)))
		if len(events) > 0 {
			w.metrics.PersistLastSequence.Set(float64(events[len(events)-1].Sequence))
		}
	}

	return nil
}

func (w *Worker) countError(stage string) {
	if w.metrics != nil {
		w.metrics.PersistErrors.WithLabelValues(stage).Inc()
	}
}
