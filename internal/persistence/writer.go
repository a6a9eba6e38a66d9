package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// sqlExecer abstracts *sql.DB and *sql.Tx so batch writes can run inside
// the worker's flush transaction.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// EventRow represents a row in event_log.events
type EventRow struct {
	Sequence       int64
	CommandType    string
	IdempotencyKey string
	Asset          string
	Payload        []byte // JSON-encoded command payload
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// JournalRow represents a row in event_log.journal
type JournalRow struct {
	JournalID     string
	BatchID       string
	CommandRef    string
	Sequence      int64
	DebitAccount  string
	CreditAccount string
	Asset         string
	Amount        int64
	JournalType   int32
	Timestamp     int64
}

// EventLogWriter writes envelopes and journals to Postgres using multi-row
// INSERT with ON CONFLICT DO NOTHING, so replayed writes are idempotent.
type EventLogWriter struct{}

func NewEventLogWriter() *EventLogWriter {
	return &EventLogWriter{}
}

// placeholderRows builds "($1, $2, ...), ($w+1, ...)" for a multi-row insert
// of rows rows with width columns each.
func placeholderRows(rows, width int) string {
	var b strings.Builder
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < width; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", r*width+c+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}

// WriteEventBatch writes a batch of envelopes to event_log.events.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, db sqlExecer, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	const width = 9
	args := make([]interface{}, 0, len(events)*width)
	for _, e := range events {
		args = append(args,
			e.Sequence, e.CommandType, e.IdempotencyKey, e.Asset,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp, e.SourceSequence,
		)
	}

	query := `INSERT INTO event_log.events
		(sequence, command_type, idempotency_key, asset, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES ` + placeholderRows(len(events), width) +
		` ON CONFLICT (sequence) DO NOTHING`

	_, err := db.ExecContext(ctx, query, args...)
	return err
}

// WriteJournalBatch writes a batch of journal entries to event_log.journal.
func (w *EventLogWriter) WriteJournalBatch(ctx context.Context, db sqlExecer, journals []JournalRow) error {
	if len(journals) == 0 {
		return nil
	}

	const width = 10
	args := make([]interface{}, 0, len(journals)*width)
	for _, j := range journals {
		args = append(args,
			j.JournalID, j.BatchID, j.CommandRef, j.Sequence,
			j.DebitAccount, j.CreditAccount, j.Asset, j.Amount,
			j.JournalType, j.Timestamp,
		)
	}

	query := `INSERT INTO event_log.journal
		(journal_id, batch_id, command_ref, sequence, debit_account, credit_account, asset, amount, journal_type, timestamp)
		VALUES ` + placeholderRows(len(journals), width) +
		` ON CONFLICT (journal_id) DO NOTHING`

	_, err := db.ExecContext(ctx, query, args...)
	return err
}
