package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"OptionLedger/internal/persistence"
	"OptionLedger/internal/pool"
	"OptionLedger/internal/testutil"
)

func eventRow(seq int64, commandType, asset string) persistence.EventRow {
	return persistence.EventRow{
		Sequence:       seq,
		CommandType:    commandType,
		IdempotencyKey: uuid.New().String(),
		Asset:          asset,
		Payload:        []byte(`{}`),
		StateHash:      make([]byte, 32),
		PrevHash:       make([]byte, 32),
		Timestamp:      time.UnixMicro(1000000 + seq*1000),
		SourceSequence: seq,
	}
}

func journalRow(seq int64, debit, credit string, amount int64) persistence.JournalRow {
	return persistence.JournalRow{
		JournalID:     uuid.New().String(),
		BatchID:       uuid.New().String(),
		CommandRef:    uuid.New().String(),
		Sequence:      seq,
		DebitAccount:  debit,
		CreditAccount: credit,
		Asset:         "USDC",
		Amount:        amount,
		JournalType:   0,
		Timestamp:     1000000 + seq*1000,
	}
}

func TestWorker_WritesEventsAndJournals(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	inputChan := make(chan persistence.Output, 16)
	worker := persistence.NewWorker(db, inputChan, 5, 10*time.Millisecond, nil)

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	for seq := int64(1); seq <= 7; seq++ {
		inputChan <- persistence.Output{
			EventRow: eventRow(seq, "liquidity_deposit", "USDC"),
			JournalRows: []persistence.JournalRow{
				journalRow(seq, "treasury:available:USDC", "external:deposit:USDC", 100),
			},
		}
	}
	close(inputChan)
	if err := <-done; err != nil {
		t.Fatalf("worker run: %v", err)
	}

	var eventCount, journalCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM event_log.events").Scan(&eventCount); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM event_log.journal").Scan(&journalCount); err != nil {
		t.Fatalf("count journals: %v", err)
	}
	if eventCount != 7 {
		t.Errorf("expected 7 events, got %d", eventCount)
	}
	if journalCount != 7 {
		t.Errorf("expected 7 journals, got %d", journalCount)
	}

	latest, err := persistence.NewSnapshotManager(db).GetLatestSequence(ctx)
	if err != nil {
		t.Fatalf("latest sequence: %v", err)
	}
	if latest != 7 {
		t.Errorf("expected latest sequence 7, got %d", latest)
	}
}

func TestSnapshotManager_SaveLoadRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sm := persistence.NewSnapshotManager(db)

	// No snapshot yet
	snap, err := sm.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot on empty table")
	}

	saved := &persistence.SnapshotData{
		Sequence:  42,
		StateHash: make([]byte, 32),
		Pools: []pool.SnapshotState{
			{Asset: "USDC", Admin: "admin-1", TreasuryTotal: 1050, Available: 1000, Reserved: 50},
		},
		Books:           map[string]int64{"treasury:available:USDC": 1000},
		SequenceState:   map[string]int64{"pool:USDC": 10},
		IdempotencyKeys: []string{"liquidity_deposit:abc"},
		CreatedAt:       time.Now(),
	}
	saved.StateHash[0] = 0xAB

	if err := sm.SaveSnapshot(ctx, saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Unverified snapshots must not be loaded
	snap, err = sm.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("load unverified: %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil for unverified snapshot")
	}

	if err := sm.MarkVerified(ctx, 42); err != nil {
		t.Fatalf("mark verified: %v", err)
	}

	snap, err = sm.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("load verified: %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot after verification")
	}
	if snap.Sequence != 42 {
		t.Errorf("expected sequence 42, got %d", snap.Sequence)
	}
	if snap.StateHash[0] != 0xAB {
		t.Errorf("state hash not preserved: %x", snap.StateHash)
	}
	if len(snap.Pools) != 1 || snap.Pools[0].Asset != "USDC" || snap.Pools[0].Available != 1000 {
		t.Errorf("pool state not preserved: %+v", snap.Pools)
	}
	if snap.SequenceState["pool:USDC"] != 10 {
		t.Errorf("sequence state not preserved: %+v", snap.SequenceState)
	}
}

func TestPostgresIdempotencyChecker(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	row := eventRow(1, "submit_order", "USDC")
	_, err := db.Exec(`
		INSERT INTO event_log.events
		(sequence, command_type, idempotency_key, asset, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row.Sequence, row.CommandType, row.IdempotencyKey, row.Asset,
		row.Payload, row.StateHash, row.PrevHash, row.Timestamp, row.SourceSequence)
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}

	checker := persistence.NewPostgresIdempotencyChecker(db)

	dup, err := checker.IsDuplicate("submit_order", row.IdempotencyKey)
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if !dup {
		t.Error("expected existing key to be found")
	}

	dup, err = checker.IsDuplicate("submit_order", "never-seen")
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if dup {
		t.Error("expected unknown key to be absent")
	}

	keys, err := checker.LoadRecentKeys(ctx, 100)
	if err != nil {
		t.Fatalf("load recent: %v", err)
	}
	if len(keys) != 1 || keys[0] != "submit_order:"+row.IdempotencyKey {
		t.Errorf("unexpected recent keys: %v", keys)
	}
}
