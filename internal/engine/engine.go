package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"OptionLedger/internal/event"
	"OptionLedger/internal/ledger"
	"OptionLedger/internal/observability"
	"OptionLedger/internal/pool"

	"github.com/rs/zerolog"
)

// SettlementEngine is the single-threaded command processor. All pool
// mutations flow through ProcessCommand in sequence order; readers access
// pools concurrently through their own locks.
type SettlementEngine struct {
	sequence          int64
	hasher            *StateHasher
	registry          *pool.Registry
	books             *ledger.BookKeeper
	validator         *ledger.InvariantValidator
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics
	log               zerolog.Logger

	persistChan    chan<- Output
	projectionChan chan<- Output

	// replaying suppresses output emission while the startup replay runs.
	// Replayed commands are already in the event log; re-emitting them
	// would write duplicate journal rows (journal IDs are minted fresh per
	// batch) and double-apply balance projections.
	replaying bool
}

// Output is what the engine hands to the persistence and projection workers
// for every processed command.
type Output struct {
	Envelope   *event.Envelope
	Batch      *ledger.Batch
	Events     []event.Notification
	StateDelta []byte
}

// Result reports the outcome of a processed command to a synchronous caller.
type Result struct {
	Sequence int64

	// Reserved is false when a reserve attempt failed softly.
	Reserved bool

	// Duplicate is true when the command was dropped by deduplication.
	Duplicate bool
}

// Request pairs a command with an optional reply channel. Ingestion paths
// that cannot use the outcome (NATS) pass a nil Reply.
type Request struct {
	Cmd   event.Command
	Reply chan Response
}

// Response is the synchronous outcome sent on a Request's reply channel.
type Response struct {
	Result Result
	Err    error
}

func NewSettlementEngine(
	startSequence int64,
	persistChan, projectionChan chan<- Output,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *SettlementEngine {
	books := ledger.NewBookKeeper()

	return &SettlementEngine{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		registry:          pool.NewRegistry(),
		books:             books,
		validator:         ledger.NewInvariantValidator(books),
		idempotency:       NewIdempotencyChecker(1_000_000, dbChecker),
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		log:               log,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// Registry exposes the pool registry for read-only query facades.
func (e *SettlementEngine) Registry() *pool.Registry {
	return e.registry
}

// SetReplayMode toggles output suppression for startup replay. Must only be
// called before Run; state, hashes and idempotency still advance normally
// while replaying.
func (e *SettlementEngine) SetReplayMode(replaying bool) {
	e.replaying = replaying
}

// Run drains the request channel until the context is cancelled. This is
// the only goroutine that may call ProcessCommand.
func (e *SettlementEngine) Run(ctx context.Context, requests <-chan Request) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-requests:
			if !ok {
				return nil
			}
			result, err := e.ProcessCommand(req.Cmd)
			if err != nil {
				e.log.Warn().
					Str("command_type", req.Cmd.CommandType().String()).
					Str("idempotency_key", req.Cmd.IdempotencyKey()).
					Err(err).
					Msg("command rejected")
			}
			if req.Reply != nil {
				req.Reply <- Response{Result: result, Err: err}
			}
		}
	}
}

// ProcessCommand is the main processing pipeline
func (e *SettlementEngine) ProcessCommand(cmd event.Command) (Result, error) {
	start := time.Now()
	commandType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := e.idempotency.IsDuplicate(commandType, idempotencyKey)

	// Step 2: Sequence validation. A zero source sequence means the caller
	// (HTTP path) carries no upstream ordering and skips the check.
	sourceSequence := cmd.SourceSequence()
	if sourceSequence > 0 {
		partition := e.getPartition(cmd)
		if err := e.sequenceValidator.ValidateSequence(partition, sourceSequence, idempotencyKey, isDuplicate); err != nil {
			return Result{}, fmt.Errorf("sequence validation failed: %w", err)
		}
	}

	// If duplicate, skip processing
	if isDuplicate {
		if e.metrics != nil {
			e.metrics.CoreCommandsRejected.WithLabelValues(commandType, "duplicate").Inc()
		}
		return Result{Duplicate: true}, nil
	}

	// Step 3: Command dispatch against the target pool
	meta := ledger.BatchMeta{
		CommandRef: idempotencyKey,
		Sequence:   e.sequence,
		Timestamp:  e.getCommandTimestamp(cmd),
	}
	receipt, err := e.dispatchCommand(meta, cmd)
	if err != nil {
		if e.metrics != nil {
			e.metrics.CoreCommandsRejected.WithLabelValues(commandType, "precondition").Inc()
		}
		return Result{}, err
	}

	// Step 4: Validate and apply the journal batch to the books. Empty
	// batches (admin ops, soft failures) still get an envelope in the log.
	if len(receipt.Batch.Journals) > 0 {
		if err := e.validator.ValidateBatchBalance(receipt.Batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}
		if err := e.books.ApplyBatch(receipt.Batch); err != nil {
			return Result{}, fmt.Errorf("apply batch failed: %w", err)
		}
	}

	// Step 5: Post-checks
	if err := e.postCheckInvariants(cmd); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 6: Compute state digest and hash
	stateDigest := e.computeStateDigest(receipt.Batch)
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, stateDigest)

	// Step 7: Build envelope
	payload, err := json.Marshal(cmd)
	if err != nil {
		panic(fmt.Sprintf("FATAL: command payload not serializable: %v", err))
	}
	envelope := &event.Envelope{
		Sequence:       e.sequence,
		IdempotencyKey: idempotencyKey,
		CommandType:    cmd.CommandType(),
		Asset:          cmd.PoolAsset(),
		Timestamp:      time.UnixMicro(e.getCommandTimestamp(cmd)),
		SourceSequence: sourceSequence,
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := Output{
		Envelope:   envelope,
		Batch:      receipt.Batch,
		Events:     receipt.Events,
		StateDelta: stateDigest,
	}
	assignedSequence := e.sequence
	e.sequence++

	// Step 8: Emit outputs. Persistence uses a BLOCKING send (backpressure:
	// the core stalls until the persistence worker drains, so no command is
	// lost). Projections use a NON-BLOCKING send with silent drop; workers
	// rebuild from the event log if they fall behind. During startup replay
	// nothing is emitted: the rows already exist and nothing drains the
	// channels yet.
	if !e.replaying {
		e.persistChan <- output
		select {
		case e.projectionChan <- output:
		default:
			// Silently dropped — projection will catch up via rebuild
		}
	}

	// Step 9: Mark as processed (add to LRU)
	e.idempotency.MarkProcessed(commandType, idempotencyKey)

	// Record metrics
	if e.metrics != nil {
		e.metrics.CoreCommandsApplied.WithLabelValues(commandType).Inc()
		e.metrics.CoreCommandDuration.WithLabelValues(commandType).Observe(time.Since(start).Seconds())
		e.metrics.CoreSequence.Set(float64(e.sequence))
	}

	return Result{Sequence: assignedSequence, Reserved: receipt.ReserveOK}, nil
}

// getPartition determines partition key for sequence validation
func (e *SettlementEngine) getPartition(cmd event.Command) string {
	if asset := cmd.PoolAsset(); asset != "" {
		return fmt.Sprintf("pool:%s", asset)
	}
	return "global"
}

// getCommandTimestamp extracts the versioned timestamp from a command.
// The core MUST NOT call time.Now(); all timestamps are versioned inputs.
func (e *SettlementEngine) getCommandTimestamp(cmd event.Command) int64 {
	switch c := cmd.(type) {
	case *event.CreatePool:
		return c.Timestamp
	case *event.LiquidityDeposit:
		return c.Timestamp
	case *event.LiquidityWithdraw:
		return c.Timestamp
	case *event.ReserveFunds:
		return c.Timestamp
	case *event.ReleaseReserved:
		return c.Timestamp
	case *event.UserDeposit:
		return c.Timestamp
	case *event.UserWithdraw:
		return c.Timestamp
	case *event.SubmitOrder:
		return c.Timestamp
	case *event.PayProfit:
		return c.Timestamp
	case *event.Liquidate:
		return c.Timestamp
	case *event.AddSubmitter:
		return c.Timestamp
	case *event.RemoveSubmitter:
		return c.Timestamp
	case *event.AddLiquidator:
		return c.Timestamp
	case *event.RemoveLiquidator:
		return c.Timestamp
	case *event.SetAdmin:
		return c.Timestamp
	case *event.SetPause:
		return c.Timestamp
	case *event.SetMinReserveRatio:
		return c.Timestamp
	default:
		panic(fmt.Sprintf("FATAL: getCommandTimestamp called with unhandled command type %T — deterministic core cannot use wall-clock time", cmd))
	}
}

func (e *SettlementEngine) dispatchCommand(meta ledger.BatchMeta, cmd event.Command) (*pool.Receipt, error) {
	if c, ok := cmd.(*event.CreatePool); ok {
		if _, err := e.registry.Create(c.Asset, c.Caller); err != nil {
			return nil, err
		}
		return &pool.Receipt{
			Batch:     ledger.NewBatch(meta),
			Events:    []event.Notification{event.PoolCreated{Asset: c.Asset, Admin: c.Caller}},
			ReserveOK: true,
		}, nil
	}

	p, err := e.registry.Get(cmd.PoolAsset())
	if err != nil {
		return nil, err
	}

	switch c := cmd.(type) {
	case *event.LiquidityDeposit:
		return p.LiquidityDeposit(meta, c.Caller, c.Amount)
	case *event.LiquidityWithdraw:
		return p.LiquidityWithdraw(meta, c.Caller, c.To, c.Amount)
	case *event.ReserveFunds:
		return p.ReserveFunds(meta, c.Caller, c.ObligationID, c.Amount)
	case *event.ReleaseReserved:
		return p.ReleaseReserved(meta, c.Caller, c.Amount)
	case *event.UserDeposit:
		return p.UserDeposit(meta, c.Caller, c.Amount)
	case *event.UserWithdraw:
		return p.UserWithdraw(meta, c.Caller, c.Amount)
	case *event.SubmitOrder:
		return p.SubmitOrder(meta, c.Caller, c.OrderID, c.User, c.Premium, c.ObligationID, c.PotentialPayout)
	case *event.PayProfit:
		return p.PayProfit(meta, c.Caller, c.User, c.Amount)
	case *event.Liquidate:
		return p.Liquidate(meta, c.Caller, c.ObligationID, c.User, c.InitialReserved, c.Payout)
	case *event.AddSubmitter:
		return p.AddSubmitter(meta, c.Caller, c.Address)
	case *event.RemoveSubmitter:
		return p.RemoveSubmitter(meta, c.Caller, c.Address)
	case *event.AddLiquidator:
		return p.AddLiquidator(meta, c.Caller, c.Address)
	case *event.RemoveLiquidator:
		return p.RemoveLiquidator(meta, c.Caller, c.Address)
	case *event.SetAdmin:
		return p.SetAdmin(meta, c.Caller, c.Address)
	case *event.SetPause:
		return p.SetPause(meta, c.Caller, c.Paused)
	case *event.SetMinReserveRatio:
		return p.SetMinReserveRatio(meta, c.Caller, c.Ratio)
	default:
		return nil, fmt.Errorf("unknown command type: %T", cmd)
	}
}

// computeStateDigest creates canonical bytes for the state hash
func (e *SettlementEngine) computeStateDigest(batch *ledger.Batch) []byte {
	// Collect all affected accounts
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	// Sort accounts deterministically
	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	// Sort by AccountPath (deterministic string ordering)
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	// Build digest
	digest := make([]byte, 0, len(accounts)*64)

	for _, key := range accounts {
		balance := e.books.Balance(key)

		// Append account path
		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)

		// Append balance (8 bytes LE)
		digest = appendInt64LE(digest, balance)
	}

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// postCheckInvariants cross-checks the affected pool's internal state
// against the double-entry books after batch application.
func (e *SettlementEngine) postCheckInvariants(cmd event.Command) error {
	asset := cmd.PoolAsset()
	if p, err := e.registry.Get(asset); err == nil {
		if err := p.CheckInvariants(); err != nil {
			return err
		}
		s := p.Status()
		if got := e.books.TreasuryAvailable(asset); got != s.Available {
			return fmt.Errorf("books/pool divergence for %s: available books=%d pool=%d", asset, got, s.Available)
		}
		if got := e.books.TreasuryReserved(asset); got != s.Reserved {
			return fmt.Errorf("books/pool divergence for %s: reserved books=%d pool=%d", asset, got, s.Reserved)
		}
	}

	// Periodic global zero-sum check across all assets
	if e.sequence > 0 && e.sequence%1000 == 0 {
		totals := e.books.ComputeGlobalBalance()
		for asset, total := range totals {
			if total != 0 {
				return fmt.Errorf("global balance non-zero for asset %s: %d (at seq %d)",
					asset, total, e.sequence)
			}
		}
	}

	return nil
}

// --- Snapshot Restore & Startup Methods ---

// SnapshotState holds the serializable in-memory state for restore.
// This mirrors persistence.SnapshotData but uses typed fields.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	Pools           []pool.SnapshotState
	Books           map[string]int64
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (e *SettlementEngine) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		Sequence:        e.sequence - 1, // Last processed sequence
		StateHash:       e.hasher.GetPrevHash(),
		Pools:           e.registry.Snapshot(),
		Books:           e.books.Snapshot(),
		SequenceState:   e.sequenceValidator.Snapshot(),
		IdempotencyKeys: e.idempotency.lru.GetAllKeys(),
	}
}

// RestoreFromSnapshot restores the engine's in-memory state from a snapshot.
// On warm restart the caller loads the latest snapshot then replays the
// event log tail on top.
func (e *SettlementEngine) RestoreFromSnapshot(snap *SnapshotState) error {
	e.sequence = snap.Sequence + 1 // Next sequence to assign
	e.hasher.SetPrevHash(snap.StateHash)
	e.registry.Restore(snap.Pools)

	for path, balance := range snap.Books {
		key, err := ledger.ParseAccountPath(path)
		if err != nil {
			return fmt.Errorf("restore books: %w", err)
		}
		e.books.SetBalance(key, balance)
	}

	e.sequenceValidator.Restore(snap.SequenceState)
	e.idempotency.WarmFromKeys(snap.IdempotencyKeys)
	return nil
}

// GetSequence returns the current global sequence number.
func (e *SettlementEngine) GetSequence() int64 {
	return e.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (e *SettlementEngine) GetStateHash() [32]byte {
	return e.hasher.GetPrevHash()
}
