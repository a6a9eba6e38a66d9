package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeLiquidityDeposit JournalType = iota
	JournalTypeLiquidityWithdrawal
	JournalTypeReserve
	JournalTypeRelease
	JournalTypeUserDeposit
	JournalTypeUserWithdrawal
	JournalTypePremiumCollect
	JournalTypeProfitPayout
)

func (jt JournalType) String() string {
	switch jt {
	case JournalTypeLiquidityDeposit:
		return "liquidity_deposit"
	case JournalTypeLiquidityWithdrawal:
		return "liquidity_withdrawal"
	case JournalTypeReserve:
		return "reserve"
	case JournalTypeRelease:
		return "release"
	case JournalTypeUserDeposit:
		return "user_deposit"
	case JournalTypeUserWithdrawal:
		return "user_withdrawal"
	case JournalTypePremiumCollect:
		return "premium_collect"
	case JournalTypeProfitPayout:
		return "profit_payout"
	default:
		return "unknown"
	}
}

// Journal represents a single double-entry journal entry
type Journal struct {
	JournalID     uuid.UUID   // Unique identifier
	BatchID       uuid.UUID   // Groups entries of one operation
	CommandRef    string      // Idempotency key of source command
	Sequence      int64       // Global command sequence
	DebitAccount  AccountKey  // Account receiving debit (balance increases)
	CreditAccount AccountKey  // Account receiving credit (balance decreases)
	Asset         string      // Asset being transferred
	Amount        int64       // Fixed-point amount (ALWAYS positive)
	JournalType   JournalType // Entry type
	Timestamp     int64       // Versioned input timestamp (epoch microseconds)
}

// Batch represents the set of journal entries produced by one operation.
// A single positive amount moves from credit account to debit account per
// entry, so every entry is balanced by construction; composite operations
// (order submission, liquidation) use multiple entries under one batch_id.
type Batch struct {
	BatchID    uuid.UUID
	CommandRef string
	Sequence   int64
	Timestamp  int64
	Journals   []Journal
}

// BatchMeta carries the engine-assigned identity stamped onto every journal
// entry a pool operation produces.
type BatchMeta struct {
	CommandRef string
	Sequence   int64
	Timestamp  int64 // epoch microseconds, versioned input
}

// NewBatch creates an empty batch for one operation.
func NewBatch(meta BatchMeta) *Batch {
	return &Batch{
		BatchID:    uuid.New(),
		CommandRef: meta.CommandRef,
		Sequence:   meta.Sequence,
		Timestamp:  meta.Timestamp,
	}
}

// Append adds one balanced transfer entry to the batch.
func (b *Batch) Append(jt JournalType, debit, credit AccountKey, asset string, amount int64) {
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       b.BatchID,
		CommandRef:    b.CommandRef,
		Sequence:      b.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		Asset:         asset,
		Amount:        amount,
		JournalType:   jt,
		Timestamp:     b.Timestamp,
	})
}

// Validate ensures the batch is well-formed. Empty batches are legal here
// (state-only operations such as access-list changes produce no journals);
// the book keeper skips them.
func (b *Batch) Validate() error {
	for _, j := range b.Journals {
		if j.Amount <= 0 {
			return fmt.Errorf("journal %s has non-positive amount: %d", j.JournalID, j.Amount)
		}

		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}

		// No self-transfers
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
	}

	return nil
}
