package ledger

import "fmt"

// BookKeeper maintains the double-entry audit books: one signed balance per
// account key, updated only by applying journal batches. The books shadow
// the pool aggregates and are cross-checked against them after every
// operation; because every journal is a balanced transfer, the books sum to
// zero per asset at all times.
type BookKeeper struct {
	balances map[AccountKey]int64
}

func NewBookKeeper() *BookKeeper {
	return &BookKeeper{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry to the books.
func (bk *BookKeeper) ApplyJournal(j Journal) {
	bk.balances[j.DebitAccount] += j.Amount
	bk.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch validates and applies all journals in a batch.
func (bk *BookKeeper) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bk.ApplyJournal(j)
	}

	return nil
}

// Balance returns the current book balance for an account.
func (bk *BookKeeper) Balance(key AccountKey) int64 {
	return bk.balances[key]
}

// TreasuryAvailable returns the booked available balance for an asset.
func (bk *BookKeeper) TreasuryAvailable(asset string) int64 {
	return bk.balances[NewTreasuryAccountKey(SubTypeAvailable, asset)]
}

// TreasuryReserved returns the booked reserved balance for an asset.
func (bk *BookKeeper) TreasuryReserved(asset string) int64 {
	return bk.balances[NewTreasuryAccountKey(SubTypeReserved, asset)]
}

// UserBalance returns the booked custodial balance for a user.
func (bk *BookKeeper) UserBalance(user, asset string) int64 {
	return bk.balances[NewUserAccountKey(user, asset)]
}

// ComputeGlobalBalance sums all account balances per asset (zero for a
// zero-sum ledger).
func (bk *BookKeeper) ComputeGlobalBalance() map[string]int64 {
	totals := make(map[string]int64)

	for key, balance := range bk.balances {
		totals[key.Asset] += balance
	}

	return totals
}

// Snapshot returns a copy of all book balances keyed by account path.
func (bk *BookKeeper) Snapshot() map[string]int64 {
	snapshot := make(map[string]int64, len(bk.balances))
	for k, v := range bk.balances {
		snapshot[k.AccountPath()] = v
	}
	return snapshot
}

// SetBalance overwrites one account balance (snapshot restore only).
func (bk *BookKeeper) SetBalance(key AccountKey, balance int64) {
	bk.balances[key] = balance
}

// InvariantValidator checks books-level invariants.
type InvariantValidator struct {
	books *BookKeeper
}

func NewInvariantValidator(books *BookKeeper) *InvariantValidator {
	return &InvariantValidator{books: books}
}

// ValidateBatchBalance verifies a batch is well-formed before application.
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateGlobalBalance verifies the books are zero-sum per asset.
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.books.ComputeGlobalBalance()

	for asset, total := range totals {
		if total != 0 {
			return fmt.Errorf("global balance for %s is non-zero: %d", asset, total)
		}
	}

	return nil
}

// ValidateTreasuryNonNegative checks the booked treasury accounts for an
// asset are non-negative.
func (v *InvariantValidator) ValidateTreasuryNonNegative(asset string) error {
	if bal := v.books.TreasuryAvailable(asset); bal < 0 {
		return fmt.Errorf("treasury available for %s is negative: %d", asset, bal)
	}
	if bal := v.books.TreasuryReserved(asset); bal < 0 {
		return fmt.Errorf("treasury reserved for %s is negative: %d", asset, bal)
	}
	return nil
}
