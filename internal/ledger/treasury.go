package ledger

import "fmt"

// RatioDenominator is the basis-point denominator for the minimum reserve
// ratio: a ratio of 1_000 means a 10% cushion on top of reserved funds.
const RatioDenominator = 10_000

// TreasuryLedger holds the platform-side balance of one pool, split into
// capital free to be reserved or withdrawn (available) and capital committed
// to outstanding obligations (reserved). total == available + reserved at
// all times; reserved only moves through Reserve, Release, and
// DebitForPayout.
type TreasuryLedger struct {
	total     int64
	available int64
	reserved  int64
}

func NewTreasuryLedger() *TreasuryLedger {
	return &TreasuryLedger{}
}

func (t *TreasuryLedger) Total() int64     { return t.total }
func (t *TreasuryLedger) Available() int64 { return t.available }
func (t *TreasuryLedger) Reserved() int64  { return t.reserved }

// Deposit adds platform liquidity. Amount must be positive.
func (t *TreasuryLedger) Deposit(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit %d: %w", amount, ErrInvalidAmount)
	}
	t.available += amount
	t.total += amount
	return nil
}

// Withdraw removes platform liquidity. The withdrawal must be covered by
// available funds and must not reduce the remaining treasury below the
// reserve floor: reserved plus the ratio cushion on top of it.
func (t *TreasuryLedger) Withdraw(amount int64, minReserveRatio int64) error {
	if amount <= 0 {
		return fmt.Errorf("withdraw %d: %w", amount, ErrInvalidAmount)
	}
	if t.available < amount {
		return fmt.Errorf("withdraw %d with available %d: %w", amount, t.available, ErrInsufficientAvailable)
	}
	floor := t.reserved + t.reserved*minReserveRatio/RatioDenominator
	if t.total-amount < floor {
		return fmt.Errorf("withdraw %d would leave %d below floor %d: %w",
			amount, t.total-amount, floor, ErrReserveFloorViolation)
	}
	t.available -= amount
	t.total -= amount
	return nil
}

// Reserve commits available capital to an obligation. Insufficient available
// capital is a soft failure: Reserve reports false and changes nothing.
// Callers must check the return value.
func (t *TreasuryLedger) Reserve(amount int64) bool {
	if t.available < amount {
		return false
	}
	t.available -= amount
	t.reserved += amount
	return true
}

// Release returns reserved capital to the available balance. A zero amount
// is a degenerate no-op.
func (t *TreasuryLedger) Release(amount int64) error {
	if amount == 0 {
		return nil
	}
	if t.reserved < amount {
		return fmt.Errorf("release %d with reserved %d: %w", amount, t.reserved, ErrInsufficientReserve)
	}
	t.reserved -= amount
	t.available += amount
	return nil
}

// DebitForPayout removes reserved capital from the treasury entirely; the
// value moves to the user ledger as profit.
func (t *TreasuryLedger) DebitForPayout(amount int64) error {
	if amount == 0 {
		return nil
	}
	if t.reserved < amount {
		return fmt.Errorf("payout %d with reserved %d: %w", amount, t.reserved, ErrInsufficientReserve)
	}
	t.reserved -= amount
	t.total -= amount
	return nil
}

// CreditFromPremium adds collected premium to the available balance; the
// value arrives from the user ledger.
func (t *TreasuryLedger) CreditFromPremium(amount int64) {
	t.available += amount
	t.total += amount
}

// CanReserve reports whether a reservation of amount would succeed.
func (t *TreasuryLedger) CanReserve(amount int64) bool {
	return t.available >= amount
}

// CheckConsistency verifies available + reserved == total.
func (t *TreasuryLedger) CheckConsistency() error {
	if t.available+t.reserved != t.total {
		return fmt.Errorf("treasury unbalanced: available=%d reserved=%d total=%d",
			t.available, t.reserved, t.total)
	}
	if t.available < 0 || t.reserved < 0 {
		return fmt.Errorf("treasury negative: available=%d reserved=%d", t.available, t.reserved)
	}
	return nil
}

// Restore overwrites the ledger from snapshot values.
func (t *TreasuryLedger) Restore(total, available, reserved int64) {
	t.total = total
	t.available = available
	t.reserved = reserved
}
