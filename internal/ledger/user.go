package ledger

import "fmt"

// UserLedger holds the per-address custodial balances of one pool plus the
// aggregate total. Absence of an entry means zero; total always equals the
// sum of all entries.
type UserLedger struct {
	balances map[string]int64
	total    int64
}

func NewUserLedger() *UserLedger {
	return &UserLedger{
		balances: make(map[string]int64),
	}
}

// Balance returns a user's balance and whether an entry exists.
func (u *UserLedger) Balance(user string) (int64, bool) {
	bal, ok := u.balances[user]
	return bal, ok
}

// Total returns the aggregate custodial total.
func (u *UserLedger) Total() int64 { return u.total }

// Deposit credits a user's custodial balance. Amount must be positive.
func (u *UserLedger) Deposit(user string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("user deposit %d: %w", amount, ErrInvalidAmount)
	}
	u.balances[user] += amount
	u.total += amount
	return nil
}

// Withdraw debits a user's custodial balance for an outward transfer.
func (u *UserLedger) Withdraw(user string, amount int64) error {
	return u.Debit(user, amount)
}

// Debit removes value from a user's balance. Used by withdrawals (value
// leaves custody) and by premium collection (value moves to the treasury).
// The entry must exist and cover the amount.
func (u *UserLedger) Debit(user string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("user debit %d: %w", amount, ErrInvalidAmount)
	}
	bal, ok := u.balances[user]
	if !ok {
		return fmt.Errorf("debit user %s: %w", user, ErrUserNotFound)
	}
	if bal < amount {
		return fmt.Errorf("debit %d with balance %d: %w", amount, bal, ErrInsufficientUserBalance)
	}
	u.balances[user] = bal - amount
	u.total -= amount
	return nil
}

// Credit adds value to a user's balance, creating the entry if absent; value
// arrives from the treasury (profit payout). A zero amount is a no-op.
func (u *UserLedger) Credit(user string, amount int64) {
	if amount == 0 {
		return
	}
	u.balances[user] += amount
	u.total += amount
}

// CheckConsistency verifies sum(balances) == total and non-negativity.
func (u *UserLedger) CheckConsistency() error {
	var sum int64
	for user, bal := range u.balances {
		if bal < 0 {
			return fmt.Errorf("user %s has negative balance: %d", user, bal)
		}
		sum += bal
	}
	if sum != u.total {
		return fmt.Errorf("user ledger unbalanced: sum=%d total=%d", sum, u.total)
	}
	return nil
}

// Snapshot returns a copy of all balances.
func (u *UserLedger) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(u.balances))
	for user, bal := range u.balances {
		out[user] = bal
	}
	return out
}

// Restore overwrites the ledger from snapshot values.
func (u *UserLedger) Restore(balances map[string]int64) {
	u.balances = make(map[string]int64, len(balances))
	u.total = 0
	for user, bal := range balances {
		u.balances[user] = bal
		u.total += bal
	}
}
