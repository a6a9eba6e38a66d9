package ledger

import (
	"errors"
	"testing"
)

func TestTreasuryDepositWithdraw(t *testing.T) {
	tr := NewTreasuryLedger()

	if err := tr.Deposit(1000); err != nil {
		t.Fatal(err)
	}
	if tr.Total() != 1000 || tr.Available() != 1000 || tr.Reserved() != 0 {
		t.Errorf("after deposit: total=%d available=%d reserved=%d", tr.Total(), tr.Available(), tr.Reserved())
	}

	if err := tr.Deposit(0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero deposit: expected ErrInvalidAmount, got %v", err)
	}
	if err := tr.Deposit(-5); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative deposit: expected ErrInvalidAmount, got %v", err)
	}

	if err := tr.Withdraw(400, 0); err != nil {
		t.Fatal(err)
	}
	if tr.Total() != 600 || tr.Available() != 600 {
		t.Errorf("after withdraw: total=%d available=%d", tr.Total(), tr.Available())
	}

	if err := tr.Withdraw(601, 0); !errors.Is(err, ErrInsufficientAvailable) {
		t.Errorf("overdraw: expected ErrInsufficientAvailable, got %v", err)
	}
	if err := tr.Withdraw(0, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero withdraw: expected ErrInvalidAmount, got %v", err)
	}
	if err := tr.CheckConsistency(); err != nil {
		t.Error(err)
	}
}

func TestTreasuryReserveFloor(t *testing.T) {
	tr := NewTreasuryLedger()
	if err := tr.Deposit(1_000_000_000); err != nil {
		t.Fatal(err)
	}
	if !tr.Reserve(100_000_000) {
		t.Fatal("reserve failed")
	}

	// ratio 1000 bp = 10% cushion: floor = 100_000_000 + 10_000_000.
	err := tr.Withdraw(890_000_001, 1000)
	if !errors.Is(err, ErrReserveFloorViolation) {
		t.Fatalf("expected ErrReserveFloorViolation, got %v", err)
	}
	if tr.Total() != 1_000_000_000 {
		t.Error("failed withdraw must not mutate")
	}
	if err := tr.Withdraw(890_000_000, 1000); err != nil {
		t.Fatalf("withdraw to exact floor: %v", err)
	}
	if tr.Total() != 110_000_000 || tr.Available() != 10_000_000 || tr.Reserved() != 100_000_000 {
		t.Errorf("after floor withdraw: total=%d available=%d reserved=%d", tr.Total(), tr.Available(), tr.Reserved())
	}
}

func TestTreasuryReserveSoftFailure(t *testing.T) {
	tr := NewTreasuryLedger()
	if err := tr.Deposit(100); err != nil {
		t.Fatal(err)
	}

	if tr.Reserve(101) {
		t.Error("reserve beyond available must return false")
	}
	if tr.Total() != 100 || tr.Available() != 100 || tr.Reserved() != 0 {
		t.Error("failed reserve must not mutate")
	}

	if !tr.Reserve(100) {
		t.Error("exact reserve must succeed")
	}
	if tr.Available() != 0 || tr.Reserved() != 100 {
		t.Errorf("after reserve: available=%d reserved=%d", tr.Available(), tr.Reserved())
	}
	if tr.CanReserve(1) {
		t.Error("CanReserve must report exhaustion")
	}
}

func TestTreasuryReleaseAndPayout(t *testing.T) {
	tr := NewTreasuryLedger()
	if err := tr.Deposit(100); err != nil {
		t.Fatal(err)
	}
	if !tr.Reserve(60) {
		t.Fatal("reserve failed")
	}

	if err := tr.Release(0); err != nil {
		t.Errorf("zero release should be a no-op: %v", err)
	}
	if err := tr.Release(61); !errors.Is(err, ErrInsufficientReserve) {
		t.Errorf("over-release: expected ErrInsufficientReserve, got %v", err)
	}
	if err := tr.Release(20); err != nil {
		t.Fatal(err)
	}
	if tr.Available() != 60 || tr.Reserved() != 40 || tr.Total() != 100 {
		t.Errorf("after release: available=%d reserved=%d total=%d", tr.Available(), tr.Reserved(), tr.Total())
	}

	if err := tr.DebitForPayout(41); !errors.Is(err, ErrInsufficientReserve) {
		t.Errorf("over-payout: expected ErrInsufficientReserve, got %v", err)
	}
	if err := tr.DebitForPayout(40); err != nil {
		t.Fatal(err)
	}
	if tr.Total() != 60 || tr.Reserved() != 0 {
		t.Errorf("after payout: total=%d reserved=%d", tr.Total(), tr.Reserved())
	}
	if err := tr.CheckConsistency(); err != nil {
		t.Error(err)
	}
}

func TestTreasuryPremiumCredit(t *testing.T) {
	tr := NewTreasuryLedger()
	tr.CreditFromPremium(25)
	if tr.Total() != 25 || tr.Available() != 25 {
		t.Errorf("after premium: total=%d available=%d", tr.Total(), tr.Available())
	}
}

func TestUserLedgerLifecycle(t *testing.T) {
	u := NewUserLedger()

	if _, ok := u.Balance("alice"); ok {
		t.Error("absent user must report no entry")
	}
	if err := u.Deposit("alice", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero deposit: expected ErrInvalidAmount, got %v", err)
	}
	if err := u.Deposit("alice", 100); err != nil {
		t.Fatal(err)
	}
	if err := u.Deposit("bob", 50); err != nil {
		t.Fatal(err)
	}
	if u.Total() != 150 {
		t.Errorf("total: got %d, want 150", u.Total())
	}

	if err := u.Debit("carol", 10); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user: expected ErrUserNotFound, got %v", err)
	}
	if err := u.Debit("alice", 101); !errors.Is(err, ErrInsufficientUserBalance) {
		t.Errorf("overdraw: expected ErrInsufficientUserBalance, got %v", err)
	}
	if err := u.Withdraw("alice", 100); err != nil {
		t.Fatal(err)
	}

	// A drained entry persists at zero rather than disappearing.
	bal, ok := u.Balance("alice")
	if !ok || bal != 0 {
		t.Errorf("drained entry: bal=%d ok=%v", bal, ok)
	}

	u.Credit("carol", 30)
	if bal, ok := u.Balance("carol"); !ok || bal != 30 {
		t.Errorf("credit creates entry: bal=%d ok=%v", bal, ok)
	}
	u.Credit("carol", 0)
	if u.Total() != 80 {
		t.Errorf("total: got %d, want 80", u.Total())
	}
	if err := u.CheckConsistency(); err != nil {
		t.Error(err)
	}
}

func TestUserLedgerSnapshotRestore(t *testing.T) {
	u := NewUserLedger()
	if err := u.Deposit("alice", 100); err != nil {
		t.Fatal(err)
	}
	u.Credit("bob", 40)

	snap := u.Snapshot()
	restored := NewUserLedger()
	restored.Restore(snap)

	if restored.Total() != 140 {
		t.Errorf("restored total: got %d, want 140", restored.Total())
	}
	if bal, _ := restored.Balance("alice"); bal != 100 {
		t.Errorf("restored alice: got %d", bal)
	}

	// Snapshot is a copy, not an alias.
	snap["alice"] = 999
	if bal, _ := u.Balance("alice"); bal != 100 {
		t.Error("snapshot mutation leaked into the ledger")
	}
}

func TestAccountPathRoundTrip(t *testing.T) {
	keys := []AccountKey{
		NewTreasuryAccountKey(SubTypeAvailable, "USDC"),
		NewTreasuryAccountKey(SubTypeReserved, "USDC"),
		NewUserAccountKey("alice", "WETH"),
		NewExternalAccountKey(SubTypeExternalDeposits, "USDC"),
		NewExternalAccountKey(SubTypeExternalWithdrawals, "USDC"),
		NewExternalAccountKey(SubTypeExternalPayouts, "USDC"),
	}
	for _, k := range keys {
		parsed, err := ParseAccountPath(k.AccountPath())
		if err != nil {
			t.Errorf("parse %q: %v", k.AccountPath(), err)
			continue
		}
		if parsed != k {
			t.Errorf("round trip %q: got %+v, want %+v", k.AccountPath(), parsed, k)
		}
	}

	for _, bad := range []string{"", "treasury", "treasury:available", "nonsense:foo:USDC"} {
		if _, err := ParseAccountPath(bad); err == nil {
			t.Errorf("expected error parsing %q", bad)
		}
	}
}

func TestBatchValidate(t *testing.T) {
	meta := BatchMeta{CommandRef: "cmd-1", Sequence: 7, Timestamp: 1234}
	b := NewBatch(meta)
	b.Append(JournalTypeLiquidityDeposit,
		NewTreasuryAccountKey(SubTypeAvailable, "USDC"),
		NewExternalAccountKey(SubTypeExternalDeposits, "USDC"),
		"USDC", 100)

	if err := b.Validate(); err != nil {
		t.Fatalf("valid batch: %v", err)
	}

	// Empty batches are legal: state-only operations record no journals.
	if err := NewBatch(meta).Validate(); err != nil {
		t.Errorf("empty batch: %v", err)
	}

	b2 := NewBatch(meta)
	b2.Append(JournalTypeReserve,
		NewTreasuryAccountKey(SubTypeReserved, "USDC"),
		NewTreasuryAccountKey(SubTypeAvailable, "USDC"),
		"USDC", 0)
	if err := b2.Validate(); err == nil {
		t.Error("zero-amount journal must fail validation")
	}

	b3 := NewBatch(meta)
	acct := NewTreasuryAccountKey(SubTypeAvailable, "USDC")
	b3.Append(JournalTypeReserve, acct, acct, "USDC", 10)
	if err := b3.Validate(); err == nil {
		t.Error("self-transfer must fail validation")
	}
}

func TestBookKeeperZeroSum(t *testing.T) {
	books := NewBookKeeper()
	meta := BatchMeta{CommandRef: "cmd-1", Sequence: 1, Timestamp: 1}

	b := NewBatch(meta)
	b.Append(JournalTypeLiquidityDeposit,
		NewTreasuryAccountKey(SubTypeAvailable, "USDC"),
		NewExternalAccountKey(SubTypeExternalDeposits, "USDC"),
		"USDC", 1000)
	b.Append(JournalTypeUserDeposit,
		NewUserAccountKey("alice", "USDC"),
		NewExternalAccountKey(SubTypeExternalDeposits, "USDC"),
		"USDC", 100)
	if err := books.ApplyBatch(b); err != nil {
		t.Fatal(err)
	}

	if got := books.TreasuryAvailable("USDC"); got != 1000 {
		t.Errorf("treasury available: got %d, want 1000", got)
	}
	if got := books.UserBalance("alice", "USDC"); got != 100 {
		t.Errorf("alice: got %d, want 100", got)
	}

	global := books.ComputeGlobalBalance()
	if global["USDC"] != 0 {
		t.Errorf("global sum per asset must be zero, got %d", global["USDC"])
	}

	v := NewInvariantValidator(books)
	if err := v.ValidateGlobalBalance(); err != nil {
		t.Error(err)
	}
}
