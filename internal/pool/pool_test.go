package pool

import (
	"errors"
	"testing"

	"OptionLedger/internal/ledger"
)

func meta(seq int64) ledger.BatchMeta {
	return ledger.BatchMeta{CommandRef: "test", Sequence: seq, Timestamp: seq * 1000}
}

func mustDeposit(t *testing.T, p *Pool, seq int64, caller string, amount int64) {
	t.Helper()
	if _, err := p.LiquidityDeposit(meta(seq), caller, amount); err != nil {
		t.Fatalf("liquidity deposit: %v", err)
	}
}

func mustUserDeposit(t *testing.T, p *Pool, seq int64, user string, amount int64) {
	t.Helper()
	if _, err := p.UserDeposit(meta(seq), user, amount); err != nil {
		t.Fatalf("user deposit: %v", err)
	}
}

func checkStatus(t *testing.T, p *Pool, total, available, reserved, userTotal int64) {
	t.Helper()
	s := p.Status()
	if s.TreasuryTotal != total {
		t.Errorf("treasury total: got %d, want %d", s.TreasuryTotal, total)
	}
	if s.Available != available {
		t.Errorf("available: got %d, want %d", s.Available, available)
	}
	if s.Reserved != reserved {
		t.Errorf("reserved: got %d, want %d", s.Reserved, reserved)
	}
	if s.UserTotal != userTotal {
		t.Errorf("user total: got %d, want %d", s.UserTotal, userTotal)
	}
	if err := p.CheckInvariants(); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestEndToEndOrderLifecycle(t *testing.T) {
	p := NewPool("USDC", "admin")

	mustDeposit(t, p, 1, "lp1", 1000)
	mustUserDeposit(t, p, 2, "alice", 100)
	checkStatus(t, p, 1000, 1000, 0, 100)

	// Premium lands in available, payout moves to reserved.
	r, err := p.SubmitOrder(meta(3), "admin", "ord-1", "alice", 10, "obl-1", 50)
	if err != nil {
		t.Fatalf("submit order: %v", err)
	}
	checkStatus(t, p, 1010, 960, 50, 90)
	if bal, _ := p.UserBalance("alice"); bal != 90 {
		t.Errorf("alice balance: got %d, want 90", bal)
	}
	if len(r.Events) != 3 {
		t.Fatalf("expected 3 events (premium, reserve, order), got %d", len(r.Events))
	}
	if len(r.Batch.Journals) != 2 {
		t.Fatalf("expected 2 journals, got %d", len(r.Batch.Journals))
	}

	// Payout 30 from reserved, remainder 20 released back to available.
	r, err = p.Liquidate(meta(4), "admin", "obl-1", "alice", 50, 30)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	checkStatus(t, p, 980, 980, 0, 120)
	if bal, _ := p.UserBalance("alice"); bal != 120 {
		t.Errorf("alice balance after liquidation: got %d, want 120", bal)
	}
	if len(r.Events) != 2 {
		t.Fatalf("expected 2 events (profit, liquidated), got %d", len(r.Events))
	}
}

func TestSubmitOrderAtomicity(t *testing.T) {
	p := NewPool("USDC", "admin")

	// User has exactly enough premium, pool cannot back the payout.
	mustDeposit(t, p, 1, "lp1", 30)
	mustUserDeposit(t, p, 2, "alice", 10)

	_, err := p.SubmitOrder(meta(3), "admin", "ord-1", "alice", 10, "obl-1", 50)
	if !errors.Is(err, ledger.ErrInsufficientReserve) {
		t.Fatalf("expected ErrInsufficientReserve, got %v", err)
	}

	// Premium debit must not be observable after the failed composite.
	checkStatus(t, p, 30, 30, 0, 10)
	if bal, _ := p.UserBalance("alice"); bal != 10 {
		t.Errorf("alice balance after failed order: got %d, want 10", bal)
	}
}

func TestSubmitOrderPremiumCountsTowardPayout(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 45)
	mustUserDeposit(t, p, 2, "alice", 10)

	// available=45 < payout=50, but premium 10 lands first: 55 >= 50.
	if _, err := p.SubmitOrder(meta(3), "admin", "ord-1", "alice", 10, "obl-1", 50); err != nil {
		t.Fatalf("submit order: %v", err)
	}
	checkStatus(t, p, 55, 5, 50, 0)
}

func TestSubmitOrderZeroPremiumRejected(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 100)
	mustUserDeposit(t, p, 2, "alice", 10)

	if _, err := p.SubmitOrder(meta(3), "admin", "ord-1", "alice", 0, "obl-1", 50); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("zero premium should fail, got %v", err)
	}
	checkStatus(t, p, 100, 100, 0, 10)
}

func TestSubmitOrderZeroPayoutSkipsReserve(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 100)
	mustUserDeposit(t, p, 2, "alice", 10)

	r, err := p.SubmitOrder(meta(3), "admin", "ord-1", "alice", 10, "obl-1", 0)
	if err != nil {
		t.Fatalf("submit order: %v", err)
	}
	checkStatus(t, p, 110, 110, 0, 0)
	// No FundsReserved event for a degenerate zero reservation.
	if len(r.Events) != 2 {
		t.Errorf("expected premium + order events only, got %d", len(r.Events))
	}
}

func TestReserveSoftFailure(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 100)

	r, err := p.ReserveFunds(meta(2), "admin", "obl-1", 500)
	if err != nil {
		t.Fatalf("soft failure must not error: %v", err)
	}
	if r.ReserveOK {
		t.Error("expected ReserveOK=false")
	}
	if len(r.Events) != 0 {
		t.Errorf("soft failure must emit no events, got %d", len(r.Events))
	}
	if len(r.Batch.Journals) != 0 {
		t.Errorf("soft failure must record no journals, got %d", len(r.Batch.Journals))
	}
	checkStatus(t, p, 100, 100, 0, 0)

	// Success path for contrast.
	r, err = p.ReserveFunds(meta(3), "admin", "obl-1", 60)
	if err != nil || !r.ReserveOK {
		t.Fatalf("reserve: ok=%v err=%v", r.ReserveOK, err)
	}
	checkStatus(t, p, 100, 40, 60, 0)
}

func TestReserveZeroRejected(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 100)
	if _, err := p.ReserveFunds(meta(2), "admin", "obl-1", 0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("zero reserve should fail, got %v", err)
	}
}

func TestReleaseZeroIsNoOp(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 100)

	r, err := p.ReleaseReserved(meta(2), "admin", 0)
	if err != nil {
		t.Fatalf("zero release should be a no-op: %v", err)
	}
	if len(r.Batch.Journals) != 0 {
		t.Errorf("zero release must record no journals")
	}
	checkStatus(t, p, 100, 100, 0, 0)
}

func TestWithdrawReserveFloor(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 1_000_000_000)
	if _, err := p.SetMinReserveRatio(meta(2), "admin", 1000); err != nil {
		t.Fatal(err)
	}
	r, err := p.ReserveFunds(meta(3), "admin", "obl-1", 100_000_000)
	if err != nil || !r.ReserveOK {
		t.Fatalf("reserve: ok=%v err=%v", r.ReserveOK, err)
	}

	// Floor is reserved plus 10% cushion: 110_000_000. Withdrawing
	// 890_000_001 would leave 109_999_999.
	_, err = p.LiquidityWithdraw(meta(4), "admin", "out", 890_000_001)
	if !errors.Is(err, ledger.ErrReserveFloorViolation) {
		t.Fatalf("expected ErrReserveFloorViolation, got %v", err)
	}
	checkStatus(t, p, 1_000_000_000, 900_000_000, 100_000_000, 0)

	// Leaving exactly the floor succeeds.
	if _, err := p.LiquidityWithdraw(meta(5), "admin", "out", 890_000_000); err != nil {
		t.Fatalf("withdraw to exact floor: %v", err)
	}
	checkStatus(t, p, 110_000_000, 10_000_000, 100_000_000, 0)
}

func TestDepositWithdrawConservation(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 500)

	mustDeposit(t, p, 2, "lp1", 123)
	if _, err := p.LiquidityWithdraw(meta(3), "admin", "out", 123); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	checkStatus(t, p, 500, 500, 0, 0)
}

func TestLiquidateValidation(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 1000)
	r, err := p.ReserveFunds(meta(2), "admin", "obl-1", 100)
	if err != nil || !r.ReserveOK {
		t.Fatal("reserve failed")
	}

	// Payout above the initial reservation is rejected.
	if _, err := p.Liquidate(meta(3), "admin", "obl-1", "alice", 100, 150); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("payout > initial should fail, got %v", err)
	}
	// Zero initial reservation is rejected.
	if _, err := p.Liquidate(meta(4), "admin", "obl-1", "alice", 0, 0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("zero initial should fail, got %v", err)
	}
	// Claiming more than is reserved is rejected.
	if _, err := p.Liquidate(meta(5), "admin", "obl-1", "alice", 200, 50); !errors.Is(err, ledger.ErrInsufficientReserve) {
		t.Errorf("over-claim should fail, got %v", err)
	}
	checkStatus(t, p, 1000, 900, 100, 0)

	// Zero payout releases everything.
	rec, err := p.Liquidate(meta(6), "admin", "obl-1", "alice", 100, 0)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	checkStatus(t, p, 1000, 1000, 0, 0)
	if len(rec.Events) != 1 {
		t.Errorf("zero payout should emit only OrderLiquidated, got %d events", len(rec.Events))
	}
}

func TestPayProfitDirect(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 1000)
	if r, err := p.ReserveFunds(meta(2), "admin", "obl-1", 100); err != nil || !r.ReserveOK {
		t.Fatal("reserve failed")
	}

	if _, err := p.PayProfit(meta(3), "admin", "alice", 40); err != nil {
		t.Fatalf("pay profit: %v", err)
	}
	checkStatus(t, p, 960, 900, 60, 40)

	// Paying beyond reserved is rejected.
	if _, err := p.PayProfit(meta(4), "admin", "alice", 100); !errors.Is(err, ledger.ErrInsufficientReserve) {
		t.Errorf("expected ErrInsufficientReserve, got %v", err)
	}
	// Zero payout is a degenerate no-op.
	if r, err := p.PayProfit(meta(5), "admin", "alice", 0); err != nil || len(r.Batch.Journals) != 0 {
		t.Errorf("zero payout should be a no-op, err=%v", err)
	}
}

func TestAuthorizationNoStateChange(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 1000)
	mustUserDeposit(t, p, 2, "alice", 100)

	cases := []struct {
		name string
		call func() (*Receipt, error)
	}{
		{"LiquidityWithdraw", func() (*Receipt, error) { return p.LiquidityWithdraw(meta(9), "mallory", "out", 10) }},
		{"ReserveFunds", func() (*Receipt, error) { return p.ReserveFunds(meta(9), "mallory", "obl", 10) }},
		{"ReleaseReserved", func() (*Receipt, error) { return p.ReleaseReserved(meta(9), "mallory", 10) }},
		{"SubmitOrder", func() (*Receipt, error) { return p.SubmitOrder(meta(9), "mallory", "ord", "alice", 10, "obl", 20) }},
		{"PayProfit", func() (*Receipt, error) { return p.PayProfit(meta(9), "mallory", "alice", 10) }},
		{"Liquidate", func() (*Receipt, error) { return p.Liquidate(meta(9), "mallory", "obl", "alice", 10, 5) }},
	}
	for _, tc := range cases {
		if _, err := tc.call(); !errors.Is(err, ledger.ErrUnauthorized) {
			t.Errorf("%s: expected ErrUnauthorized, got %v", tc.name, err)
		}
	}
	checkStatus(t, p, 1000, 1000, 0, 100)
}

func TestPauseBlocksFundsMovement(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 1000)
	mustUserDeposit(t, p, 2, "alice", 100)
	if _, err := p.ReserveFunds(meta(3), "admin", "obl-live", 100); err != nil {
		t.Fatal(err)
	}
	if _, err := p.SetPause(meta(4), "admin", true); err != nil {
		t.Fatal(err)
	}

	calls := []struct {
		name string
		call func() (*Receipt, error)
	}{
		{"LiquidityDeposit", func() (*Receipt, error) { return p.LiquidityDeposit(meta(9), "lp1", 10) }},
		{"LiquidityWithdraw", func() (*Receipt, error) { return p.LiquidityWithdraw(meta(9), "admin", "out", 10) }},
		{"ReserveFunds", func() (*Receipt, error) { return p.ReserveFunds(meta(9), "admin", "obl", 10) }},
		{"UserDeposit", func() (*Receipt, error) { return p.UserDeposit(meta(9), "alice", 10) }},
		{"UserWithdraw", func() (*Receipt, error) { return p.UserWithdraw(meta(9), "alice", 10) }},
		{"SubmitOrder", func() (*Receipt, error) { return p.SubmitOrder(meta(9), "admin", "ord", "alice", 10, "obl", 20) }},
	}
	for _, tc := range calls {
		if _, err := tc.call(); !errors.Is(err, ledger.ErrPaused) {
			t.Errorf("%s: expected ErrPaused, got %v", tc.name, err)
		}
	}
	if _, err := p.Liquidate(meta(9), "admin", "obl-live", "alice", 100, 10); !errors.Is(err, ledger.ErrPaused) {
		t.Errorf("Liquidate: expected ErrPaused, got %v", err)
	}

	// Settling existing obligations stays open under pause: pay_profit and
	// release_reserved only need the liquidator role.
	if _, err := p.PayProfit(meta(5), "admin", "alice", 30); err != nil {
		t.Errorf("pay_profit while paused: %v", err)
	}
	if _, err := p.ReleaseReserved(meta(6), "admin", 70); err != nil {
		t.Errorf("release_reserved while paused: %v", err)
	}
	checkStatus(t, p, 970, 970, 0, 130)

	// Admin ops still work while paused, including unpause.
	if _, err := p.AddSubmitter(meta(7), "admin", "bot1"); err != nil {
		t.Errorf("admin op while paused: %v", err)
	}
	if _, err := p.SetPause(meta(8), "admin", false); err != nil {
		t.Fatal(err)
	}
	mustDeposit(t, p, 10, "lp1", 10)
	checkStatus(t, p, 980, 980, 0, 130)
}

func TestUserWithdrawErrors(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustUserDeposit(t, p, 1, "alice", 100)

	if _, err := p.UserWithdraw(meta(2), "bob", 10); !errors.Is(err, ledger.ErrUserNotFound) {
		t.Errorf("unknown user: expected ErrUserNotFound, got %v", err)
	}
	if _, err := p.UserWithdraw(meta(3), "alice", 200); !errors.Is(err, ledger.ErrInsufficientUserBalance) {
		t.Errorf("overdraw: expected ErrInsufficientUserBalance, got %v", err)
	}
	if _, err := p.UserWithdraw(meta(4), "alice", 0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("zero: expected ErrInvalidAmount, got %v", err)
	}
	checkStatus(t, p, 0, 0, 0, 100)

	// Draining to zero keeps the entry; a later withdraw still finds it.
	if _, err := p.UserWithdraw(meta(5), "alice", 100); err != nil {
		t.Fatal(err)
	}
	if _, err := p.UserWithdraw(meta(6), "alice", 1); !errors.Is(err, ledger.ErrInsufficientUserBalance) {
		t.Errorf("drained user: expected ErrInsufficientUserBalance, got %v", err)
	}
}

func TestCapacityChecks(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 100)
	mustUserDeposit(t, p, 2, "alice", 50)

	if !p.CanReserve(100) || p.CanReserve(101) {
		t.Error("CanReserve should track available exactly")
	}
	if !p.CanCollectPremium("alice", 50) || p.CanCollectPremium("alice", 51) {
		t.Error("CanCollectPremium should track the user balance exactly")
	}
	if p.CanCollectPremium("bob", 1) {
		t.Error("unknown user cannot fund a premium")
	}

	if _, err := p.SetPause(meta(3), "admin", true); err != nil {
		t.Fatal(err)
	}
	if p.CanReserve(1) || p.CanCollectPremium("alice", 1) {
		t.Error("paused pool has no capacity")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	p := NewPool("USDC", "admin")
	mustDeposit(t, p, 1, "lp1", 1000)
	mustUserDeposit(t, p, 2, "alice", 100)
	if r, err := p.ReserveFunds(meta(3), "admin", "obl-1", 200); err != nil || !r.ReserveOK {
		t.Fatal("reserve failed")
	}
	if _, err := p.AddSubmitter(meta(4), "admin", "bot1"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.SetMinReserveRatio(meta(5), "admin", 500); err != nil {
		t.Fatal(err)
	}

	restored := RestorePool(p.Snapshot())

	want := p.Status()
	got := restored.Status()
	if got != want {
		t.Errorf("status mismatch: got %+v, want %+v", got, want)
	}
	if bal, _ := restored.UserBalance("alice"); bal != 100 {
		t.Errorf("alice balance: got %d, want 100", bal)
	}
	if !restored.IsSubmitter("bot1") {
		t.Error("submitter set not restored")
	}
	if err := restored.CheckInvariants(); err != nil {
		t.Errorf("restored invariants: %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	p1, err := r.Create("USDC", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Create("USDC", "admin"); !errors.Is(err, ledger.ErrPoolExists) {
		t.Errorf("duplicate create: expected ErrPoolExists, got %v", err)
	}
	if _, err := r.Create("WETH", "admin2"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get("DOGE"); !errors.Is(err, ledger.ErrPoolNotFound) {
		t.Errorf("missing pool: expected ErrPoolNotFound, got %v", err)
	}

	got, err := r.Get("USDC")
	if err != nil || got != p1 {
		t.Errorf("Get returned wrong pool")
	}

	assets := r.Assets()
	if len(assets) != 2 || assets[0] != "USDC" || assets[1] != "WETH" {
		t.Errorf("assets: got %v", assets)
	}

	// Pools are independent.
	mustDeposit(t, p1, 1, "lp1", 100)
	p2, _ := r.Get("WETH")
	if s := p2.Status(); s.TreasuryTotal != 0 {
		t.Error("pools must not share state")
	}

	// Registry snapshot round-trip.
	r2 := NewRegistry()
	r2.Restore(r.Snapshot())
	rp, err := r2.Get("USDC")
	if err != nil {
		t.Fatal(err)
	}
	if s := rp.Status(); s.TreasuryTotal != 100 {
		t.Errorf("restored treasury total: got %d, want 100", s.TreasuryTotal)
	}
}
