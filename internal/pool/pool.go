// Package pool composes the per-asset escrow state: the treasury ledger,
// the user ledger, and the access-control lists. Every mutating operation
// validates fully before touching state, produces a double-entry journal
// batch, and returns the notifications to publish downstream.
package pool

import (
	"fmt"
	"sync"

	"OptionLedger/internal/access"
	"OptionLedger/internal/event"
	"OptionLedger/internal/ledger"
)

// Receipt is the outcome of one pool operation: the journal batch recording
// it, the notifications to publish, and the soft-failure flag for reserve
// attempts.
type Receipt struct {
	Batch  *ledger.Batch
	Events []event.Notification

	// ReserveOK is false when a reserve attempt failed softly (insufficient
	// available funds). No state changed and no events were emitted.
	ReserveOK bool
}

// Pool is the escrow state for one asset. All operations are serialized
// under the pool mutex; the settlement engine is the only writer but query
// reads come in concurrently.
type Pool struct {
	mu       sync.RWMutex
	asset    string
	access   *access.Control
	treasury *ledger.TreasuryLedger
	users    *ledger.UserLedger
}

// NewPool creates a pool for asset with creator as admin.
func NewPool(asset, creator string) *Pool {
	return &Pool{
		asset:    asset,
		access:   access.NewControl(creator),
		treasury: ledger.NewTreasuryLedger(),
		users:    ledger.NewUserLedger(),
	}
}

func (p *Pool) Asset() string { return p.asset }

// Status is a point-in-time read of the pool's headline numbers.
type Status struct {
	Asset           string
	TreasuryTotal   int64
	Available       int64
	Reserved        int64
	UserTotal       int64
	Admin           string
	Paused          bool
	MinReserveRatio int64
}

// Status reads the pool's headline numbers under the read lock.
func (p *Pool) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Status{
		Asset:           p.asset,
		TreasuryTotal:   p.treasury.Total(),
		Available:       p.treasury.Available(),
		Reserved:        p.treasury.Reserved(),
		UserTotal:       p.users.Total(),
		Admin:           p.access.Admin(),
		Paused:          p.access.Paused(),
		MinReserveRatio: p.access.MinReserveRatio(),
	}
}

// UserBalance reads one user's escrow balance.
func (p *Pool) UserBalance(user string) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.users.Balance(user)
}

// CanReserve reports whether a reserve of amount would currently succeed.
// Advisory only; the answer can change before a command lands.
func (p *Pool) CanReserve(amount int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.access.Paused() && p.treasury.CanReserve(amount)
}

// CanCollectPremium reports whether user could currently fund a premium.
func (p *Pool) CanCollectPremium(user string, amount int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.access.Paused() {
		return false
	}
	bal, ok := p.users.Balance(user)
	return ok && bal >= amount
}

// IsSubmitter reports submitter membership.
func (p *Pool) IsSubmitter(addr string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.access.IsSubmitter(addr)
}

// IsLiquidator reports liquidator membership.
func (p *Pool) IsLiquidator(addr string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.access.IsLiquidator(addr)
}

// LiquidityDeposit adds treasury funds. Open to any caller.
func (p *Pool) LiquidityDeposit(meta ledger.BatchMeta, caller string, amount int64) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.access.RequireActive(); err != nil {
		return nil, err
	}
	if err := p.treasury.Deposit(amount); err != nil {
		return nil, err
	}

	batch := ledger.NewBatch(meta)
	batch.Append(ledger.JournalTypeLiquidityDeposit,
		ledger.NewTreasuryAccountKey(ledger.SubTypeAvailable, p.asset),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, p.asset),
		p.asset, amount)

	return &Receipt{
		Batch: batch,
		Events: []event.Notification{event.LiquidityDeposited{
			Depositor:      caller,
			Amount:         amount,
			TotalAvailable: p.treasury.Available(),
		}},
		ReserveOK: true,
	}, nil
}

// LiquidityWithdraw removes treasury funds to an external address. Admin
// only, and the remaining total must stay above the reserve floor.
func (p *Pool) LiquidityWithdraw(meta ledger.BatchMeta, caller, to string, amount int64) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.access.RequireActive(); err != nil {
		return nil, err
	}
	if err := p.access.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := p.treasury.Withdraw(amount, p.access.MinReserveRatio()); err != nil {
		return nil, err
	}

	batch := ledger.NewBatch(meta)
	batch.Append(ledger.JournalTypeLiquidityWithdrawal,
		ledger.NewExternalAccountKey(ledger.SubTypeExternalWithdrawals, p.asset),
		ledger.NewTreasuryAccountKey(ledger.SubTypeAvailable, p.asset),
		p.asset, amount)

	return &Receipt{
		Batch: batch,
		Events: []event.Notification{event.LiquidityWithdrawn{
			Admin:              caller,
			To:                 to,
			Amount:             amount,
			RemainingAvailable: p.treasury.Available(),
		}},
		ReserveOK: true,
	}, nil
}

// ReserveFunds moves treasury funds from available to reserved. Submitter
// only. Insufficient available funds is a soft failure: ReserveOK false,
// nil error, no state change, no events.
func (p *Pool) ReserveFunds(meta ledger.BatchMeta, caller, obligationID string, amount int64) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.access.RequireActive(); err != nil {
		return nil, err
	}
	if err := p.access.RequireSubmitter(caller); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("reserve amount %d: %w", amount, ledger.ErrInvalidAmount)
	}
	if !p.treasury.Reserve(amount) {
		return &Receipt{Batch: ledger.NewBatch(meta), ReserveOK: false}, nil
	}

	batch := ledger.NewBatch(meta)
	batch.Append(ledger.JournalTypeReserve,
		ledger.NewTreasuryAccountKey(ledger.SubTypeReserved, p.asset),
		ledger.NewTreasuryAccountKey(ledger.SubTypeAvailable, p.asset),
		p.asset, amount)

	return &Receipt{
		Batch: batch,
		Events: []event.Notification{event.FundsReserved{
			ObligationID:       obligationID,
			Amount:             amount,
			RemainingAvailable: p.treasury.Available(),
			TotalReserved:      p.treasury.Reserved(),
		}},
		ReserveOK: true,
	}, nil
}

// ReleaseReserved returns reserved funds to available. Liquidator only.
// A zero amount is a legal no-op. Releases work on a paused pool: pause
// blocks new exposure, not the unwinding of existing obligations.
func (p *Pool) ReleaseReserved(meta ledger.BatchMeta, caller string, amount int64) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.access.RequireLiquidator(caller); err != nil {
		return nil, err
	}
	if err := p.treasury.Release(amount); err != nil {
		return nil, err
	}

	batch := ledger.NewBatch(meta)
	if amount > 0 {
		batch.Append(ledger.JournalTypeRelease,
			ledger.NewTreasuryAccountKey(ledger.SubTypeAvailable, p.asset),
			ledger.NewTreasuryAccountKey(ledger.SubTypeReserved, p.asset),
			p.asset, amount)
	}

	// Direct releases carry no outbound event; downstream consumers learn
	// about reserve churn from the composite liquidation event instead.
	return &Receipt{Batch: batch, ReserveOK: true}, nil
}

// UserDeposit credits a user's escrow balance.
func (p *Pool) UserDeposit(meta ledger.BatchMeta, user string, amount int64) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.access.RequireActive(); err != nil {
		return nil, err
	}
	if err := p.users.Deposit(user, amount); err != nil {
		return nil, err
	}

	batch := ledger.NewBatch(meta)
	batch.Append(ledger.JournalTypeUserDeposit,
		ledger.NewUserAccountKey(user, p.asset),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, p.asset),
		p.asset, amount)

	bal, _ := p.users.Balance(user)
	return &Receipt{
		Batch: batch,
		Events: []event.Notification{event.UserDeposited{
			User:       user,
			Amount:     amount,
			NewBalance: bal,
		}},
		ReserveOK: true,
	}, nil
}

// UserWithdraw debits a user's escrow balance back out of the system.
func (p *Pool) UserWithdraw(meta ledger.BatchMeta, user string, amount int64) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.access.RequireActive(); err != nil {
		return nil, err
	}
	if err := p.users.Withdraw(user, amount); err != nil {
		return nil, err
	}

	batch := ledger.NewBatch(meta)
	batch.Append(ledger.JournalTypeUserWithdrawal,
		ledger.NewExternalAccountKey(ledger.SubTypeExternalWithdrawals, p.asset),
		ledger.NewUserAccountKey(user, p.asset),
		p.asset, amount)

	bal, _ := p.users.Balance(user)
	return &Receipt{
		Batch: batch,
		Events: []event.Notification{event.UserWithdrawn{
			User:             user,
			Amount:           amount,
			RemainingBalance: bal,
		}},
		ReserveOK: true,
	}, nil
}

// SubmitOrder settles a new order atomically: collect the premium from the
// user into treasury available, then reserve the potential payout. Every
// precondition is checked before the first mutation so a failing leg can
// never leave a partial result.
func (p *Pool) SubmitOrder(meta ledger.BatchMeta, caller, orderID, user string, premium int64, obligationID string, potentialPayout int64) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.access.RequireActive(); err != nil {
		return nil, err
	}
	if err := p.access.RequireSubmitter(caller); err != nil {
		return nil, err
	}
	if premium <= 0 {
		return nil, fmt.Errorf("premium %d: %w", premium, ledger.ErrInvalidAmount)
	}
	if potentialPayout < 0 {
		return nil, fmt.Errorf("potential payout %d: %w", potentialPayout, ledger.ErrInvalidAmount)
	}

	// Validate both legs before mutating either ledger.
	bal, ok := p.users.Balance(user)
	if !ok {
		return nil, fmt.Errorf("user %s: %w", user, ledger.ErrUserNotFound)
	}
	if bal < premium {
		return nil, fmt.Errorf("user %s balance %d < premium %d: %w", user, bal, premium, ledger.ErrInsufficientUserBalance)
	}
	// The premium lands in available before the reserve leg runs, so the
	// reserve check includes it.
	if potentialPayout > 0 && p.treasury.Available()+premium < potentialPayout {
		return nil, fmt.Errorf("available %d + premium %d < payout %d: %w",
			p.treasury.Available(), premium, potentialPayout, ledger.ErrInsufficientReserve)
	}

	if err := p.users.Debit(user, premium); err != nil {
		return nil, err
	}
	p.treasury.CreditFromPremium(premium)
	if potentialPayout > 0 && !p.treasury.Reserve(potentialPayout) {
		// Unreachable after the pre-check; treated as corruption.
		panic(fmt.Sprintf("submit_order reserve failed after validation: payout=%d available=%d",
			potentialPayout, p.treasury.Available()))
	}

	batch := ledger.NewBatch(meta)
	batch.Append(ledger.JournalTypePremiumCollect,
		ledger.NewTreasuryAccountKey(ledger.SubTypeAvailable, p.asset),
		ledger.NewUserAccountKey(user, p.asset),
		p.asset, premium)
	if potentialPayout > 0 {
		batch.Append(ledger.JournalTypeReserve,
			ledger.NewTreasuryAccountKey(ledger.SubTypeReserved, p.asset),
			ledger.NewTreasuryAccountKey(ledger.SubTypeAvailable, p.asset),
			p.asset, potentialPayout)
	}

	userBal, _ := p.users.Balance(user)
	events := []event.Notification{event.PremiumCollected{
		User:                 user,
		Amount:               premium,
		UserRemainingBalance: userBal,
		TotalAvailable:       p.treasury.Available(),
	}}
	if potentialPayout > 0 {
		events = append(events, event.FundsReserved{
			ObligationID:       obligationID,
			Amount:             potentialPayout,
			RemainingAvailable: p.treasury.Available(),
			TotalReserved:      p.treasury.Reserved(),
		})
	}
	events = append(events, event.OrderSubmitted{
		OrderID:         orderID,
		User:            user,
		PremiumAmount:   premium,
		ObligationID:    obligationID,
		PotentialPayout: potentialPayout,
	})

	return &Receipt{Batch: batch, Events: events, ReserveOK: true}, nil
}

// PayProfit pays a user out of reserved treasury funds. Liquidator only.
// A zero amount is a legal no-op. Like ReleaseReserved, payouts settle
// existing obligations and are not blocked by pause.
func (p *Pool) PayProfit(meta ledger.BatchMeta, caller, user string, amount int64) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.access.RequireLiquidator(caller); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, fmt.Errorf("payout %d: %w", amount, ledger.ErrInvalidAmount)
	}
	if err := p.treasury.DebitForPayout(amount); err != nil {
		return nil, err
	}
	p.users.Credit(user, amount)

	batch := ledger.NewBatch(meta)
	if amount > 0 {
		batch.Append(ledger.JournalTypeProfitPayout,
			ledger.NewUserAccountKey(user, p.asset),
			ledger.NewTreasuryAccountKey(ledger.SubTypeReserved, p.asset),
			p.asset, amount)
	}

	bal, _ := p.users.Balance(user)
	var events []event.Notification
	if amount > 0 {
		events = append(events, event.UserProfitPaid{
			User:           user,
			Amount:         amount,
			NewUserBalance: bal,
		})
	}
	return &Receipt{Batch: batch, Events: events, ReserveOK: true}, nil
}

// Liquidate closes an obligation atomically: pay the user any realized
// profit out of reserved funds, then release the remainder of the initial
// reservation back to available. The caller reports initialReserved and
// payout; the pool trusts the liquidator on amounts but still refuses a
// close that would drive reserves negative.
func (p *Pool) Liquidate(meta ledger.BatchMeta, caller, obligationID, user string, initialReserved, payout int64) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.access.RequireActive(); err != nil {
		return nil, err
	}
	if err := p.access.RequireLiquidator(caller); err != nil {
		return nil, err
	}
	if initialReserved <= 0 {
		return nil, fmt.Errorf("initial reserved %d: %w", initialReserved, ledger.ErrInvalidAmount)
	}
	if payout < 0 || payout > initialReserved {
		return nil, fmt.Errorf("payout %d exceeds initial reserved %d: %w", payout, initialReserved, ledger.ErrInvalidAmount)
	}

	// Both legs draw down reserved by initialReserved in total, so one
	// up-front check covers payout and release.
	if p.treasury.Reserved() < initialReserved {
		return nil, fmt.Errorf("reserved %d < initial reserved %d: %w",
			p.treasury.Reserved(), initialReserved, ledger.ErrInsufficientReserve)
	}

	if payout > 0 {
		if err := p.treasury.DebitForPayout(payout); err != nil {
			// Unreachable after the pre-check; treated as corruption.
			panic(fmt.Sprintf("liquidate payout failed after validation: %v", err))
		}
		p.users.Credit(user, payout)
	}
	remainder := initialReserved - payout
	if remainder > 0 {
		if err := p.treasury.Release(remainder); err != nil {
			panic(fmt.Sprintf("liquidate release failed after validation: %v", err))
		}
	}

	batch := ledger.NewBatch(meta)
	if payout > 0 {
		batch.Append(ledger.JournalTypeProfitPayout,
			ledger.NewUserAccountKey(user, p.asset),
			ledger.NewTreasuryAccountKey(ledger.SubTypeReserved, p.asset),
			p.asset, payout)
	}
	if remainder > 0 {
		batch.Append(ledger.JournalTypeRelease,
			ledger.NewTreasuryAccountKey(ledger.SubTypeAvailable, p.asset),
			ledger.NewTreasuryAccountKey(ledger.SubTypeReserved, p.asset),
			p.asset, remainder)
	}

	var events []event.Notification
	if payout > 0 {
		bal, _ := p.users.Balance(user)
		events = append(events, event.UserProfitPaid{
			User:           user,
			Amount:         payout,
			NewUserBalance: bal,
		})
	}
	events = append(events, event.OrderLiquidated{
		ObligationID:   obligationID,
		User:           user,
		Liquidator:     caller,
		ReleasedAmount: remainder,
		PayoutAmount:   payout,
		NewAvailable:   p.treasury.Available(),
		NewReserved:    p.treasury.Reserved(),
	})

	return &Receipt{Batch: batch, Events: events, ReserveOK: true}, nil
}

// AddSubmitter enrolls an address in the submitter set. Admin only, works
// while paused.
func (p *Pool) AddSubmitter(meta ledger.BatchMeta, caller, addr string) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.access.AddSubmitter(caller, addr); err != nil {
		return nil, err
	}
	return &Receipt{Batch: ledger.NewBatch(meta), ReserveOK: true}, nil
}

// RemoveSubmitter removes an address from the submitter set.
func (p *Pool) RemoveSubmitter(meta ledger.BatchMeta, caller, addr string) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.access.RemoveSubmitter(caller, addr); err != nil {
		return nil, err
	}
	return &Receipt{Batch: ledger.NewBatch(meta), ReserveOK: true}, nil
}

// AddLiquidator enrolls an address in the liquidator set.
func (p *Pool) AddLiquidator(meta ledger.BatchMeta, caller, addr string) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.access.AddLiquidator(caller, addr); err != nil {
		return nil, err
	}
	return &Receipt{Batch: ledger.NewBatch(meta), ReserveOK: true}, nil
}

// RemoveLiquidator removes an address from the liquidator set.
func (p *Pool) RemoveLiquidator(meta ledger.BatchMeta, caller, addr string) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.access.RemoveLiquidator(caller, addr); err != nil {
		return nil, err
	}
	return &Receipt{Batch: ledger.NewBatch(meta), ReserveOK: true}, nil
}

// SetAdmin transfers admin rights.
func (p *Pool) SetAdmin(meta ledger.BatchMeta, caller, addr string) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.access.SetAdmin(caller, addr); err != nil {
		return nil, err
	}
	return &Receipt{Batch: ledger.NewBatch(meta), ReserveOK: true}, nil
}

// SetPause flips the pause flag. Works while paused so the pool can be
// resumed.
func (p *Pool) SetPause(meta ledger.BatchMeta, caller string, paused bool) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.access.SetPause(caller, paused); err != nil {
		return nil, err
	}
	return &Receipt{Batch: ledger.NewBatch(meta), ReserveOK: true}, nil
}

// SetMinReserveRatio updates the withdrawal cushion ratio.
func (p *Pool) SetMinReserveRatio(meta ledger.BatchMeta, caller string, ratio int64) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.access.SetMinReserveRatio(caller, ratio); err != nil {
		return nil, err
	}
	return &Receipt{Batch: ledger.NewBatch(meta), ReserveOK: true}, nil
}

// CheckInvariants verifies the pool's internal consistency: treasury
// composition, non-negative balances, and user ledger totals.
func (p *Pool) CheckInvariants() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.treasury.CheckConsistency(); err != nil {
		return fmt.Errorf("pool %s treasury: %w", p.asset, err)
	}
	if err := p.users.CheckConsistency(); err != nil {
		return fmt.Errorf("pool %s users: %w", p.asset, err)
	}
	return nil
}

// SnapshotState captures the pool for persistence.
type SnapshotState struct {
	Asset           string           `json:"asset"`
	TreasuryTotal   int64            `json:"treasury_total"`
	Available       int64            `json:"available"`
	Reserved        int64            `json:"reserved"`
	UserBalances    map[string]int64 `json:"user_balances"`
	Admin           string           `json:"admin"`
	Submitters      []string         `json:"submitters"`
	Liquidators     []string         `json:"liquidators"`
	Paused          bool             `json:"paused"`
	MinReserveRatio int64            `json:"min_reserve_ratio"`
}

// Snapshot captures the pool state under the read lock.
func (p *Pool) Snapshot() SnapshotState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return SnapshotState{
		Asset:           p.asset,
		TreasuryTotal:   p.treasury.Total(),
		Available:       p.treasury.Available(),
		Reserved:        p.treasury.Reserved(),
		UserBalances:    p.users.Snapshot(),
		Admin:           p.access.Admin(),
		Submitters:      p.access.Submitters(),
		Liquidators:     p.access.Liquidators(),
		Paused:          p.access.Paused(),
		MinReserveRatio: p.access.MinReserveRatio(),
	}
}

// RestorePool rebuilds a pool from snapshot state.
func RestorePool(s SnapshotState) *Pool {
	p := NewPool(s.Asset, s.Admin)
	p.treasury.Restore(s.TreasuryTotal, s.Available, s.Reserved)
	p.users.Restore(s.UserBalances)
	p.access.Restore(s.Admin, s.Submitters, s.Liquidators, s.Paused, s.MinReserveRatio)
	return p
}
