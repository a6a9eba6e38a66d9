// Package access holds the per-pool authorization state: the admin address,
// the submitter and liquidator role sets, the pause flag, and the minimum
// reserve ratio. The settlement engine consumes this as a membership-check
// contract; all mutations require the current admin.
package access

import (
	"fmt"
	"sort"

	"OptionLedger/internal/ledger"
)

// Control is the access-list state of one pool. Not thread-safe on its own;
// the owning pool serializes access.
type Control struct {
	admin           string
	submitters      map[string]struct{}
	liquidators     map[string]struct{}
	paused          bool
	minReserveRatio int64 // basis points out of ledger.RatioDenominator
}

// NewControl creates the access state for a fresh pool. The creator becomes
// admin and is auto-enrolled as both submitter and liquidator.
func NewControl(admin string) *Control {
	return &Control{
		admin:       admin,
		submitters:  map[string]struct{}{admin: {}},
		liquidators: map[string]struct{}{admin: {}},
	}
}

func (c *Control) Admin() string           { return c.admin }
func (c *Control) Paused() bool            { return c.paused }
func (c *Control) MinReserveRatio() int64  { return c.minReserveRatio }
func (c *Control) IsAdmin(addr string) bool { return addr == c.admin }

func (c *Control) IsSubmitter(addr string) bool {
	_, ok := c.submitters[addr]
	return ok
}

func (c *Control) IsLiquidator(addr string) bool {
	_, ok := c.liquidators[addr]
	return ok
}

// RequireAdmin fails unless the caller is the current admin.
func (c *Control) RequireAdmin(caller string) error {
	if caller != c.admin {
		return fmt.Errorf("caller %s is not admin: %w", caller, ledger.ErrUnauthorized)
	}
	return nil
}

// RequireSubmitter fails unless the caller is an authorized submitter.
func (c *Control) RequireSubmitter(caller string) error {
	if !c.IsSubmitter(caller) {
		return fmt.Errorf("caller %s is not a submitter: %w", caller, ledger.ErrUnauthorized)
	}
	return nil
}

// RequireLiquidator fails unless the caller is an authorized liquidator.
func (c *Control) RequireLiquidator(caller string) error {
	if !c.IsLiquidator(caller) {
		return fmt.Errorf("caller %s is not a liquidator: %w", caller, ledger.ErrUnauthorized)
	}
	return nil
}

// RequireActive fails when the pool is paused.
func (c *Control) RequireActive() error {
	if c.paused {
		return ledger.ErrPaused
	}
	return nil
}

// AddSubmitter enrolls an address. Adding an existing member is rejected,
// not silently accepted.
func (c *Control) AddSubmitter(caller, addr string) error {
	if err := c.RequireAdmin(caller); err != nil {
		return err
	}
	if _, ok := c.submitters[addr]; ok {
		return fmt.Errorf("submitter %s: %w", addr, ledger.ErrAlreadyAuthorized)
	}
	c.submitters[addr] = struct{}{}
	return nil
}

// RemoveSubmitter removes an address from the submitter set.
func (c *Control) RemoveSubmitter(caller, addr string) error {
	if err := c.RequireAdmin(caller); err != nil {
		return err
	}
	if _, ok := c.submitters[addr]; !ok {
		return fmt.Errorf("submitter %s: %w", addr, ledger.ErrNotAuthorized)
	}
	delete(c.submitters, addr)
	return nil
}

// AddLiquidator enrolls an address. Duplicate inserts are rejected.
func (c *Control) AddLiquidator(caller, addr string) error {
	if err := c.RequireAdmin(caller); err != nil {
		return err
	}
	if _, ok := c.liquidators[addr]; ok {
		return fmt.Errorf("liquidator %s: %w", addr, ledger.ErrAlreadyAuthorized)
	}
	c.liquidators[addr] = struct{}{}
	return nil
}

// RemoveLiquidator removes an address from the liquidator set.
func (c *Control) RemoveLiquidator(caller, addr string) error {
	if err := c.RequireAdmin(caller); err != nil {
		return err
	}
	if _, ok := c.liquidators[addr]; !ok {
		return fmt.Errorf("liquidator %s: %w", addr, ledger.ErrNotAuthorized)
	}
	delete(c.liquidators, addr)
	return nil
}

// SetAdmin transfers admin rights.
func (c *Control) SetAdmin(caller, addr string) error {
	if err := c.RequireAdmin(caller); err != nil {
		return err
	}
	c.admin = addr
	return nil
}

// SetPause flips the pause flag.
func (c *Control) SetPause(caller string, paused bool) error {
	if err := c.RequireAdmin(caller); err != nil {
		return err
	}
	c.paused = paused
	return nil
}

// SetMinReserveRatio updates the withdrawal cushion ratio (basis points).
func (c *Control) SetMinReserveRatio(caller string, ratio int64) error {
	if err := c.RequireAdmin(caller); err != nil {
		return err
	}
	if ratio < 0 {
		return fmt.Errorf("ratio %d: %w", ratio, ledger.ErrInvalidAmount)
	}
	c.minReserveRatio = ratio
	return nil
}

// Submitters returns the submitter set, sorted for deterministic snapshots.
func (c *Control) Submitters() []string {
	return sortedMembers(c.submitters)
}

// Liquidators returns the liquidator set, sorted for deterministic snapshots.
func (c *Control) Liquidators() []string {
	return sortedMembers(c.liquidators)
}

func sortedMembers(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Restore overwrites the access state from snapshot values.
func (c *Control) Restore(admin string, submitters, liquidators []string, paused bool, ratio int64) {
	c.admin = admin
	c.paused = paused
	c.minReserveRatio = ratio
	c.submitters = make(map[string]struct{}, len(submitters))
	for _, addr := range submitters {
		c.submitters[addr] = struct{}{}
	}
	c.liquidators = make(map[string]struct{}, len(liquidators))
	for _, addr := range liquidators {
		c.liquidators[addr] = struct{}{}
	}
}
