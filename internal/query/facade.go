package query

import (
	"OptionLedger/internal/pool"
)

// Facade serves reads straight from the in-memory pool registry. All
// answers are point-in-time and advisory: a command landing after the
// read can change them.
type Facade struct {
	registry *pool.Registry
}

func NewFacade(registry *pool.Registry) *Facade {
	return &Facade{registry: registry}
}

// PoolStatus returns the headline numbers for one pool.
func (f *Facade) PoolStatus(asset string) (pool.Status, error) {
	p, err := f.registry.Get(asset)
	if err != nil {
		return pool.Status{}, err
	}
	return p.Status(), nil
}

// ListPools returns the assets of all registered pools, sorted.
func (f *Facade) ListPools() []string {
	return f.registry.Assets()
}

// UserBalance returns a user's escrow balance in a pool. The bool is
// false when the user has never deposited.
func (f *Facade) UserBalance(asset, user string) (int64, bool, error) {
	p, err := f.registry.Get(asset)
	if err != nil {
		return 0, false, err
	}
	bal, ok := p.UserBalance(user)
	return bal, ok, nil
}

// CapacityForReserve reports whether the pool could currently reserve
// amount: not paused and available >= amount.
func (f *Facade) CapacityForReserve(asset string, amount int64) (bool, error) {
	p, err := f.registry.Get(asset)
	if err != nil {
		return false, err
	}
	return p.CanReserve(amount), nil
}

// CapacityForPremium reports whether user could currently fund a
// premium of amount.
func (f *Facade) CapacityForPremium(asset, user string, amount int64) (bool, error) {
	p, err := f.registry.Get(asset)
	if err != nil {
		return false, err
	}
	return p.CanCollectPremium(user, amount), nil
}

// IsSubmitter reports submitter membership for a pool.
func (f *Facade) IsSubmitter(asset, addr string) (bool, error) {
	p, err := f.registry.Get(asset)
	if err != nil {
		return false, err
	}
	return p.IsSubmitter(addr), nil
}

// IsLiquidator reports liquidator membership for a pool.
func (f *Facade) IsLiquidator(asset, addr string) (bool, error) {
	p, err := f.registry.Get(asset)
	if err != nil {
		return false, err
	}
	return p.IsLiquidator(addr), nil
}
