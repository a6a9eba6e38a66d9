package pool

import (
	"fmt"
	"sort"
	"sync"

	"OptionLedger/internal/ledger"
)

// Registry holds all live pools keyed by asset symbol. Pool creation is
// rare; lookups dominate.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*Pool)}
}

// Create provisions a pool for asset with creator as admin. Fails if a
// pool for the asset already exists.
func (r *Registry) Create(asset, creator string) (*Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[asset]; ok {
		return nil, fmt.Errorf("pool %s: %w", asset, ledger.ErrPoolExists)
	}
	p := NewPool(asset, creator)
	r.pools[asset] = p
	return p, nil
}

// Get returns the pool for asset.
func (r *Registry) Get(asset string) (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[asset]
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", asset, ledger.ErrPoolNotFound)
	}
	return p, nil
}

// Assets returns the registered asset symbols, sorted for determinism.
func (r *Registry) Assets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.pools))
	for asset := range r.pools {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

// Snapshot captures every pool, ordered by asset.
func (r *Registry) Snapshot() []SnapshotState {
	r.mu.RLock()
	pools := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	r.mu.RUnlock()

	sort.Slice(pools, func(i, j int) bool { return pools[i].asset < pools[j].asset })
	out := make([]SnapshotState, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Snapshot())
	}
	return out
}

// Restore replaces the registry contents from snapshot state.
func (r *Registry) Restore(states []SnapshotState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools = make(map[string]*Pool, len(states))
	for _, s := range states {
		r.pools[s.Asset] = RestorePool(s)
	}
}
