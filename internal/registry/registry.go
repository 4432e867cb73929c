package registry

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"poolbridge/internal/model"
)

var (
	// ErrDuplicatePool is returned when a pool id is registered twice.
	ErrDuplicatePool = errors.New("duplicate pool")
	// ErrUnknownPool is returned for operations on an unregistered pool.
	ErrUnknownPool = errors.New("unknown pool")
)

// Registry maps pool ids to their registration record and aggregate active
// balance. Pools are created once and never deleted; capacity is mutable.
type Registry struct {
	mu    sync.RWMutex
	pools map[model.PoolID]*model.Pool
}

func New() *Registry {
	return &Registry{pools: make(map[model.PoolID]*model.Pool)}
}

// Add registers a pool. The vault binding is immutable once set.
func (r *Registry) Add(id model.PoolID, vault common.Address, capacity *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.pools[id]; ok && existing.Registered() {
		return fmt.Errorf("pool %d: %w", id, ErrDuplicatePool)
	}
	r.pools[id] = &model.Pool{
		ID:              id,
		Vault:           vault,
		Type:            model.PoolActive,
		Capacity:        new(big.Int).Set(capacity),
		AggregateActive: big.NewInt(0),
	}
	return nil
}

// Get returns a copy of the pool record.
func (r *Registry) Get(id model.PoolID) (model.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[id]
	if !ok {
		return model.Pool{}, false
	}
	out := *pool
	out.Capacity = new(big.Int).Set(pool.Capacity)
	out.AggregateActive = new(big.Int).Set(pool.AggregateActive)
	return out, true
}

// SetCapacity overwrites the pool hardcap. Lowering capacity below the
// current aggregate is allowed: it blocks further deposits without forcing
// withdrawals.
func (r *Registry) SetCapacity(id model.PoolID, capacity *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool, ok := r.pools[id]
	if !ok {
		return fmt.Errorf("pool %d: %w", id, ErrUnknownPool)
	}
	pool.Capacity = new(big.Int).Set(capacity)
	return nil
}

// CreditAggregate adds to the pool's aggregate active balance.
func (r *Registry) CreditAggregate(id model.PoolID, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool, ok := r.pools[id]
	if !ok {
		return fmt.Errorf("pool %d: %w", id, ErrUnknownPool)
	}
	pool.AggregateActive.Add(pool.AggregateActive, amount)
	return nil
}

// DebitAggregate subtracts from the aggregate, failing on underflow.
func (r *Registry) DebitAggregate(id model.PoolID, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool, ok := r.pools[id]
	if !ok {
		return fmt.Errorf("pool %d: %w", id, ErrUnknownPool)
	}
	if pool.AggregateActive.Cmp(amount) < 0 {
		return fmt.Errorf("pool %d aggregate underflow", id)
	}
	pool.AggregateActive.Sub(pool.AggregateActive, amount)
	return nil
}

// List returns copies of all registered pools ordered by insertion-agnostic
// map iteration; callers needing order should sort by ID.
func (r *Registry) List() []model.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Pool, 0, len(r.pools))
	for _, pool := range r.pools {
		copied := *pool
		copied.Capacity = new(big.Int).Set(pool.Capacity)
		copied.AggregateActive = new(big.Int).Set(pool.AggregateActive)
		out = append(out, copied)
	}
	return out
}
