package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"poolbridge/internal/model"
)

// Ledger holds per-pool, per-account positions. All balances are
// non-negative; debits that would underflow fail without mutation. The
// settlement engine is the only writer.
type Ledger struct {
	mu        sync.RWMutex
	positions map[model.PoolID]map[common.Address]*model.Position
}

func New() *Ledger {
	return &Ledger{positions: make(map[model.PoolID]map[common.Address]*model.Position)}
}

// Position returns a copy of the account's position in the pool.
func (l *Ledger) Position(pool model.PoolID, account common.Address) *model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if accounts, ok := l.positions[pool]; ok {
		return accounts[account].Clone()
	}
	return model.NewPosition()
}

// CreditActive adds confirmed deposit shares to the active balance.
func (l *Ledger) CreditActive(pool model.PoolID, account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	position := l.position(pool, account)
	position.Active.Add(position.Active, amount)
}

// DebitActive removes a confirmed withdrawal from the active balance,
// failing on underflow with no mutation.
func (l *Ledger) DebitActive(pool model.PoolID, account common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	position := l.position(pool, account)
	if position.Active.Cmp(amount) < 0 {
		return fmt.Errorf("active balance underflow: have %s, need %s", position.Active, amount)
	}
	position.Active.Sub(position.Active, amount)
	return nil
}

// AccrueWithdrawal credits the pending and fee balances after a confirmed
// withdrawal settles.
func (l *Ledger) AccrueWithdrawal(pool model.PoolID, account common.Address, pending, fee *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	position := l.position(pool, account)
	position.Pending.Add(position.Pending, pending)
	position.Fee.Add(position.Fee, fee)
}

// TakeClaimable reads and zeroes the pending and fee balances in one step.
// Read-then-clear, so a reentrant claim observes zeroes.
func (l *Ledger) TakeClaimable(pool model.PoolID, account common.Address) (pending, fee *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	position := l.position(pool, account)
	pending = new(big.Int).Set(position.Pending)
	fee = new(big.Int).Set(position.Fee)
	position.Pending.SetInt64(0)
	position.Fee.SetInt64(0)
	return pending, fee
}

// Restore re-credits claimable balances after a failed external release.
func (l *Ledger) Restore(pool model.PoolID, account common.Address, pending, fee *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	position := l.position(pool, account)
	position.Pending.Add(position.Pending, pending)
	position.Fee.Add(position.Fee, fee)
}

// SumActive totals all active balances in a pool, for solvency checks
// against the registry aggregate.
func (l *Ledger) SumActive(pool model.PoolID) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sum := big.NewInt(0)
	for _, position := range l.positions[pool] {
		sum.Add(sum, position.Active)
	}
	return sum
}

// Totals returns the ledger-wide active, pending, and fee sums.
func (l *Ledger) Totals() (active, pending, fee *big.Int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	active, pending, fee = big.NewInt(0), big.NewInt(0), big.NewInt(0)
	for _, accounts := range l.positions {
		for _, position := range accounts {
			active.Add(active, position.Active)
			pending.Add(pending, position.Pending)
			fee.Add(fee, position.Fee)
		}
	}
	return active, pending, fee
}

// Entries returns a snapshot of all positions for persistence.
func (l *Ledger) Entries() map[model.PoolID]map[common.Address]*model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[model.PoolID]map[common.Address]*model.Position, len(l.positions))
	for pool, accounts := range l.positions {
		copied := make(map[common.Address]*model.Position, len(accounts))
		for account, position := range accounts {
			copied[account] = position.Clone()
		}
		out[pool] = copied
	}
	return out
}

func (l *Ledger) position(pool model.PoolID, account common.Address) *model.Position {
	accounts, ok := l.positions[pool]
	if !ok {
		accounts = make(map[common.Address]*model.Position)
		l.positions[pool] = accounts
	}
	position, ok := accounts[account]
	if !ok {
		position = model.NewPosition()
		accounts[account] = position
	}
	return position
}
