package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolbridge/internal/model"
	"poolbridge/internal/token"
)

// maxAllowance is the unbounded venue spending grant issued to a new vault.
var maxAllowance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// RegisterPool binds a fresh vault to a pool id and marks the pool Active.
// Owner only; re-registering an id fails with registry.ErrDuplicatePool.
func (e *Engine) RegisterPool(caller common.Address, id model.PoolID, capacity *big.Int) (model.Pool, error) {
	if err := e.enter(); err != nil {
		return model.Pool{}, err
	}
	defer e.exit()

	if caller != e.cfg.Owner {
		return model.Pool{}, ErrUnauthorized
	}
	if capacity == nil || capacity.Sign() < 0 {
		return model.Pool{}, ErrInvalidAmount
	}

	v := e.newVault(id)
	if err := e.registry.Add(id, v.Address(), capacity); err != nil {
		return model.Pool{}, err
	}
	e.vaults[id] = v

	// The vault needs venue spending authorization for the pool token before
	// it can forward deposits.
	e.poolToken.Approve(v.Address(), e.cfg.Venue, maxAllowance)

	pool, _ := e.registry.Get(id)
	e.logger.Info("pool registered",
		zap.Uint64("pool", uint64(id)),
		zap.String("vault", v.Address().Hex()),
		zap.String("capacity", capacity.String()),
	)
	return pool, nil
}

// UpdateCapacity overwrites a pool's hardcap. Owner only; no floor or
// ceiling beyond that.
func (e *Engine) UpdateCapacity(caller common.Address, id model.PoolID, capacity *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if caller != e.cfg.Owner {
		return ErrUnauthorized
	}
	if capacity == nil || capacity.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := e.registry.SetCapacity(id, capacity); err != nil {
		return err
	}
	e.logger.Info("capacity updated",
		zap.Uint64("pool", uint64(id)),
		zap.String("capacity", capacity.String()),
	)
	return nil
}

// SetPause gates the deposit, withdraw, and claim entry points. Owner only.
func (e *Engine) SetPause(caller common.Address, flags model.PauseFlags) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if caller != e.cfg.Owner {
		return ErrUnauthorized
	}
	e.paused = flags
	e.logger.Info("pause flags set",
		zap.Bool("deposit", flags.Deposit),
		zap.Bool("withdraw", flags.Withdraw),
		zap.Bool("claim", flags.Claim),
	)
	return nil
}

// Rescue moves stray tokens off the engine's custody address. Owner only.
func (e *Engine) Rescue(caller common.Address, book token.Transferrer, to common.Address, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if caller != e.cfg.Owner {
		return ErrUnauthorized
	}
	if to == (common.Address{}) {
		return ErrZeroAccount
	}
	if err := book.Transfer(e.cfg.Self, to, amount); err != nil {
		return fmt.Errorf("rescue transfer: %w", err)
	}
	e.logger.Info("tokens rescued",
		zap.String("to", to.Hex()),
		zap.String("amount", model.FormatAmount(amount)),
	)
	return nil
}
