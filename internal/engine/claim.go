package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolbridge/internal/model"
)

// Claim moves an account's confirmed-withdrawn capital out of the vault.
// Pending and fee balances are read and zeroed together before any external
// transfer, so a reentrant call cannot double-spend; the fee goes to the
// protocol fee sink and the rest to the account. Claiming with nothing
// claimable is a no-op.
func (e *Engine) Claim(account common.Address, pool model.PoolID) (pending, fee *big.Int, err error) {
	if err := e.enter(); err != nil {
		return nil, nil, err
	}
	defer e.exit()

	if e.paused.Claim {
		return nil, nil, fmt.Errorf("claim: %w", ErrPaused)
	}
	if account == (common.Address{}) {
		return nil, nil, ErrZeroAccount
	}
	registered, ok := e.registry.Get(pool)
	if !ok || !registered.Registered() {
		return nil, nil, fmt.Errorf("pool %d: %w", pool, ErrInvalidPool)
	}

	pending, fee = e.ledger.TakeClaimable(pool, account)
	total := new(big.Int).Add(pending, fee)
	if total.Sign() == 0 {
		return pending, fee, nil
	}

	v := e.vaults[pool]
	if err := v.DrainToken(e.cfg.Self, total); err != nil {
		// The drain failed before any payout, so the claimable balances can
		// be restored intact.
		e.ledger.Restore(pool, account, pending, fee)
		return nil, nil, fmt.Errorf("drain vault: %w", err)
	}

	if err := e.poolToken.Transfer(e.cfg.Self, account, pending); err != nil {
		// The drain already landed on the engine address; the stranded total
		// stays there for a Rescue.
		e.logClaimStranded(pool, account, total, err)
		return nil, nil, fmt.Errorf("pay account: %w", err)
	}
	if err := e.poolToken.Transfer(e.cfg.Self, e.cfg.FeeSink, fee); err != nil {
		e.logClaimStranded(pool, account, fee, err)
		return nil, nil, fmt.Errorf("pay fee sink: %w", err)
	}

	e.journal(model.SettlementRecord{
		Kind:    model.RecordClaimed,
		Pool:    uint64(pool),
		Account: account.Hex(),
		Fee:     model.FormatAmount(fee),
		Pending: model.FormatAmount(pending),
	})

	e.logger.Info("claim paid",
		zap.Uint64("pool", uint64(pool)),
		zap.String("account", account.Hex()),
		zap.String("pending", pending.String()),
		zap.String("fee", fee.String()),
	)

	return pending, fee, nil
}

func (e *Engine) logClaimStranded(pool model.PoolID, account common.Address, amount *big.Int, cause error) {
	e.logger.Error("claim payout failed after drain, funds held on engine address",
		zap.Uint64("pool", uint64(pool)),
		zap.String("account", account.Hex()),
		zap.String("stranded", amount.String()),
		zap.Error(cause),
	)
}
