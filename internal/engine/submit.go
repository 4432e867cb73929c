package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolbridge/internal/model"
)

// SubmitRequest is one deposit or withdraw submission.
type SubmitRequest struct {
	Account  common.Address
	Kind     model.RequestKind
	Pool     model.PoolID
	Amount   *big.Int
	Receiver common.Address // deposits only
}

// Submit validates a request, collects the processing fee, and appends the
// request to the queue. Rejections leave no state behind: the fee transfer
// happens before the append, and a failed transfer fails the submission.
func (e *Engine) Submit(req SubmitRequest) (model.Spot, error) {
	if err := e.enter(); err != nil {
		return model.Spot{}, err
	}
	defer e.exit()

	switch req.Kind {
	case model.KindDeposit:
		if e.paused.Deposit {
			return model.Spot{}, fmt.Errorf("deposit: %w", ErrPaused)
		}
	case model.KindWithdraw:
		if e.paused.Withdraw {
			return model.Spot{}, fmt.Errorf("withdraw: %w", ErrPaused)
		}
	default:
		return model.Spot{}, fmt.Errorf("unknown request kind %d", req.Kind)
	}

	if req.Account == (common.Address{}) {
		return model.Spot{}, ErrZeroAccount
	}

	pool, ok := e.registry.Get(req.Pool)
	if !ok || !pool.Registered() {
		return model.Spot{}, fmt.Errorf("pool %d: %w", req.Pool, ErrInvalidPool)
	}

	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return model.Spot{}, ErrInvalidAmount
	}

	spot := model.Spot{
		Account: req.Account,
		Vault:   pool.Vault,
		Pool:    req.Pool,
		Kind:    req.Kind,
	}

	switch req.Kind {
	case model.KindDeposit:
		if req.Receiver == (common.Address{}) {
			return model.Spot{}, fmt.Errorf("deposit receiver: %w", ErrZeroAccount)
		}
		spot.Deposit = &model.DepositPayload{
			Receiver: req.Receiver,
			Amount:   new(big.Int).Set(req.Amount),
		}
	case model.KindWithdraw:
		active := e.ledger.Position(req.Pool, req.Account).Active
		if active.Cmp(req.Amount) < 0 {
			return model.Spot{}, fmt.Errorf("have %s, requested %s: %w", active, req.Amount, ErrInsufficientBalance)
		}
		spot.Withdraw = &model.WithdrawPayload{Amount: new(big.Int).Set(req.Amount)}
	}

	// Processing fee is prepaid in the side currency, routed straight to the
	// operator payout address. Failure here aborts the whole submission.
	if e.cfg.ProcessingFee.Sign() > 0 {
		if err := e.gasToken.Transfer(req.Account, e.cfg.OperatorPayout, e.cfg.ProcessingFee); err != nil {
			return model.Spot{}, fmt.Errorf("%w: %v", ErrFeePayment, err)
		}
	}

	spot = e.queue.Append(spot)

	e.journal(model.SettlementRecord{
		Kind:        model.RecordSubmitted,
		Sequence:    spot.Sequence,
		Pool:        uint64(spot.Pool),
		Account:     spot.Account.Hex(),
		RequestKind: spot.Kind.String(),
		Amount:      model.FormatAmount(spot.Amount()),
	})
	e.emit(model.EventSubmitted, spot)

	e.logger.Info("request queued",
		zap.Uint64("seq", spot.Sequence),
		zap.String("kind", spot.Kind.String()),
		zap.Uint64("pool", uint64(spot.Pool)),
		zap.String("account", spot.Account.Hex()),
		zap.String("amount", model.FormatAmount(spot.Amount())),
	)

	return spot, nil
}
