package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolbridge/internal/model"
)

// applyOutcome carries the balance deltas of a successful application, for
// journaling.
type applyOutcome struct {
	shares     *big.Int
	receivable *big.Int
	fee        *big.Int
	pending    *big.Int
}

// Confirm settles the head-of-queue request with an operator-supplied
// confirmation. Identity and ordering violations reject the call outright.
// Once past those checks the cursor advances exactly once no matter what:
// an application failure (hardcap, underflow, malformed payload) consumes
// the spot as Skipped instead of wedging the queue.
func (e *Engine) Confirm(caller common.Address, expectedSeq uint64, conf model.Confirmation) (model.Spot, error) {
	if err := e.enter(); err != nil {
		return model.Spot{}, err
	}
	defer e.exit()

	head, ok := e.queue.PeekHead()
	if !ok {
		return model.Spot{}, fmt.Errorf("queue drained: %w", ErrInvalidSpot)
	}

	v, ok := e.vaults[head.Pool]
	if !ok {
		return model.Spot{}, fmt.Errorf("pool %d has no vault: %w", head.Pool, ErrInvalidPool)
	}
	if caller != v.AuthorizedOperator() {
		return model.Spot{}, fmt.Errorf("caller %s: %w", caller.Hex(), ErrNotOperator)
	}

	// An empty confirmation is the operator's explicit signal to discard a
	// request it determined is unfulfillable off-chain.
	if conf.Empty() {
		settled, err := e.queue.Advance(model.SpotSkipped, "operator skip")
		if err != nil {
			return model.Spot{}, err
		}
		e.finishSettlement(settled, applyOutcome{})
		return settled, nil
	}

	if expectedSeq != head.Sequence {
		return model.Spot{}, fmt.Errorf("expected %d, head is %d: %w", expectedSeq, head.Sequence, ErrInvalidSpot)
	}

	outcome, applyErr := e.apply(head, conf)

	var settled model.Spot
	var err error
	if applyErr != nil {
		settled, err = e.queue.Advance(model.SpotSkipped, applyErr.Error())
	} else {
		settled, err = e.queue.Advance(model.SpotExecuted, "")
	}
	if err != nil {
		return model.Spot{}, err
	}

	e.finishSettlement(settled, outcome)
	return settled, nil
}

// apply attempts the balance mutation for a confirmed request. It returns an
// error instead of mutating anything when the confirmation cannot be applied;
// the caller treats that as an ordinary outcome, not a failure of the
// confirmation call.
func (e *Engine) apply(head model.Spot, conf model.Confirmation) (applyOutcome, error) {
	switch head.Kind {
	case model.KindDeposit:
		return e.applyDeposit(head, conf)
	case model.KindWithdraw:
		return e.applyWithdraw(head, conf)
	default:
		return applyOutcome{}, fmt.Errorf("malformed spot kind %d", head.Kind)
	}
}

func (e *Engine) applyDeposit(head model.Spot, conf model.Confirmation) (applyOutcome, error) {
	if head.Deposit == nil {
		return applyOutcome{}, fmt.Errorf("deposit spot missing payload")
	}
	if conf.Shares == nil || conf.Shares.Sign() <= 0 || conf.Receivable != nil {
		return applyOutcome{}, fmt.Errorf("malformed deposit confirmation")
	}

	pool, ok := e.registry.Get(head.Pool)
	if !ok {
		return applyOutcome{}, fmt.Errorf("pool %d not registered", head.Pool)
	}

	projected := new(big.Int).Add(pool.AggregateActive, conf.Shares)
	if projected.Cmp(pool.Capacity) > 0 {
		return applyOutcome{}, fmt.Errorf("hardcap exceeded: %s > %s", projected, pool.Capacity)
	}

	v := e.vaults[head.Pool]
	amount := head.Deposit.Amount

	if err := e.poolToken.Transfer(head.Account, v.Address(), amount); err != nil {
		return applyOutcome{}, fmt.Errorf("custody transfer: %w", err)
	}
	if err := v.DepositToVenue(amount); err != nil {
		// Unwind the custody transfer so a skipped spot leaves balances
		// exactly as they were.
		if undo := e.poolToken.Transfer(v.Address(), head.Account, amount); undo != nil {
			e.logger.Error("custody unwind failed",
				zap.Uint64("seq", head.Sequence), zap.Error(undo))
		}
		return applyOutcome{}, fmt.Errorf("venue forward: %w", err)
	}

	e.ledger.CreditActive(head.Pool, head.Deposit.Receiver, conf.Shares)
	if err := e.registry.CreditAggregate(head.Pool, conf.Shares); err != nil {
		return applyOutcome{}, err
	}

	return applyOutcome{shares: conf.Shares}, nil
}

func (e *Engine) applyWithdraw(head model.Spot, conf model.Confirmation) (applyOutcome, error) {
	if head.Withdraw == nil {
		return applyOutcome{}, fmt.Errorf("withdraw spot missing payload")
	}
	if conf.Receivable == nil || conf.Receivable.Sign() < 0 || conf.Shares != nil {
		return applyOutcome{}, fmt.Errorf("malformed withdraw confirmation")
	}

	amount := head.Withdraw.Amount

	// Verify both debits up front so neither can fail after the other
	// committed.
	if e.ledger.Position(head.Pool, head.Account).Active.Cmp(amount) < 0 {
		return applyOutcome{}, fmt.Errorf("active balance underflow")
	}
	pool, ok := e.registry.Get(head.Pool)
	if !ok {
		return applyOutcome{}, fmt.Errorf("pool %d not registered", head.Pool)
	}
	if pool.AggregateActive.Cmp(amount) < 0 {
		return applyOutcome{}, fmt.Errorf("aggregate balance underflow")
	}

	if err := e.ledger.DebitActive(head.Pool, head.Account, amount); err != nil {
		return applyOutcome{}, err
	}
	if err := e.registry.DebitAggregate(head.Pool, amount); err != nil {
		return applyOutcome{}, err
	}

	fee := feeFromReceivable(conf.Receivable, e.cfg.WithdrawFeeBps)
	pending := new(big.Int).Sub(conf.Receivable, fee)
	e.ledger.AccrueWithdrawal(head.Pool, head.Account, pending, fee)

	return applyOutcome{receivable: conf.Receivable, fee: fee, pending: pending}, nil
}

func (e *Engine) finishSettlement(settled model.Spot, outcome applyOutcome) {
	e.journal(model.SettlementRecord{
		Kind:        model.RecordSettled,
		Sequence:    settled.Sequence,
		Pool:        uint64(settled.Pool),
		Account:     settled.Account.Hex(),
		RequestKind: settled.Kind.String(),
		Status:      settled.Status.String(),
		Reason:      settled.Reason,
		Amount:      model.FormatAmount(settled.Amount()),
		Shares:      model.FormatAmount(outcome.shares),
		Receivable:  model.FormatAmount(outcome.receivable),
		Fee:         model.FormatAmount(outcome.fee),
		Pending:     model.FormatAmount(outcome.pending),
	})
	e.emit(model.EventSettled, settled)

	e.logger.Info("spot settled",
		zap.Uint64("seq", settled.Sequence),
		zap.String("kind", settled.Kind.String()),
		zap.String("status", settled.Status.String()),
		zap.String("reason", settled.Reason),
		zap.Uint64("processed_up_to", e.queue.Processed()),
	)
}
