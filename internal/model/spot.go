package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RequestKind distinguishes the two queue request types.
type RequestKind uint8

const (
	KindDeposit RequestKind = iota
	KindWithdraw
)

func (k RequestKind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// SpotStatus is the lifecycle state of a queue entry.
type SpotStatus uint8

const (
	SpotQueued SpotStatus = iota
	SpotExecuted
	SpotSkipped
)

func (s SpotStatus) String() string {
	switch s {
	case SpotQueued:
		return "queued"
	case SpotExecuted:
		return "executed"
	case SpotSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// DepositPayload carries the typed fields of a deposit request.
type DepositPayload struct {
	Receiver common.Address
	Amount   *big.Int
}

// WithdrawPayload carries the typed fields of a withdraw request.
type WithdrawPayload struct {
	Amount *big.Int
}

// Spot is one FIFO queue entry. Exactly one of Deposit or Withdraw is set,
// matching Kind. Spots are append-only and kept after settlement for audit.
type Spot struct {
	Sequence uint64
	Account  common.Address
	Vault    common.Address
	Pool     PoolID
	Kind     RequestKind
	Deposit  *DepositPayload
	Withdraw *WithdrawPayload
	Status   SpotStatus
	Reason   string
}

// Amount returns the requested amount regardless of kind.
func (s Spot) Amount() *big.Int {
	switch s.Kind {
	case KindDeposit:
		if s.Deposit != nil {
			return s.Deposit.Amount
		}
	case KindWithdraw:
		if s.Withdraw != nil {
			return s.Withdraw.Amount
		}
	}
	return nil
}

// Confirmation is the operator-supplied settlement payload for the head spot.
// Shares is set for deposits, Receivable for withdrawals. A confirmation with
// neither field is the explicit skip signal.
//
// Receivable is trusted operator input: the venue-reported amount is not
// re-validated against the originally requested amount, so partial fills are
// settled at whatever the operator reports.
type Confirmation struct {
	Shares     *big.Int
	Receivable *big.Int
}

// Empty reports whether the confirmation is the explicit skip signal.
func (c Confirmation) Empty() bool {
	return c.Shares == nil && c.Receivable == nil
}
