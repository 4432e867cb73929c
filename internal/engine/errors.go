package engine

import "errors"

// Caller-visible rejection reasons. Application-time failures (hardcap,
// underflow, malformed confirmation payload) never surface as errors: the
// spot is consumed as Skipped and the queue advances.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrPaused              = errors.New("entry point paused")
	ErrInvalidPool         = errors.New("invalid pool")
	ErrZeroAccount         = errors.New("zero account")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient active balance")
	ErrFeePayment          = errors.New("processing fee payment failed")
	ErrNotOperator         = errors.New("caller is not the pool operator")
	ErrInvalidSpot         = errors.New("confirmation does not target the queue head")
	ErrReentrancy          = errors.New("reentrant call")
)
