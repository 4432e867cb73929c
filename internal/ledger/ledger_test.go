package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	acctA = common.HexToAddress("0xaa")
	acctB = common.HexToAddress("0xbb")
)

func TestDebitActiveUnderflowLeavesStateUntouched(t *testing.T) {
	l := New()
	l.CreditActive(1, acctA, big.NewInt(100))

	if err := l.DebitActive(1, acctA, big.NewInt(101)); err == nil {
		t.Fatalf("expected underflow error")
	}
	if got := l.Position(1, acctA).Active; got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("active mutated on failed debit: %s", got)
	}

	if err := l.DebitActive(1, acctA, big.NewInt(100)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got := l.Position(1, acctA).Active; got.Sign() != 0 {
		t.Fatalf("active should be zero: %s", got)
	}
}

func TestTakeClaimableReadThenClear(t *testing.T) {
	l := New()
	l.AccrueWithdrawal(1, acctA, big.NewInt(95), big.NewInt(5))

	pending, fee := l.TakeClaimable(1, acctA)
	if pending.Cmp(big.NewInt(95)) != 0 || fee.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("claimable mismatch: %s / %s", pending, fee)
	}

	// Second take must observe zeroes.
	pending, fee = l.TakeClaimable(1, acctA)
	if pending.Sign() != 0 || fee.Sign() != 0 {
		t.Fatalf("second take should be zero: %s / %s", pending, fee)
	}
}

func TestSolvencySums(t *testing.T) {
	l := New()
	l.CreditActive(1, acctA, big.NewInt(30))
	l.CreditActive(1, acctB, big.NewInt(70))
	l.CreditActive(2, acctA, big.NewInt(5))

	if got := l.SumActive(1); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("pool 1 active sum: %s", got)
	}

	l.AccrueWithdrawal(1, acctB, big.NewInt(9), big.NewInt(1))
	active, pending, fee := l.Totals()
	if active.Cmp(big.NewInt(105)) != 0 {
		t.Fatalf("total active: %s", active)
	}
	if pending.Cmp(big.NewInt(9)) != 0 || fee.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("totals: pending %s fee %s", pending, fee)
	}
}

func TestPositionReturnsCopy(t *testing.T) {
	l := New()
	l.CreditActive(1, acctA, big.NewInt(10))
	l.Position(1, acctA).Active.SetInt64(999)
	if got := l.Position(1, acctA).Active; got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("ledger state leaked through Position: %s", got)
	}
}
