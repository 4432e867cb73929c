package engine

import (
	"math/big"
	"testing"
)

func TestFeeFromReceivable(t *testing.T) {
	cases := []struct {
		receivable int64
		bps        uint32
		want       int64
	}{
		{10_000, 50, 50},
		{1000, 50, 5},
		{999, 50, 4}, // truncating division
		{1000, 0, 0},
		{0, 50, 0},
	}
	for _, tc := range cases {
		got := feeFromReceivable(big.NewInt(tc.receivable), tc.bps)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("fee(%d, %d) = %s, want %d", tc.receivable, tc.bps, got, tc.want)
		}
	}

	if got := feeFromReceivable(nil, 50); got.Sign() != 0 {
		t.Fatalf("nil receivable should fee zero, got %s", got)
	}
}
