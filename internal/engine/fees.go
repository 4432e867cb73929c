package engine

import "math/big"

const feeDenominator = 10_000

// feeFromReceivable takes the protocol's basis-point cut of the
// operator-reported receivable amount.
func feeFromReceivable(receivable *big.Int, feeBps uint32) *big.Int {
	if receivable == nil || receivable.Sign() <= 0 || feeBps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Set(receivable)
	fee.Mul(fee, big.NewInt(int64(feeBps)))
	fee.Div(fee, big.NewInt(feeDenominator))
	return fee
}
