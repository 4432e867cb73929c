package model

import "math/big"

// Position is the per-pool, per-account ledger entry.
type Position struct {
	Active  *big.Int
	Pending *big.Int
	Fee     *big.Int
}

// NewPosition returns a zeroed position.
func NewPosition() *Position {
	return &Position{
		Active:  big.NewInt(0),
		Pending: big.NewInt(0),
		Fee:     big.NewInt(0),
	}
}

// Clone returns a deep copy so callers cannot mutate ledger state.
func (p *Position) Clone() *Position {
	if p == nil {
		return NewPosition()
	}
	return &Position{
		Active:  new(big.Int).Set(p.Active),
		Pending: new(big.Int).Set(p.Pending),
		Fee:     new(big.Int).Set(p.Fee),
	}
}
