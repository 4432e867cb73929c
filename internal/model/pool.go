package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolID identifies a liquidity pool.
type PoolID uint64

// PoolType marks whether a pool slot is registered.
type PoolType uint8

const (
	PoolInactive PoolType = iota
	PoolActive
)

// Pool is one registered liquidity bucket and its aggregate state.
type Pool struct {
	ID              PoolID         `json:"id"`
	Vault           common.Address `json:"vault"`
	Type            PoolType       `json:"type"`
	Capacity        *big.Int       `json:"-"`
	AggregateActive *big.Int       `json:"-"`
}

// Registered reports whether the pool slot has been bound to a vault.
func (p Pool) Registered() bool {
	return p.Type != PoolInactive
}
