package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientFunds is returned when a transfer exceeds the sender balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Transferrer is the engine-facing slice of a token book.
type Transferrer interface {
	Transfer(from, to common.Address, amount *big.Int) error
	BalanceOf(owner common.Address) *big.Int
}

// Book is an in-process token balance book. It stands in for the token
// contract the settlement engine moves capital through: pool token and
// processing-fee currency are separate Book instances.
type Book struct {
	mu        sync.Mutex
	symbol    string
	balances  map[common.Address]*big.Int
	allowance map[common.Address]map[common.Address]*big.Int
	minted    *big.Int
}

func NewBook(symbol string) *Book {
	return &Book{
		symbol:    symbol,
		balances:  make(map[common.Address]*big.Int),
		allowance: make(map[common.Address]map[common.Address]*big.Int),
		minted:    big.NewInt(0),
	}
}

func (b *Book) Symbol() string { return b.symbol }

// Mint credits new supply to an account.
func (b *Book) Mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid mint amount")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(to, amount)
	b.minted.Add(b.minted, amount)
	return nil
}

// Transfer moves amount between accounts, failing without effect when the
// sender balance is short.
func (b *Book) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	balance, ok := b.balances[from]
	if !ok || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%s: %w", b.symbol, ErrInsufficientFunds)
	}
	balance.Sub(balance, amount)
	b.credit(to, amount)
	return nil
}

// Approve records a spending allowance, mirroring the venue authorization a
// vault receives at pool registration. The book does not enforce allowances
// on Transfer; they are advisory state queried by the venue side.
func (b *Book) Approve(owner, spender common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	grants, ok := b.allowance[owner]
	if !ok {
		grants = make(map[common.Address]*big.Int)
		b.allowance[owner] = grants
	}
	grants[spender] = new(big.Int).Set(amount)
}

// Allowance returns the recorded grant from owner to spender.
func (b *Book) Allowance(owner, spender common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if grants, ok := b.allowance[owner]; ok {
		if amount, ok := grants[spender]; ok {
			return new(big.Int).Set(amount)
		}
	}
	return big.NewInt(0)
}

// BalanceOf returns a copy of the account balance.
func (b *Book) BalanceOf(owner common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if balance, ok := b.balances[owner]; ok {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}

// TotalMinted returns the cumulative minted supply.
func (b *Book) TotalMinted() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.minted)
}

func (b *Book) credit(to common.Address, amount *big.Int) {
	balance, ok := b.balances[to]
	if !ok {
		balance = big.NewInt(0)
		b.balances[to] = balance
	}
	balance.Add(balance, amount)
}
