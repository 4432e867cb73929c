package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"poolbridge/internal/token"
)

// Vault is the per-pool custody and forwarding unit. The engine never talks
// to the external venue directly; all capital moves through a Vault.
type Vault interface {
	Address() common.Address
	DepositToVenue(amount *big.Int) error
	DrainToken(to common.Address, amount *big.Int) error
	AuthorizedOperator() common.Address
}

// Memory is a Vault backed by an in-process token book. Custody is the
// vault's own book balance; forwarding moves it to the venue address.
type Memory struct {
	addr     common.Address
	venue    common.Address
	operator common.Address
	book     *token.Book
}

func NewMemory(addr, venue, operator common.Address, book *token.Book) *Memory {
	return &Memory{addr: addr, venue: venue, operator: operator, book: book}
}

func (v *Memory) Address() common.Address { return v.addr }

func (v *Memory) AuthorizedOperator() common.Address { return v.operator }

// DepositToVenue forwards custodied tokens to the external venue.
func (v *Memory) DepositToVenue(amount *big.Int) error {
	if err := v.book.Transfer(v.addr, v.venue, amount); err != nil {
		return fmt.Errorf("forward to venue: %w", err)
	}
	return nil
}

// DrainToken releases returned capital held by the vault. Capital the venue
// pays back is credited to the vault address out of band; Drain only moves
// what is already there.
func (v *Memory) DrainToken(to common.Address, amount *big.Int) error {
	if err := v.book.Transfer(v.addr, to, amount); err != nil {
		return fmt.Errorf("drain vault: %w", err)
	}
	return nil
}

// DeriveAddress returns the deterministic vault address for a pool id.
func DeriveAddress(poolID uint64) common.Address {
	digest := crypto.Keccak256([]byte(fmt.Sprintf("poolbridge/vault/%d", poolID)))
	return common.BytesToAddress(digest[12:])
}
