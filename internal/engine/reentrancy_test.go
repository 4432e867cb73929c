package engine

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"poolbridge/internal/model"
	"poolbridge/internal/token"
	"poolbridge/internal/vault"
)

// reentrantVault calls back into Claim mid-drain, imitating a compromised
// custody unit trying to double-spend the claimable balance.
type reentrantVault struct {
	vault.Vault
	engine  **Engine
	account common.Address
	pool    model.PoolID
	hit     error
	called  bool
}

func (v *reentrantVault) DrainToken(to common.Address, amount *big.Int) error {
	if !v.called {
		v.called = true
		_, _, v.hit = (*v.engine).Claim(v.account, v.pool)
	}
	return v.Vault.DrainToken(to, amount)
}

func TestReentrantClaimRejected(t *testing.T) {
	poolBook := token.NewBook("USDX")
	gasBook := token.NewBook("GAS")

	trap := &reentrantVault{account: user, pool: 1}
	factory := func(id model.PoolID) vault.Vault {
		trap.Vault = vault.NewMemory(vault.DeriveAddress(uint64(id)), venue, operator, poolBook)
		return trap
	}

	e := New(Config{
		Owner:          owner,
		Self:           self,
		Venue:          venue,
		FeeSink:        feeSink,
		OperatorPayout: payout,
		WithdrawFeeBps: 50,
		ProcessingFee:  big.NewInt(0),
	}, poolBook, gasBook, factory, nil, nil)
	trap.engine = &e

	if err := poolBook.Mint(user, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := e.RegisterPool(owner, 1, big.NewInt(10_000)); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := e.Submit(SubmitRequest{Account: user, Kind: model.KindDeposit, Pool: 1, Amount: big.NewInt(1000), Receiver: user}); err != nil {
		t.Fatalf("submit deposit: %v", err)
	}
	if _, err := e.Confirm(operator, 1, model.Confirmation{Shares: big.NewInt(1000)}); err != nil {
		t.Fatalf("confirm deposit: %v", err)
	}
	if _, err := e.Submit(SubmitRequest{Account: user, Kind: model.KindWithdraw, Pool: 1, Amount: big.NewInt(1000)}); err != nil {
		t.Fatalf("submit withdraw: %v", err)
	}
	if _, err := e.Confirm(operator, 2, model.Confirmation{Receivable: big.NewInt(1000)}); err != nil {
		t.Fatalf("confirm withdraw: %v", err)
	}

	// Return capital to the vault so the outer claim can drain it.
	if err := poolBook.Transfer(venue, trap.Vault.Address(), big.NewInt(1000)); err != nil {
		t.Fatalf("return from venue: %v", err)
	}

	pending, fee, err := e.Claim(user, 1)
	if err != nil {
		t.Fatalf("outer claim: %v", err)
	}
	if !trap.called {
		t.Fatalf("reentrant callback never fired")
	}
	if !errors.Is(trap.hit, ErrReentrancy) {
		t.Fatalf("inner claim should hit the reentrancy barrier, got %v", trap.hit)
	}

	// Exactly one payout.
	if pending.Cmp(big.NewInt(995)) != 0 || fee.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("payout amounts: %s / %s", pending, fee)
	}
	if got := poolBook.BalanceOf(user).Int64(); got != 995 {
		t.Fatalf("user balance after claim: %d", got)
	}
	position := e.Position(1, user)
	if position.Pending.Sign() != 0 || position.Fee.Sign() != 0 {
		t.Fatalf("claimable not zeroed: %s / %s", position.Pending, position.Fee)
	}
}

// gatedGas stalls the first fee transfer until released, holding one Submit
// open mid-operation while another caller arrives.
type gatedGas struct {
	*token.Book
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedGas) Transfer(from, to common.Address, amount *big.Int) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.Book.Transfer(from, to, amount)
}

func TestConcurrentSubmitsSerialize(t *testing.T) {
	poolBook := token.NewBook("USDX")
	gas := &gatedGas{
		Book:    token.NewBook("GAS"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	factory := func(id model.PoolID) vault.Vault {
		return vault.NewMemory(vault.DeriveAddress(uint64(id)), venue, operator, poolBook)
	}
	e := New(Config{
		Owner:          owner,
		Self:           self,
		Venue:          venue,
		FeeSink:        feeSink,
		OperatorPayout: payout,
		WithdrawFeeBps: 50,
		ProcessingFee:  big.NewInt(1),
	}, poolBook, gas, factory, nil, nil)

	for _, account := range []common.Address{user, user2} {
		if err := gas.Book.Mint(account, big.NewInt(10)); err != nil {
			t.Fatalf("mint gas: %v", err)
		}
	}
	if _, err := e.RegisterPool(owner, 1, big.NewInt(10_000)); err != nil {
		t.Fatalf("register: %v", err)
	}

	submit := func(account common.Address) error {
		_, err := e.Submit(SubmitRequest{Account: account, Kind: model.KindDeposit, Pool: 1, Amount: big.NewInt(10), Receiver: account})
		return err
	}

	firstErr := make(chan error, 1)
	go func() { firstErr <- submit(user) }()
	<-gas.entered

	// The second caller overlaps the first mid-operation. It must wait its
	// turn, not bounce off the reentrancy barrier.
	secondErr := make(chan error, 1)
	go func() { secondErr <- submit(user2) }()

	time.Sleep(20 * time.Millisecond)
	close(gas.release)

	for _, ch := range []chan error{firstErr, secondErr} {
		select {
		case err := <-ch:
			if err != nil {
				t.Fatalf("overlapping submit failed: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("submit did not complete")
		}
	}

	if e.Submitted() != 2 {
		t.Fatalf("submitted = %d, want 2", e.Submitted())
	}
}
