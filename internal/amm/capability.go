package amm

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger is the token ledger the pool custodies its balances in. The pool's
// own address doubles as the liquidity share token.
type Ledger interface {
	BalanceOf(token, holder common.Address) *uint256.Int
	TotalSupply(token common.Address) *uint256.Int
	Transfer(token, from, to common.Address, amount *uint256.Int) error
	Mint(token, to common.Address, amount *uint256.Int) error
	Burn(token, from common.Address, amount *uint256.Int) error

	// Snapshot, RevertToSnapshot and DiscardSnapshot scope the ledger moves of
	// one pool operation so a failed operation can be undone.
	Snapshot() int
	RevertToSnapshot(id int)
	DiscardSnapshot(id int)
}

// Callee receives the flash-swap callback after the optimistic transfer.
type Callee interface {
	Notify(ctx context.Context, recipient, sender common.Address, amountOutA, amountOutB *uint256.Int, data []byte) error
}

// FeeSwitch reports the protocol fee recipient. The zero address turns the
// protocol fee off.
type FeeSwitch interface {
	FeeTo() common.Address
}

// StaticFeeTo is a FeeSwitch with a fixed recipient.
type StaticFeeTo common.Address

func (f StaticFeeTo) FeeTo() common.Address {
	return common.Address(f)
}

// Clock returns the current time in unix seconds.
type Clock func() uint64

// SystemClock reads the wall clock.
func SystemClock() uint64 {
	return uint64(time.Now().Unix())
}

// Observer is told the outcome of every pool operation.
type Observer interface {
	ObserveOperation(op string, err error)
}
