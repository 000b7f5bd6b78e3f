package amm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (t *txn) swap(ctx context.Context, sender common.Address, amountOutA, amountOutB *uint256.Int, to common.Address, data []byte) (*uint256.Int, *uint256.Int, error) {
	if amountOutA == nil {
		amountOutA = new(uint256.Int)
	}
	if amountOutB == nil {
		amountOutB = new(uint256.Int)
	}
	if amountOutA.IsZero() && amountOutB.IsZero() {
		return nil, nil, ErrInsufficientOutputAmount
	}

	s := t.state
	reserveA, reserveB := s.ReserveA.Clone(), s.ReserveB.Clone()
	if !amountOutA.Lt(reserveA) || !amountOutB.Lt(reserveB) {
		return nil, nil, ErrInsufficientLiquidity
	}
	if to == s.TokenA || to == s.TokenB {
		return nil, nil, ErrInvalidRecipient
	}

	// Optimistic transfer: the recipient holds the output before paying.
	if err := t.push(s.TokenA, to, amountOutA); err != nil {
		return nil, nil, err
	}
	if err := t.push(s.TokenB, to, amountOutB); err != nil {
		return nil, nil, err
	}

	if len(data) > 0 {
		if t.pool.callee == nil {
			return nil, nil, ErrCallbackUnavailable
		}
		if err := t.pool.callee.Notify(ctx, to, sender, amountOutA.Clone(), amountOutB.Clone(), data); err != nil {
			return nil, nil, fmt.Errorf("swap callback %s: %w", to.Hex(), err)
		}
	}

	balA, balB := t.balances()

	c := &calc{}
	amountInA := inferInput(c, balA, reserveA, amountOutA)
	amountInB := inferInput(c, balB, reserveB, amountOutB)
	if c.err != nil {
		return nil, nil, c.err
	}
	if amountInA.IsZero() && amountInB.IsZero() {
		return nil, nil, ErrInsufficientInputAmount
	}

	adjustedA := c.sub(c.mul(balA, feeScale), c.mul(amountInA, feeNumerator))
	adjustedB := c.sub(c.mul(balB, feeScale), c.mul(amountInB, feeNumerator))
	kBalance := c.mul(adjustedA, adjustedB)
	kReserve := c.mul(c.mul(reserveA, reserveB), kScale)
	if c.err != nil {
		return nil, nil, c.err
	}
	if kBalance.Lt(kReserve) {
		return nil, nil, ErrInvariantViolation
	}

	if err := t.sync(balA, balB); err != nil {
		return nil, nil, err
	}

	t.emit(Event{
		Kind:       EventSwap,
		Sender:     sender,
		To:         to,
		AmountInA:  amountInA,
		AmountInB:  amountInB,
		AmountOutA: amountOutA.Clone(),
		AmountOutB: amountOutB.Clone(),
	})
	return amountInA, amountInB, nil
}

// inferInput returns how much of a token arrived during the swap:
// max(0, balance - (reserve - amountOut)).
func inferInput(c *calc, balance, reserve, amountOut *uint256.Int) *uint256.Int {
	floor := c.sub(reserve, amountOut)
	if c.err != nil || !balance.Gt(floor) {
		return new(uint256.Int)
	}
	return c.sub(balance, floor)
}

// GetAmountOut quotes the output for amountIn against the given reserves,
// net of the 0.3% fee.
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn == nil || amountIn.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	c := &calc{}
	amountInWithFee := c.mul(amountIn, feeComplement)
	numerator := c.mul(amountInWithFee, reserveOut)
	denominator := c.add(c.mul(reserveIn, feeScale), amountInWithFee)
	out := c.div(numerator, denominator)
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

// GetAmountIn quotes the input needed to receive amountOut, net of the 0.3%
// fee.
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountOut == nil || amountOut.IsZero() {
		return nil, ErrInsufficientOutputAmount
	}
	if reserveIn.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, ErrInsufficientLiquidity
	}
	c := &calc{}
	numerator := c.mul(c.mul(reserveIn, amountOut), feeScale)
	denominator := c.mul(c.sub(reserveOut, amountOut), feeComplement)
	in := c.add(c.div(numerator, denominator), one)
	if c.err != nil {
		return nil, c.err
	}
	return in, nil
}
