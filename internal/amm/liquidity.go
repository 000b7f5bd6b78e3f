package amm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// mintFee mints the protocol's share of fee growth since the last liquidity
// event: 1/6 of the growth in sqrt(k). It reports whether the fee is on.
func (t *txn) mintFee() (bool, error) {
	var feeTo common.Address
	if t.pool.feeSwitch != nil {
		feeTo = t.pool.feeSwitch.FeeTo()
	}
	s := t.state
	if feeTo == (common.Address{}) {
		if !s.KLast.IsZero() {
			s.KLast = new(uint256.Int)
		}
		return false, nil
	}
	if s.KLast.IsZero() {
		return true, nil
	}

	k, err := s.product()
	if err != nil {
		return true, err
	}
	rootK, err := Sqrt(k)
	if err != nil {
		return true, err
	}
	rootKLast, err := Sqrt(s.KLast)
	if err != nil {
		return true, err
	}
	if !rootK.Gt(rootKLast) {
		return true, nil
	}

	c := &calc{}
	totalSupply := t.pool.ledger.TotalSupply(t.pool.addr)
	numerator := c.mul(totalSupply, c.sub(rootK, rootKLast))
	denominator := c.add(c.mul(rootK, five), rootKLast)
	liquidity := c.div(numerator, denominator)
	if c.err != nil {
		return true, c.err
	}
	if liquidity.IsZero() {
		return true, nil
	}
	if err := t.pool.ledger.Mint(t.pool.addr, feeTo, liquidity); err != nil {
		return true, fmt.Errorf("mint protocol fee: %w", err)
	}
	return true, nil
}

func (t *txn) mint(sender, to common.Address) (*uint256.Int, error) {
	s := t.state
	balA, balB := t.balances()

	c := &calc{}
	amountA := c.sub(balA, s.ReserveA)
	amountB := c.sub(balB, s.ReserveB)
	if c.err != nil {
		return nil, c.err
	}

	feeOn, err := t.mintFee()
	if err != nil {
		return nil, err
	}

	ledger := t.pool.ledger
	totalSupply := ledger.TotalSupply(t.pool.addr)

	var liquidity *uint256.Int
	if totalSupply.IsZero() {
		root, err := Sqrt(c.mul(amountA, amountB))
		if c.err != nil {
			return nil, c.err
		}
		if err != nil {
			return nil, err
		}
		if !root.GtUint64(MinimumLiquidity) {
			return nil, ErrInsufficientLiquidityMinted
		}
		liquidity = new(uint256.Int).Sub(root, uint256.NewInt(MinimumLiquidity))
		if err := ledger.Mint(t.pool.addr, BurnAddress, uint256.NewInt(MinimumLiquidity)); err != nil {
			return nil, fmt.Errorf("lock minimum liquidity: %w", err)
		}
	} else {
		liquidity = Min(
			c.div(c.mul(amountA, totalSupply), s.ReserveA),
			c.div(c.mul(amountB, totalSupply), s.ReserveB),
		)
		if c.err != nil {
			return nil, c.err
		}
	}

	if liquidity.IsZero() {
		return nil, ErrInsufficientLiquidityMinted
	}
	if err := ledger.Mint(t.pool.addr, to, liquidity); err != nil {
		return nil, fmt.Errorf("mint shares: %w", err)
	}

	if err := t.sync(balA, balB); err != nil {
		return nil, err
	}
	if feeOn {
		k, err := s.product()
		if err != nil {
			return nil, err
		}
		s.KLast = k
	}

	t.emit(Event{
		Kind:    EventMint,
		Sender:  sender,
		AmountA: amountA,
		AmountB: amountB,
	})
	return liquidity, nil
}

func (t *txn) burn(sender, to common.Address) (*uint256.Int, *uint256.Int, error) {
	s := t.state
	ledger := t.pool.ledger
	balA, balB := t.balances()
	liquidity := ledger.BalanceOf(t.pool.addr, t.pool.addr)

	feeOn, err := t.mintFee()
	if err != nil {
		return nil, nil, err
	}

	totalSupply := ledger.TotalSupply(t.pool.addr)
	if totalSupply.IsZero() {
		return nil, nil, ErrInsufficientLiquidityBurned
	}

	c := &calc{}
	amountA := c.div(c.mul(liquidity, balA), totalSupply)
	amountB := c.div(c.mul(liquidity, balB), totalSupply)
	if c.err != nil {
		return nil, nil, c.err
	}
	if amountA.IsZero() || amountB.IsZero() {
		return nil, nil, ErrInsufficientLiquidityBurned
	}

	if err := ledger.Burn(t.pool.addr, t.pool.addr, liquidity); err != nil {
		return nil, nil, fmt.Errorf("burn shares: %w", err)
	}
	if err := t.push(s.TokenA, to, amountA); err != nil {
		return nil, nil, err
	}
	if err := t.push(s.TokenB, to, amountB); err != nil {
		return nil, nil, err
	}

	balA, balB = t.balances()
	if err := t.sync(balA, balB); err != nil {
		return nil, nil, err
	}
	if feeOn {
		k, err := s.product()
		if err != nil {
			return nil, nil, err
		}
		s.KLast = k
	}

	t.emit(Event{
		Kind:    EventBurn,
		Sender:  sender,
		To:      to,
		AmountA: amountA,
		AmountB: amountB,
	})
	return amountA, amountB, nil
}
