package amm

import (
	"github.com/holiman/uint256"
)

// MinimumLiquidity is locked forever on the first deposit.
const MinimumLiquidity = 1000

var (
	// Q112 is the UQ112x112 fixed-point scale used by the price accumulators.
	Q112 = new(uint256.Int).Lsh(uint256.NewInt(1), 112)
	// MaxReserve is the largest balance a reserve can record (uint112).
	MaxReserve = new(uint256.Int).Sub(Q112, uint256.NewInt(1))

	one  = uint256.NewInt(1)
	two  = uint256.NewInt(2)
	five = uint256.NewInt(5)

	feeScale      = uint256.NewInt(1000)
	feeNumerator  = uint256.NewInt(3)
	feeComplement = uint256.NewInt(997)
	kScale        = uint256.NewInt(1_000_000)
)

// Min returns a copy of the smaller of x and y.
func Min(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return x.Clone()
	}
	return y.Clone()
}

// Sqrt returns floor(sqrt(y)) using the Babylonian method.
func Sqrt(y *uint256.Int) (*uint256.Int, error) {
	if y.GtUint64(3) {
		c := &calc{}
		z := y.Clone()
		x := c.add(c.div(y, two), one)
		for c.err == nil && x.Lt(z) {
			z = x
			x = c.div(c.add(c.div(y, x), x), two)
		}
		if c.err != nil {
			return nil, c.err
		}
		return z, nil
	}
	if !y.IsZero() {
		return uint256.NewInt(1), nil
	}
	return new(uint256.Int), nil
}

// calc performs checked arithmetic. The first fault sticks and turns every
// later operation into a no-op returning zero.
type calc struct {
	err error
}

func (c *calc) fail(op string) *uint256.Int {
	if c.err == nil {
		c.err = &ArithmeticError{Op: op}
	}
	return new(uint256.Int)
}

func (c *calc) add(x, y *uint256.Int) *uint256.Int {
	if c.err != nil {
		return new(uint256.Int)
	}
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return c.fail("add overflow")
	}
	return z
}

func (c *calc) sub(x, y *uint256.Int) *uint256.Int {
	if c.err != nil {
		return new(uint256.Int)
	}
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return c.fail("sub underflow")
	}
	return z
}

func (c *calc) mul(x, y *uint256.Int) *uint256.Int {
	if c.err != nil {
		return new(uint256.Int)
	}
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return c.fail("mul overflow")
	}
	return z
}

func (c *calc) div(x, y *uint256.Int) *uint256.Int {
	if c.err != nil {
		return new(uint256.Int)
	}
	if y.IsZero() {
		return c.fail("division by zero")
	}
	return new(uint256.Int).Div(x, y)
}

func (c *calc) lsh(x *uint256.Int, n uint) *uint256.Int {
	if c.err != nil {
		return new(uint256.Int)
	}
	if x.BitLen()+int(n) > 256 {
		return c.fail("shift overflow")
	}
	return new(uint256.Int).Lsh(x, n)
}
