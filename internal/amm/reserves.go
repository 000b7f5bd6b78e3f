package amm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// State is the mutable record of a single pool.
type State struct {
	TokenA common.Address
	TokenB common.Address

	ReserveA *uint256.Int
	ReserveB *uint256.Int

	// UQ112x112 price accumulators, scaled by Q112.
	PriceCumulativeA *uint256.Int
	PriceCumulativeB *uint256.Int

	LastSync uint64

	// KLast is ReserveA*ReserveB right after the last liquidity event; zero
	// until the protocol fee has been primed.
	KLast *uint256.Int
}

// NewState returns an empty pool state for the token pair.
func NewState(tokenA, tokenB common.Address, now uint64) (*State, error) {
	if tokenA == (common.Address{}) || tokenB == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if tokenA == tokenB {
		return nil, ErrIdenticalTokens
	}
	return &State{
		TokenA:           tokenA,
		TokenB:           tokenB,
		ReserveA:         new(uint256.Int),
		ReserveB:         new(uint256.Int),
		PriceCumulativeA: new(uint256.Int),
		PriceCumulativeB: new(uint256.Int),
		LastSync:         now,
		KLast:            new(uint256.Int),
	}, nil
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	return &State{
		TokenA:           s.TokenA,
		TokenB:           s.TokenB,
		ReserveA:         s.ReserveA.Clone(),
		ReserveB:         s.ReserveB.Clone(),
		PriceCumulativeA: s.PriceCumulativeA.Clone(),
		PriceCumulativeB: s.PriceCumulativeB.Clone(),
		LastSync:         s.LastSync,
		KLast:            s.KLast.Clone(),
	}
}

// sync records fresh balances as reserves, first folding the time elapsed
// since the last update into the price accumulators.
func (s *State) sync(balanceA, balanceB *uint256.Int, now uint64) error {
	if balanceA.Gt(MaxReserve) || balanceB.Gt(MaxReserve) {
		return &ArithmeticError{Op: "reserve overflow"}
	}

	var elapsed uint64
	if now > s.LastSync {
		elapsed = now - s.LastSync
	}

	cumA, cumB := s.PriceCumulativeA, s.PriceCumulativeB
	if elapsed > 0 && !s.ReserveA.IsZero() && !s.ReserveB.IsZero() {
		c := &calc{}
		dt := uint256.NewInt(elapsed)
		priceA := c.div(c.lsh(s.ReserveB, 112), s.ReserveA)
		priceB := c.div(c.lsh(s.ReserveA, 112), s.ReserveB)
		cumA = c.add(s.PriceCumulativeA, c.mul(priceA, dt))
		cumB = c.add(s.PriceCumulativeB, c.mul(priceB, dt))
		if c.err != nil {
			return c.err
		}
	}

	s.PriceCumulativeA = cumA
	s.PriceCumulativeB = cumB
	s.ReserveA = balanceA.Clone()
	s.ReserveB = balanceB.Clone()
	s.LastSync = now
	return nil
}

func (s *State) product() (*uint256.Int, error) {
	c := &calc{}
	k := c.mul(s.ReserveA, s.ReserveB)
	return k, c.err
}
