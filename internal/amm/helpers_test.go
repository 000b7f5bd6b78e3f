package amm

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"pairEngine/internal/ledger"
)

var (
	tokenA   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	poolAddr = common.HexToAddress("0x9999999999999999999999999999999999999999")
	alice    = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob      = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	carol    = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	treasury = common.HexToAddress("0xfeefeefeefeefeefeefeefeefeefeefeefeefeef")
)

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

type fixture struct {
	pool   *Pool
	ledger *ledger.Memory
	events *EventBuffer
	now    uint64
}

func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		ledger: ledger.NewMemory(),
		events: &EventBuffer{},
		now:    1_700_000_000,
	}
	state, err := NewState(tokenA, tokenB, f.now)
	require.NoError(t, err)

	cfg := Config{
		Address: poolAddr,
		Ledger:  f.ledger,
		Clock:   func() uint64 { return f.now },
		Sink:    f.events,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.pool, err = NewPool(state, cfg)
	require.NoError(t, err)
	return f
}

func (f *fixture) fund(t *testing.T, token, holder common.Address, amount uint64) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(token, holder, u(amount)))
}

// seed funds alice and deposits the given amounts as the first liquidity.
func (f *fixture) seed(t *testing.T, amountA, amountB uint64) *uint256.Int {
	t.Helper()
	f.fund(t, tokenA, alice, amountA)
	f.fund(t, tokenB, alice, amountB)
	shares, err := f.pool.Deposit(alice, u(amountA), u(amountB), alice)
	require.NoError(t, err)
	f.events.Drain()
	return shares
}

func (f *fixture) balance(token, holder common.Address) uint64 {
	return f.ledger.BalanceOf(token, holder).Uint64()
}

func (f *fixture) reserves() (uint64, uint64) {
	a, b, _ := f.pool.GetReserves()
	return a.Uint64(), b.Uint64()
}

type calleeFunc func(ctx context.Context, recipient, sender common.Address, amountOutA, amountOutB *uint256.Int, data []byte) error

func (f calleeFunc) Notify(ctx context.Context, recipient, sender common.Address, amountOutA, amountOutB *uint256.Int, data []byte) error {
	return f(ctx, recipient, sender, amountOutA, amountOutB, data)
}

type feeSwitch struct {
	to common.Address
}

func (s *feeSwitch) FeeTo() common.Address {
	return s.to
}

type opRecord struct {
	op  string
	err error
}

type recordingObserver struct {
	ops []opRecord
}

func (o *recordingObserver) ObserveOperation(op string, err error) {
	o.ops = append(o.ops, opRecord{op: op, err: err})
}

func eventKinds(events []Event) []EventKind {
	kinds := make([]EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}
