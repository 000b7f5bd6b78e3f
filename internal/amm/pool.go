package amm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// BurnAddress holds the permanently locked minimum liquidity.
var BurnAddress = common.Address{}

// Config wires a pool to its collaborators.
type Config struct {
	// Address identifies the pool on the ledger and is its share token.
	Address   common.Address
	Ledger    Ledger
	Callee    Callee
	FeeSwitch FeeSwitch
	Clock     Clock
	Sink      EventSink
	Observer  Observer
	Logger    *zap.Logger
}

// Pool is a constant-product pool over two tokens. Every operation runs under
// the pool lock; a call that arrives while the lock is held fails with
// ErrReentrancy.
type Pool struct {
	addr      common.Address
	ledger    Ledger
	callee    Callee
	feeSwitch FeeSwitch
	clock     Clock
	sink      EventSink
	observer  Observer
	logger    *zap.Logger

	mu     sync.Mutex
	locked bool

	stateMu sync.RWMutex
	state   *State
}

// NewPool builds a pool around an existing state.
func NewPool(state *State, cfg Config) (*Pool, error) {
	if state == nil {
		return nil, fmt.Errorf("state is nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("pool address: %w", ErrZeroAddress)
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pool{
		addr:      cfg.Address,
		ledger:    cfg.Ledger,
		callee:    cfg.Callee,
		feeSwitch: cfg.FeeSwitch,
		clock:     cfg.Clock,
		sink:      cfg.Sink,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
		state:     state.Clone(),
	}, nil
}

// Address returns the pool address.
func (p *Pool) Address() common.Address {
	return p.addr
}

// Tokens returns the two underlying token addresses.
func (p *Pool) Tokens() (common.Address, common.Address) {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state.TokenA, p.state.TokenB
}

// GetReserves returns the recorded reserves and the time they were synced.
func (p *Pool) GetReserves() (*uint256.Int, *uint256.Int, uint64) {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state.ReserveA.Clone(), p.state.ReserveB.Clone(), p.state.LastSync
}

// State returns a copy of the committed pool state.
func (p *Pool) State() *State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state.Clone()
}

// TotalSupply returns the outstanding liquidity shares.
func (p *Pool) TotalSupply() *uint256.Int {
	return p.ledger.TotalSupply(p.addr)
}

// ProvideLiquidity mints shares to `to` for the tokens sent to the pool since
// the last sync.
func (p *Pool) ProvideLiquidity(sender, to common.Address) (*uint256.Int, error) {
	var shares *uint256.Int
	err := p.run("mint", func(t *txn) error {
		var err error
		shares, err = t.mint(sender, to)
		return err
	})
	return shares, err
}

// WithdrawLiquidity burns the shares held by the pool itself and pays out the
// proportional token amounts to `to`.
func (p *Pool) WithdrawLiquidity(sender, to common.Address) (*uint256.Int, *uint256.Int, error) {
	var amountA, amountB *uint256.Int
	err := p.run("burn", func(t *txn) error {
		var err error
		amountA, amountB, err = t.burn(sender, to)
		return err
	})
	return amountA, amountB, err
}

// Deposit moves amountA and amountB from sender into the pool and mints the
// resulting shares to `to`.
func (p *Pool) Deposit(sender common.Address, amountA, amountB *uint256.Int, to common.Address) (*uint256.Int, error) {
	var shares *uint256.Int
	err := p.run("deposit", func(t *txn) error {
		if err := t.pull(t.state.TokenA, sender, amountA); err != nil {
			return err
		}
		if err := t.pull(t.state.TokenB, sender, amountB); err != nil {
			return err
		}
		var err error
		shares, err = t.mint(sender, to)
		return err
	})
	return shares, err
}

// Redeem burns `shares` of the sender's holding and pays out to `to`.
func (p *Pool) Redeem(sender common.Address, shares *uint256.Int, to common.Address) (*uint256.Int, *uint256.Int, error) {
	var amountA, amountB *uint256.Int
	err := p.run("redeem", func(t *txn) error {
		if err := t.pull(p.addr, sender, shares); err != nil {
			return err
		}
		var err error
		amountA, amountB, err = t.burn(sender, to)
		return err
	})
	return amountA, amountB, err
}

// Swap sends the requested outputs to `to` and verifies that enough input
// arrived to keep the fee-adjusted invariant. A non-empty data triggers the
// flash-swap callback on `to`.
func (p *Pool) Swap(ctx context.Context, sender common.Address, amountOutA, amountOutB *uint256.Int, to common.Address, data []byte) error {
	return p.run("swap", func(t *txn) error {
		_, _, err := t.swap(ctx, sender, amountOutA, amountOutB, to, data)
		return err
	})
}

// SwapExactIn moves amountIn of tokenIn from sender into the pool and swaps it
// for the quoted amount of the other token.
func (p *Pool) SwapExactIn(ctx context.Context, sender, tokenIn common.Address, amountIn, minOut *uint256.Int, to common.Address) (*uint256.Int, error) {
	var amountOut *uint256.Int
	err := p.run("swap_exact_in", func(t *txn) error {
		s := t.state
		outA, outB := new(uint256.Int), new(uint256.Int)
		var err error
		switch tokenIn {
		case s.TokenA:
			amountOut, err = GetAmountOut(amountIn, s.ReserveA, s.ReserveB)
			outB = amountOut
		case s.TokenB:
			amountOut, err = GetAmountOut(amountIn, s.ReserveB, s.ReserveA)
			outA = amountOut
		default:
			return fmt.Errorf("%w: %s", ErrInvalidToken, tokenIn.Hex())
		}
		if err != nil {
			return err
		}
		if minOut != nil && amountOut.Lt(minOut) {
			return fmt.Errorf("%w: quoted %s, minimum %s", ErrSlippage, amountOut.ToBig(), minOut.ToBig())
		}
		if err := t.pull(tokenIn, sender, amountIn); err != nil {
			return err
		}
		_, _, err = t.swap(ctx, sender, outA, outB, to, nil)
		return err
	})
	return amountOut, err
}

// Skim sends any balance above the recorded reserves to `to`.
func (p *Pool) Skim(to common.Address) error {
	return p.run("skim", func(t *txn) error {
		s := t.state
		balA, balB := t.balances()
		c := &calc{}
		excessA := c.sub(balA, s.ReserveA)
		excessB := c.sub(balB, s.ReserveB)
		if c.err != nil {
			return c.err
		}
		if err := t.push(s.TokenA, to, excessA); err != nil {
			return err
		}
		return t.push(s.TokenB, to, excessB)
	})
}

// Sync forces the reserves to match the observed balances.
func (p *Pool) Sync() error {
	return p.run("sync", func(t *txn) error {
		balA, balB := t.balances()
		return t.sync(balA, balB)
	})
}

func (p *Pool) lock() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locked {
		return ErrReentrancy
	}
	p.locked = true
	return nil
}

func (p *Pool) unlock() {
	p.mu.Lock()
	p.locked = false
	p.mu.Unlock()
}

// run executes fn against a working copy of the state inside a ledger
// snapshot. On success the copy is committed and the buffered events are
// emitted; on failure the ledger is reverted and nothing is emitted.
func (p *Pool) run(op string, fn func(t *txn) error) (err error) {
	defer func() {
		if p.observer != nil {
			p.observer.ObserveOperation(op, err)
		}
	}()

	if err := p.lock(); err != nil {
		p.logger.Debug("operation rejected", zap.String("op", op), zap.Error(err))
		return err
	}
	defer p.unlock()

	t := &txn{
		pool:  p,
		state: p.State(),
		now:   p.clock(),
	}
	snapshot := p.ledger.Snapshot()

	if err := guard(fn, t); err != nil {
		p.ledger.RevertToSnapshot(snapshot)
		if IsFatal(err) {
			p.logger.Error("operation aborted", zap.String("op", op), zap.Error(err))
		} else {
			p.logger.Debug("operation failed", zap.String("op", op), zap.Error(err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.sink.Emit(t.events); err != nil {
		p.ledger.RevertToSnapshot(snapshot)
		p.logger.Warn("emit events failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: emit events: %w", op, err)
	}

	p.ledger.DiscardSnapshot(snapshot)
	p.stateMu.Lock()
	p.state = t.state
	p.stateMu.Unlock()

	p.logger.Debug("operation committed",
		zap.String("op", op),
		zap.Stringer("reserve_a", t.state.ReserveA.ToBig()),
		zap.Stringer("reserve_b", t.state.ReserveB.ToBig()),
		zap.Int("events", len(t.events)),
	)
	return nil
}

// guard runs fn and turns a panic into a *PanicError so the caller can
// revert the snapshot. A callee is the usual source.
func guard(fn func(t *txn) error, t *txn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(t)
}

// txn is the working context of one pool operation.
type txn struct {
	pool   *Pool
	state  *State
	now    uint64
	events []Event
}

func (t *txn) emit(ev Event) {
	ev.Pool = t.pool.addr
	ev.Timestamp = t.now
	t.events = append(t.events, ev)
}

func (t *txn) balances() (*uint256.Int, *uint256.Int) {
	l := t.pool.ledger
	return l.BalanceOf(t.state.TokenA, t.pool.addr), l.BalanceOf(t.state.TokenB, t.pool.addr)
}

func (t *txn) sync(balanceA, balanceB *uint256.Int) error {
	if err := t.state.sync(balanceA, balanceB, t.now); err != nil {
		return err
	}
	t.emit(Event{
		Kind:     EventSync,
		ReserveA: t.state.ReserveA.Clone(),
		ReserveB: t.state.ReserveB.Clone(),
	})
	return nil
}

// push transfers amount of token from the pool to `to`.
func (t *txn) push(token, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if err := t.pool.ledger.Transfer(token, t.pool.addr, to, amount); err != nil {
		return fmt.Errorf("transfer %s to %s: %w", token.Hex(), to.Hex(), err)
	}
	return nil
}

// pull transfers amount of token from `from` into the pool.
func (t *txn) pull(token, from common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if err := t.pool.ledger.Transfer(token, from, t.pool.addr, amount); err != nil {
		return fmt.Errorf("transfer %s from %s: %w", token.Hex(), from.Hex(), err)
	}
	return nil
}
