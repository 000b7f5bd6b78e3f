package replay

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/amm"
	"pairEngine/internal/ledger"
)

// EnvConfig describes the simulated world a scenario runs against. Pool
// defaults to the address Factory would deploy the pair to. Callee, when set,
// is notified after a step's flash-swap repayment has been made. Clock
// replaces the manual clock, e.g. with amm.SystemClock for a live service.
type EnvConfig struct {
	TokenA    common.Address
	TokenB    common.Address
	Pool      common.Address
	Factory   common.Address
	FeeTo     common.Address
	StartTime uint64
	Callee    amm.Callee
	Clock     amm.Clock
	Sinks     []amm.EventSink
	Observer  amm.Observer
	Logger    *zap.Logger
}

// Env is a pool wired to an in-memory ledger and a manual clock.
type Env struct {
	Pool    *amm.Pool
	Ledger  *ledger.Memory
	Clock   *ManualClock
	Events  *amm.EventBuffer
	Factory common.Address

	repay repayment
}

// repayment is what a flash-swap recipient pays back during the callback.
type repayment struct {
	token  common.Address
	amount *uint256.Int
}

func NewEnv(cfg EnvConfig) (*Env, error) {
	state, err := amm.NewState(cfg.TokenA, cfg.TokenB, cfg.StartTime)
	if err != nil {
		return nil, fmt.Errorf("pool state: %w", err)
	}
	poolAddr := cfg.Pool
	if poolAddr == (common.Address{}) {
		poolAddr = amm.PairAddress(cfg.Factory, cfg.TokenA, cfg.TokenB)
	}

	env := &Env{
		Ledger:  ledger.NewMemory(),
		Clock:   NewManualClock(cfg.StartTime),
		Events:  &amm.EventBuffer{},
		Factory: cfg.Factory,
	}
	clock := amm.Clock(env.Clock.Now)
	if cfg.Clock != nil {
		clock = cfg.Clock
	}
	sinks := append([]amm.EventSink{env.Events}, cfg.Sinks...)
	env.Pool, err = amm.NewPool(state, amm.Config{
		Address:   poolAddr,
		Ledger:    env.Ledger,
		Callee:    &repayingCallee{env: env, next: cfg.Callee},
		FeeSwitch: amm.StaticFeeTo(cfg.FeeTo),
		Clock:     clock,
		Sink:      amm.MultiSink(sinks...),
		Observer:  cfg.Observer,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

func (e *Env) setRepayment(token common.Address, amount *uint256.Int) {
	e.repay = repayment{token: token, amount: amount}
}

// repayingCallee makes the swap recipient pay back the pending repayment
// before handing the callback on.
type repayingCallee struct {
	env  *Env
	next amm.Callee
}

func (c *repayingCallee) Notify(ctx context.Context, recipient, sender common.Address, amountOutA, amountOutB *uint256.Int, data []byte) error {
	repay := c.env.repay
	if repay.amount != nil && !repay.amount.IsZero() {
		if err := c.env.Ledger.Transfer(repay.token, recipient, c.env.Pool.Address(), repay.amount); err != nil {
			return fmt.Errorf("repay flash swap: %w", err)
		}
	}
	if c.next == nil {
		return nil
	}
	return c.next.Notify(ctx, recipient, sender, amountOutA, amountOutB, data)
}
