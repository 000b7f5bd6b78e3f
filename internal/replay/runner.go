package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/aggregate"
	"pairEngine/internal/amm"
	"pairEngine/internal/dex"
	"pairEngine/internal/model"
	"pairEngine/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	// Scenario names the run in checkpoints and the progress store.
	Scenario          string
	ChainID           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// ProgressStore persists the last persisted step per scenario.
type ProgressStore interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, seq uint64) error
}

// ReserveStore records pool state after each step.
type ReserveStore interface {
	SaveReserves(ctx context.Context, snapshots []model.ReserveSnapshot) error
}

// Result summarizes a replay.
type Result struct {
	Steps    int
	Applied  int
	Failed   int
	Replayed int
	Events   int
	Totals   *aggregate.Accumulator
}

// Runner applies scenario steps to a pool and persists the emitted events as
// logs. Steps at or before the resume point are re-applied to rebuild state
// but not persisted again.
type Runner struct {
	cfg        RunConfig
	env        *Env
	encoder    *dex.Encoder
	storage    storage.Storage
	progress   ProgressStore
	reserves   ReserveStore
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, env *Env, storageSink storage.Storage, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	encoder, err := dex.NewEncoder(cfg.ChainID)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:        cfg,
		env:        env,
		encoder:    encoder,
		storage:    storageSink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}, nil
}

// SetProgressStore makes the runner resume from and report to store.
func (r *Runner) SetProgressStore(store ProgressStore) {
	r.progress = store
}

// SetReserveStore makes the runner record a reserve snapshot per step.
func (r *Runner) SetReserveStore(store ReserveStore) {
	r.reserves = store
}

// Run executes the steps in batches.
func (r *Runner) Run(ctx context.Context, steps []Step) (Result, error) {
	res := Result{Steps: len(steps)}
	if r.env == nil || r.env.Pool == nil {
		return res, fmt.Errorf("replay env is nil")
	}
	res.Totals = aggregate.NewAccumulator(r.env.Pool.Address().Hex())
	if r.storage == nil {
		return res, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return res, fmt.Errorf("batch size must be greater than zero")
	}
	if len(steps) == 0 {
		r.logger.Info("nothing to replay", zap.String("scenario", r.cfg.Scenario))
		return res, nil
	}

	resume, err := r.resumePoint(ctx)
	if err != nil {
		return res, err
	}
	if resume > 0 {
		r.logger.Info("resume from checkpoint", zap.Uint64("last_applied", resume))
	}

	ranges, err := SplitRange(1, uint64(len(steps)), r.cfg.BatchSize)
	if err != nil {
		return res, err
	}

	for _, stepRange := range ranges {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		var records []model.LogRecord
		var snapshots []model.ReserveSnapshot
		for seq := stepRange.From; seq <= stepRange.To; seq++ {
			step := steps[seq-1]
			events, err := r.applyStep(ctx, step)
			if err != nil {
				if amm.IsFatal(err) {
					r.logger.Error("step aborted replay", zap.Uint64("seq", seq), zap.String("op", step.Op), zap.Error(err))
					return res, fmt.Errorf("step %d (%s): %w", seq, step.Op, err)
				}
				res.Failed++
				r.logger.Warn("step failed", zap.Uint64("seq", seq), zap.String("op", step.Op), zap.Error(err))
				continue
			}
			res.Applied++
			res.Totals.AddEvents(events)

			if seq <= resume {
				res.Replayed++
				continue
			}
			if len(events) == 0 {
				continue
			}
			res.Events += len(events)
			logs, err := r.encoder.Encode(seq, events, time.Now())
			if err != nil {
				return res, err
			}
			records = append(records, logs...)
			snapshots = append(snapshots, r.snapshot(seq))
		}

		if stepRange.To <= resume {
			continue
		}
		if err := r.persist(ctx, records, snapshots); err != nil {
			return res, err
		}
		if err := r.saveProgress(ctx, stepRange.To); err != nil {
			return res, err
		}

		r.logger.Info("batch complete", zap.Int("logs", len(records)), zap.Uint64("from", stepRange.From), zap.Uint64("to", stepRange.To))
	}

	return res, nil
}

func (r *Runner) applyStep(ctx context.Context, step Step) ([]amm.Event, error) {
	args, err := step.args()
	if err != nil {
		return nil, err
	}
	r.env.Events.Drain()
	if step.Advance > 0 {
		r.env.Clock.Advance(step.Advance)
	}
	r.env.setRepayment(args.repayToken, args.repayAmount)
	defer r.env.setRepayment(common.Address{}, nil)

	if err := r.apply(ctx, step.Op, args); err != nil {
		return nil, err
	}
	return r.env.Events.Drain(), nil
}

func (r *Runner) apply(ctx context.Context, op string, a stepArgs) error {
	pool, ledger := r.env.Pool, r.env.Ledger
	var err error
	switch op {
	case OpFund:
		err = ledger.Mint(a.token, a.to, a.amount)
	case OpTransfer:
		err = ledger.Transfer(a.token, a.sender, a.to, a.amount)
	case OpDeposit:
		_, err = pool.Deposit(a.sender, a.amountA, a.amountB, a.to)
	case OpProvide:
		_, err = pool.ProvideLiquidity(a.sender, a.to)
	case OpWithdraw:
		_, _, err = pool.WithdrawLiquidity(a.sender, a.to)
	case OpRedeem:
		_, _, err = pool.Redeem(a.sender, a.shares, a.to)
	case OpSwap:
		err = pool.Swap(ctx, a.sender, a.amountOutA, a.amountOutB, a.to, a.data)
	case OpSwapExactIn:
		var minOut *uint256.Int
		if a.hasMinOut {
			minOut = a.minOut
		}
		_, err = pool.SwapExactIn(ctx, a.sender, a.tokenIn, a.amountIn, minOut, a.to)
	case OpSkim:
		err = pool.Skim(a.to)
	case OpSync:
		err = pool.Sync()
	case OpAdvance:
	default:
		err = fmt.Errorf("unknown op %q", op)
	}
	return err
}

func (r *Runner) snapshot(seq uint64) model.ReserveSnapshot {
	state := r.env.Pool.State()
	return model.ReserveSnapshot{
		ChainID:          r.cfg.ChainID,
		PoolAddress:      r.env.Pool.Address().Hex(),
		Seq:              seq,
		ReserveA:         state.ReserveA.ToBig().String(),
		ReserveB:         state.ReserveB.ToBig().String(),
		TotalSupply:      r.env.Pool.TotalSupply().ToBig().String(),
		PriceCumulativeA: state.PriceCumulativeA.ToBig().String(),
		PriceCumulativeB: state.PriceCumulativeB.ToBig().String(),
		KLast:            state.KLast.ToBig().String(),
		LastSync:         time.Unix(int64(state.LastSync), 0).UTC(),
	}
}

func (r *Runner) resumePoint(ctx context.Context) (uint64, error) {
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return 0, err
	}
	if ok && cp.Scenario == r.cfg.Scenario {
		return cp.LastApplied, nil
	}
	if r.progress == nil {
		return 0, nil
	}
	seq, ok, err := r.progress.LoadState(ctx, r.cfg.Scenario)
	if err != nil {
		return 0, fmt.Errorf("load progress: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return seq, nil
}

func (r *Runner) persist(ctx context.Context, records []model.LogRecord, snapshots []model.ReserveSnapshot) error {
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		err := r.storage.PutLogBatch(ctx, records)
		if err != nil {
			r.logger.Warn("store logs failed", zap.Error(err), zap.Int("logs", len(records)))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("store logs: %w", err)
	}

	if r.reserves == nil || len(snapshots) == 0 {
		return nil
	}
	err = withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		err := r.reserves.SaveReserves(ctx, snapshots)
		if err != nil {
			r.logger.Warn("store reserves failed", zap.Error(err), zap.Int("snapshots", len(snapshots)))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("store reserves: %w", err)
	}
	return nil
}

func (r *Runner) saveProgress(ctx context.Context, seq uint64) error {
	if err := r.checkpoint.Save(r.cfg.Scenario, seq); err != nil {
		return err
	}
	if r.progress == nil {
		return nil
	}
	if err := r.progress.SaveState(ctx, r.cfg.Scenario, seq); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
