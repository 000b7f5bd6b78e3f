package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pairEngine/internal/callee"
	"pairEngine/internal/config"
	"pairEngine/internal/model"
	"pairEngine/internal/replay"
	"pairEngine/internal/storage"
	"pairEngine/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "pairsim",
		Short:        "Constant-product pair simulator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a scenario of pool operations",
		RunE:  runScenario,
	}

	addPoolFlags(runCmd)
	runCmd.Flags().Uint64("chain-id", 31337, "chain id stamped on emitted logs")
	runCmd.Flags().String("scenario", "", "scenario JSONL path")
	runCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	runCmd.Flags().Uint64("batch-size", 100, "steps per batch")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("callee-rpc", "", "optional JSON-RPC endpoint for flash-swap callbacks")
	runCmd.Flags().Duration("callee-timeout", 5*time.Second, "flash-swap callback timeout")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode emitted logs into typed events",
		RunE:  runDecode,
	}

	addPoolFlags(decodeCmd)
	decodeCmd.Flags().String("in", "", "input logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pool over JSON-RPC",
		RunE:  runServe,
	}

	addPoolFlags(serveCmd)
	serveCmd.Flags().String("listen", "127.0.0.1:8545", "JSON-RPC listen address")
	serveCmd.Flags().String("metrics-listen", "127.0.0.1:9100", "metrics listen address, empty disables")
	serveCmd.Flags().String("callee-rpc", "", "optional JSON-RPC endpoint for flash-swap callbacks")
	serveCmd.Flags().Duration("callee-timeout", 5*time.Second, "flash-swap callback timeout")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().String("token-a", "", "first token address")
	cmd.Flags().String("token-b", "", "second token address")
	cmd.Flags().String("pool", "", "pool address, derived from factory when empty")
	cmd.Flags().String("factory", "", "factory address used to derive the pool address")
	cmd.Flags().String("fee-to", "", "protocol fee recipient, empty turns the fee off")
	cmd.Flags().String("start-time", "", "pool start time (unix seconds or RFC3339)")
}

func runScenario(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	steps, err := replay.LoadScenario(cfg.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envCfg, err := envConfig(cfg.PoolConfig, logger)
	if err != nil {
		return err
	}
	if cfg.CalleeRPC != "" {
		rpcCallee, err := callee.Dial(ctx, cfg.CalleeRPC, cfg.CalleeTimeout)
		if err != nil {
			return fmt.Errorf("connect callee rpc: %w", err)
		}
		defer rpcCallee.Close()
		envCfg.Callee = rpcCallee
	}
	env, err := replay.NewEnv(envCfg)
	if err != nil {
		return err
	}

	sinks := storage.Multi{storage.NewJsonlStorage(cfg.Out)}
	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		tokenA, tokenB := env.Pool.Tokens()
		if err := store.UpsertPools(ctx, []model.Pool{{
			ChainID: cfg.ChainID,
			Address: env.Pool.Address().Hex(),
			TokenA:  tokenA.Hex(),
			TokenB:  tokenB.Hex(),
			Factory: env.Factory.Hex(),
		}}); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	runner, err := replay.NewRunner(replay.RunConfig{
		Scenario:          filepath.Base(cfg.Scenario),
		ChainID:           cfg.ChainID,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, env, sinks, logger)
	if err != nil {
		return err
	}
	if store != nil {
		runner.SetProgressStore(store)
		runner.SetReserveStore(store)
	}

	logger.Info("replay start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("steps", len(steps)),
		zap.String("pool", env.Pool.Address().Hex()),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", store != nil),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	res, err := runner.Run(ctx, steps)
	if err != nil {
		return err
	}

	reserveA, reserveB, _ := env.Pool.GetReserves()
	logger.Info("replay complete",
		zap.Int("applied", res.Applied),
		zap.Int("failed", res.Failed),
		zap.Int("replayed", res.Replayed),
		zap.Int("events", res.Events),
		zap.Stringer("reserve_a", reserveA.ToBig()),
		zap.Stringer("reserve_b", reserveB.ToBig()),
		zap.Int("share_holders", len(env.Ledger.Holders(env.Pool.Address()))),
		zap.Any("totals", res.Totals.Summary(18, 18)),
	)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
