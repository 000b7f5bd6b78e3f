package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pairEngine/internal/amm"
	"pairEngine/internal/callee"
	"pairEngine/internal/config"
	"pairEngine/internal/metrics"
	"pairEngine/internal/replay"
	"pairEngine/internal/rpcapi"
)

const shutdownTimeout = 5 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	poolMetrics, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	envCfg, err := envConfig(cfg.PoolConfig, logger)
	if err != nil {
		return err
	}
	envCfg.Clock = amm.SystemClock
	if envCfg.StartTime == 0 {
		envCfg.StartTime = amm.SystemClock()
	}
	envCfg.Sinks = []amm.EventSink{poolMetrics.Sink()}
	envCfg.Observer = poolMetrics
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
	poolMetrics.TrackSupply(env.Pool.TotalSupply)

	api, err := rpcapi.NewPairAPI(env, logger)
	if err != nil {
		return err
	}
	rpcServer := gethrpc.NewServer()
	defer rpcServer.Stop()
	if err := rpcapi.Register(rpcServer, api); err != nil {
		return fmt.Errorf("register rpc api: %w", err)
	}

	servers := []*http.Server{{
		Addr:              cfg.Listen,
		Handler:           rpcServer,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.String("metrics_listen", cfg.MetricsListen),
		zap.String("pool", env.Pool.Address().Hex()),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	logger.Info("serve stopped", zap.Error(err))
	return err
}
