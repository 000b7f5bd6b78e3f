package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairEngine/internal/config"
	"pairEngine/internal/replay"
)

// envConfig resolves the configured pair addresses.
func envConfig(cfg config.PoolConfig, logger *zap.Logger) (replay.EnvConfig, error) {
	if cfg.TokenA == "" || cfg.TokenB == "" {
		return replay.EnvConfig{}, fmt.Errorf("token-a and token-b are required")
	}
	tokenA, err := replay.ParseAddress(cfg.TokenA)
	if err != nil {
		return replay.EnvConfig{}, fmt.Errorf("token-a: %w", err)
	}
	tokenB, err := replay.ParseAddress(cfg.TokenB)
	if err != nil {
		return replay.EnvConfig{}, fmt.Errorf("token-b: %w", err)
	}
	pool, err := optionalAddress("pool", cfg.Pool)
	if err != nil {
		return replay.EnvConfig{}, err
	}
	factory, err := optionalAddress("factory", cfg.Factory)
	if err != nil {
		return replay.EnvConfig{}, err
	}
	feeTo, err := optionalAddress("fee-to", cfg.FeeTo)
	if err != nil {
		return replay.EnvConfig{}, err
	}
	if pool == (common.Address{}) && factory == (common.Address{}) {
		return replay.EnvConfig{}, fmt.Errorf("pool or factory is required")
	}
	return replay.EnvConfig{
		TokenA:    tokenA,
		TokenB:    tokenB,
		Pool:      pool,
		Factory:   factory,
		FeeTo:     feeTo,
		StartTime: cfg.StartTime,
		Logger:    logger,
	}, nil
}

func optionalAddress(field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	addr, err := replay.ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}
