package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PAIR"

// PoolConfig identifies the simulated pair.
type PoolConfig struct {
	TokenA    string
	TokenB    string
	Pool      string
	Factory   string
	FeeTo     string
	StartTime uint64
}

// Config holds configuration for the run command, loaded from flags, env, or
// config file.
type Config struct {
	PoolConfig
	ChainID           uint64
	Scenario          string
	Out               string
	PGDSN             string
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	CalleeRPC         string
	CalleeTimeout     time.Duration
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := newViper()
	v.SetDefault("chain-id", uint64(31337))
	v.SetDefault("batch-size", uint64(100))
	v.SetDefault("out", "./data/logs.jsonl")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("callee-timeout", 5*time.Second)

	if err := read(v, cfgFile, flags); err != nil {
		return Config{}, err
	}

	pool, err := poolConfig(v)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		PoolConfig:        pool,
		ChainID:           v.GetUint64("chain-id"),
		Scenario:          v.GetString("scenario"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		BatchSize:         v.GetUint64("batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		CalleeRPC:         v.GetString("callee-rpc"),
		CalleeTimeout:     v.GetDuration("callee-timeout"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("log-level", "info")
	return v
}

// read binds flags and reads cfgFile, or ./config.* when present.
func read(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func poolConfig(v *viper.Viper) (PoolConfig, error) {
	start, err := ParseTimestamp(v.GetString("start-time"))
	if err != nil {
		return PoolConfig{}, fmt.Errorf("invalid start-time: %w", err)
	}
	return PoolConfig{
		TokenA:    v.GetString("token-a"),
		TokenB:    v.GetString("token-b"),
		Pool:      v.GetString("pool"),
		Factory:   v.GetString("factory"),
		FeeTo:     v.GetString("fee-to"),
		StartTime: start,
	}, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("timestamp before unix epoch: %s", input)
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
