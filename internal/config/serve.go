package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ServeConfig holds configuration for the serve command.
type ServeConfig struct {
	PoolConfig
	Listen        string
	MetricsListen string
	CalleeRPC     string
	CalleeTimeout time.Duration
	LogLevel      string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v := newViper()
	v.SetDefault("listen", "127.0.0.1:8545")
	v.SetDefault("metrics-listen", "127.0.0.1:9100")
	v.SetDefault("callee-timeout", 5*time.Second)

	if err := read(v, cfgFile, flags); err != nil {
		return ServeConfig{}, err
	}

	pool, err := poolConfig(v)
	if err != nil {
		return ServeConfig{}, err
	}
	return ServeConfig{
		PoolConfig:    pool,
		Listen:        v.GetString("listen"),
		MetricsListen: v.GetString("metrics-listen"),
		CalleeRPC:     v.GetString("callee-rpc"),
		CalleeTimeout: v.GetDuration("callee-timeout"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}
