package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Asset0      string
	Asset1      string
	ConvFee     uint32
	ConvSpacing int32
	ProvFee     uint32
	ProvSpacing int32
	HookAddress string
	TickOffset  int32
	ChainID     uint64
	Updater     string
	Out         string
	PgDSN       string
	MetricsAddr string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ZAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("conv-fee", uint32(3000))
	v.SetDefault("conv-spacing", int32(60))
	v.SetDefault("prov-fee", uint32(500))
	v.SetDefault("prov-spacing", int32(10))
	v.SetDefault("tick-offset", int32(600))
	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("out", "./data/hatches.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Asset0:      v.GetString("asset0"),
		Asset1:      v.GetString("asset1"),
		ConvFee:     v.GetUint32("conv-fee"),
		ConvSpacing: v.GetInt32("conv-spacing"),
		ProvFee:     v.GetUint32("prov-fee"),
		ProvSpacing: v.GetInt32("prov-spacing"),
		HookAddress: v.GetString("hook-address"),
		TickOffset:  v.GetInt32("tick-offset"),
		ChainID:     v.GetUint64("chain-id"),
		Updater:     v.GetString("updater"),
		Out:         v.GetString("out"),
		PgDSN:       v.GetString("pg-dsn"),
		MetricsAddr: v.GetString("metrics-addr"),
		LogLevel:    v.GetString("log-level"),
	}

	return cfg, nil
}
