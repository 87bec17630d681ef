package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "zap",
		Short:        "Concentrated-liquidity zap engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run all three provisioning operations against a seeded ledger",
		RunE:  runDemo,
	}
	addWorldFlags(demoCmd)
	demoCmd.Flags().String("amount", "1000000000000000000", "native amount for the zap (wei)")
	demoCmd.Flags().String("pg-dsn", "", "Postgres DSN for entity persistence")
	demoCmd.Flags().String("out", "./data/hatches.jsonl", "hatch events JSONL path")
	demoCmd.Flags().String("metrics-addr", "", "Prometheus listen address (empty disables)")
	demoCmd.Flags().String("snapshot", "", "registry snapshot path (empty disables)")

	root.AddCommand(demoCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Estimate conversion outputs for a native amount",
		RunE:  runQuote,
	}
	addWorldFlags(quoteCmd)
	quoteCmd.Flags().String("amount", "1000000000000000000", "native amount to quote (wei)")

	root.AddCommand(quoteCmd)

	zapCmd := &cobra.Command{
		Use:   "zap",
		Short: "Convert a native amount and provide liquidity around the current tick",
		RunE:  runZap,
	}
	addWorldFlags(zapCmd)
	zapCmd.Flags().String("amount", "1000000000000000000", "native amount to zap (wei)")
	zapCmd.Flags().String("min-out0", "", "minimum realized output of asset0 (default: 95% of quote)")
	zapCmd.Flags().String("min-out1", "", "minimum realized output of asset1 (default: 95% of quote)")
	zapCmd.Flags().String("out", "", "hatch events JSONL path (empty disables)")

	root.AddCommand(zapCmd)

	provideCmd := &cobra.Command{
		Use:   "provide",
		Short: "Provide liquidity from exact amounts of both assets",
		RunE:  runProvide,
	}
	addWorldFlags(provideCmd)
	provideCmd.Flags().String("amount0", "1000000000000000000", "exact amount of asset0")
	provideCmd.Flags().String("amount1", "1000000000000000000", "exact amount of asset1")
	provideCmd.Flags().Int32("tick-lower", -6000, "lower tick bound")
	provideCmd.Flags().Int32("tick-upper", 6000, "upper tick bound")
	provideCmd.Flags().String("out", "", "hatch events JSONL path (empty disables)")

	root.AddCommand(provideCmd)

	provideSingleCmd := &cobra.Command{
		Use:   "provide-single",
		Short: "Provide liquidity from a single asset, converting half in-pool",
		RunE:  runProvideSingle,
	}
	addWorldFlags(provideSingleCmd)
	provideSingleCmd.Flags().String("amount", "1000000000000000000", "exact amount of the supplied asset")
	provideSingleCmd.Flags().Bool("use-currency0", true, "supply asset0 (false supplies asset1)")
	provideSingleCmd.Flags().Int32("tick-lower", -6000, "lower tick bound")
	provideSingleCmd.Flags().Int32("tick-upper", 6000, "upper tick bound")
	provideSingleCmd.Flags().String("out", "", "hatch events JSONL path (empty disables)")

	root.AddCommand(provideSingleCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addWorldFlags(cmd *cobra.Command) {
	cmd.Flags().String("asset0", "0x00000000000000000000000000000000000a0001", "first provisioning asset address")
	cmd.Flags().String("asset1", "0x00000000000000000000000000000000000a0002", "second provisioning asset address")
	cmd.Flags().Uint32("conv-fee", 3000, "conversion pool fee (hundredths of a bip)")
	cmd.Flags().Int32("conv-spacing", 60, "conversion pool tick spacing")
	cmd.Flags().Uint32("prov-fee", 500, "provisioning pool fee (hundredths of a bip)")
	cmd.Flags().Int32("prov-spacing", 10, "provisioning pool tick spacing")
	cmd.Flags().String("hook-address", "", "hook address bound on the provisioning pool")
	cmd.Flags().Int32("tick-offset", 600, "half-width of the auto-selected range (ticks)")
	cmd.Flags().Uint64("chain-id", 1, "origin chain id stamped on entities")
	cmd.Flags().String("updater", "", "trusted health updater address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
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
