package main

import (
	"fmt"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityZap/internal/observability"
)

// runQuote prices a native amount through both conversion pools of a freshly
// seeded ledger and prints the per-asset estimates.
func runQuote(cmd *cobra.Command, _ []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	w, err := buildWorld(cmd, metrics, nil, logger)
	if err != nil {
		return err
	}

	rawAmount, _ := cmd.Flags().GetString("amount")
	amount, ok := new(big.Int).SetString(rawAmount, 10)
	if !ok || amount.Sign() < 0 {
		return fmt.Errorf("invalid amount %q", rawAmount)
	}

	out0, out1, err := w.engine.Quote(amount)
	if err != nil {
		return err
	}

	logger.Info("quote",
		zap.String("amount_in", amount.String()),
		zap.String("out0", out0.String()),
		zap.String("out1", out1.String()),
	)
	fmt.Printf("amount_in=%s out0=%s out1=%s\n", amount, out0, out1)
	return nil
}
