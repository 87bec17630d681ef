package main

import (
	"fmt"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityZap/internal/engine"
	"liquidityZap/internal/observability"
	"liquidityZap/internal/storage"
)

// runZap executes the convert-then-provide operation once. Floors default to
// 95% of the engine's own quote unless given explicitly.
func runZap(cmd *cobra.Command, _ []string) error {
	w, logger, err := opWorld(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	amount, err := flagAmount(cmd, "amount")
	if err != nil {
		return err
	}

	min0, err := flagAmountOptional(cmd, "min-out0")
	if err != nil {
		return err
	}
	min1, err := flagAmountOptional(cmd, "min-out1")
	if err != nil {
		return err
	}
	if min0 == nil || min1 == nil {
		q0, q1, err := w.engine.Quote(amount)
		if err != nil {
			return err
		}
		if min0 == nil {
			min0 = scaleDown(q0, 95)
		}
		if min1 == nil {
			min1 = scaleDown(q1, 95)
		}
	}

	res, err := w.engine.ZapNative(engine.ZapNativeParams{
		AmountIn:  amount,
		MinOut0:   min0,
		MinOut1:   min1,
		Payer:     payerAddr,
		Recipient: recipientAddr,
		Salt:      saltNow(),
	})
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

// runProvide executes the provide-from-two-assets operation once.
func runProvide(cmd *cobra.Command, _ []string) error {
	w, logger, err := opWorld(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	amount0, err := flagAmount(cmd, "amount0")
	if err != nil {
		return err
	}
	amount1, err := flagAmount(cmd, "amount1")
	if err != nil {
		return err
	}
	lower, _ := cmd.Flags().GetInt32("tick-lower")
	upper, _ := cmd.Flags().GetInt32("tick-upper")

	res, err := w.engine.ProvidePair(engine.ProvidePairParams{
		Amount0:   amount0,
		Amount1:   amount1,
		TickLower: lower,
		TickUpper: upper,
		Payer:     payerAddr,
		Recipient: recipientAddr,
		Salt:      saltNow(),
	})
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

// runProvideSingle executes the provide-from-one-asset operation once.
func runProvideSingle(cmd *cobra.Command, _ []string) error {
	w, logger, err := opWorld(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	amount, err := flagAmount(cmd, "amount")
	if err != nil {
		return err
	}
	useCurrency0, _ := cmd.Flags().GetBool("use-currency0")
	lower, _ := cmd.Flags().GetInt32("tick-lower")
	upper, _ := cmd.Flags().GetInt32("tick-upper")

	res, err := w.engine.ProvideSingle(engine.ProvideSingleParams{
		Amount:       amount,
		UseCurrency0: useCurrency0,
		TickLower:    lower,
		TickUpper:    upper,
		Payer:        payerAddr,
		Recipient:    recipientAddr,
		Salt:         saltNow(),
	})
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func opWorld(cmd *cobra.Command) (*world, *zap.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return nil, nil, err
	}

	var sink storage.Sink
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		sink = storage.NewJsonlSink(out)
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	w, err := buildWorld(cmd, metrics, sink, logger)
	if err != nil {
		return nil, nil, err
	}
	return w, logger, nil
}

func flagAmount(cmd *cobra.Command, name string) (*big.Int, error) {
	raw, _ := cmd.Flags().GetString(name)
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func flagAmountOptional(cmd *cobra.Command, name string) (*big.Int, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func printResult(res engine.Result) {
	fmt.Printf("liquidity=%s position_ref=%s\n", res.Liquidity, res.PositionRef.Hex())
}
