package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityZap/internal/engine"
	"liquidityZap/internal/model"
	"liquidityZap/internal/observability"
	"liquidityZap/internal/registry"
	"liquidityZap/internal/storage"
	"liquidityZap/internal/storage/postgres"
)

// runDemo seeds an in-memory ledger, runs all three provisioning operations
// for the same recipient, mutates the resulting entity's health, and
// optionally persists the registry to Postgres.
func runDemo(cmd *cobra.Command, _ []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	promReg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promReg)
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
		logger.Info("metrics listening", zap.String("addr", addr))
	}

	out, _ := cmd.Flags().GetString("out")
	sink := storage.NewJsonlSink(out)

	w, err := buildWorld(cmd, metrics, sink, logger)
	if err != nil {
		return err
	}

	snapPath, _ := cmd.Flags().GetString("snapshot")
	snapshots := registry.NewSnapshotStore(snapPath, snapPath != "")
	if snap, found, err := snapshots.Load(); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	} else if found {
		if err := w.registry.Restore(snap); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		logger.Info("registry restored", zap.Int("entities", w.registry.Len()))
	}

	rawAmount, _ := cmd.Flags().GetString("amount")
	amount, ok := new(big.Int).SetString(rawAmount, 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("invalid amount %q", rawAmount)
	}

	// Floors from the engine's own quote, with slack for price impact.
	q0, q1, err := w.engine.Quote(amount)
	if err != nil {
		return err
	}
	min0 := scaleDown(q0, 95)
	min1 := scaleDown(q1, 95)
	logger.Info("quote", zap.String("out0", q0.String()), zap.String("out1", q1.String()))

	res, err := w.engine.ZapNative(engine.ZapNativeParams{
		AmountIn:  amount,
		MinOut0:   min0,
		MinOut1:   min1,
		Payer:     payerAddr,
		Recipient: recipientAddr,
		Salt:      saltNow(),
	})
	if err != nil {
		return fmt.Errorf("zap native: %w", err)
	}
	logger.Info("zap native done",
		zap.String("liquidity", res.Liquidity.String()),
		zap.String("position_ref", res.PositionRef.Hex()),
	)

	pairAmt := scaleDown(amount, 40)
	res, err = w.engine.ProvidePair(engine.ProvidePairParams{
		Amount0:   pairAmt,
		Amount1:   pairAmt,
		TickLower: -6000,
		TickUpper: 6000,
		Payer:     payerAddr,
		Recipient: recipientAddr,
		Salt:      saltNow(),
	})
	if err != nil {
		return fmt.Errorf("provide pair: %w", err)
	}
	logger.Info("provide pair done",
		zap.String("liquidity", res.Liquidity.String()),
		zap.String("position_ref", res.PositionRef.Hex()),
	)

	res, err = w.engine.ProvideSingle(engine.ProvideSingleParams{
		Amount:       pairAmt,
		UseCurrency0: true,
		TickLower:    -6000,
		TickUpper:    6000,
		Payer:        payerAddr,
		Recipient:    recipientAddr,
		Salt:         saltNow(),
	})
	if err != nil {
		return fmt.Errorf("provide single: %w", err)
	}
	logger.Info("provide single done",
		zap.String("liquidity", res.Liquidity.String()),
		zap.String("position_ref", res.PositionRef.Hex()),
	)

	id := registry.DeriveID(recipientAddr)
	if err := w.registry.SetHealth(w.updater, id, 80); err != nil {
		return fmt.Errorf("set health: %w", err)
	}
	ent, _ := w.registry.Get(id)
	logger.Info("entity",
		zap.Uint64("id", uint64(ent.ID)),
		zap.String("owner", ent.Owner.Hex()),
		zap.Uint8("health", ent.Health),
		zap.String("position_ref", ent.PositionRef.Hex()),
	)

	if err := snapshots.Save(w.registry.List()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if dsn, _ := cmd.Flags().GetString("pg-dsn"); dsn != "" {
		if err := persistEntities(cmd.Context(), dsn, w.registry.List()); err != nil {
			return fmt.Errorf("persist entities: %w", err)
		}
		logger.Info("entities persisted", zap.Int("count", w.registry.Len()))
	}
	return nil
}

func persistEntities(ctx context.Context, dsn string, entities []registry.Entity) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	records := make([]model.EntityRecord, 0, len(entities))
	for _, ent := range entities {
		records = append(records, ent.Record())
	}
	return store.UpsertEntities(ctx, records)
}

func scaleDown(v *big.Int, pct int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(pct))
	return out.Quo(out, big.NewInt(100))
}

func saltNow() common.Hash {
	return common.BigToHash(big.NewInt(time.Now().UnixNano()))
}
