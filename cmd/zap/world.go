package main

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityZap/internal/config"
	"liquidityZap/internal/engine"
	"liquidityZap/internal/hook"
	"liquidityZap/internal/ledger"
	"liquidityZap/internal/observability"
	"liquidityZap/internal/registry"
	"liquidityZap/internal/storage"
	"liquidityZap/internal/tickmath"
)

var (
	defaultHookAddr = common.HexToAddress("0x00000000000000000000000000000000005a4103")
	payerAddr       = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	recipientAddr   = common.HexToAddress("0x00000000000000000000000000000000000b0002")
	defaultUpdater  = common.HexToAddress("0x00000000000000000000000000000000000b0003")
)

// world is the in-process ledger plus everything wired around it: registry,
// hook adapter, engine, and seeded pools and balances.
type world struct {
	cfg      config.Config
	manager  *ledger.Manager
	registry *registry.Registry
	engine   *engine.Engine
	metrics  *observability.Metrics
	updater  common.Address

	conv0 ledger.PoolKey
	conv1 ledger.PoolKey
	prov  ledger.PoolKey
}

func buildWorld(cmd *cobra.Command, metrics *observability.Metrics, sink storage.Sink, log *zap.Logger) (*world, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	a0 := common.HexToAddress(cfg.Asset0)
	a1 := common.HexToAddress(cfg.Asset1)
	if a0 == (common.Address{}) || a1 == (common.Address{}) || a0 == a1 {
		return nil, fmt.Errorf("asset0/asset1 must be distinct non-zero addresses")
	}
	c0 := ledger.Currency{Address: a0}
	c1 := ledger.Currency{Address: a1}
	// Pool keys require sorted currencies.
	if c1.Less(c0) {
		c0, c1 = c1, c0
	}

	hookAddr := defaultHookAddr
	if cfg.HookAddress != "" {
		hookAddr = common.HexToAddress(cfg.HookAddress)
	}
	updater := defaultUpdater
	if cfg.Updater != "" {
		updater = common.HexToAddress(cfg.Updater)
	}

	mgr := ledger.NewManager(log)
	reg := registry.New(registry.Config{
		Updater: updater,
		Sink:    sink,
		Metrics: metrics,
	}, log)
	mgr.RegisterHook(hookAddr, hook.NewAdapter(mgr.Address(), reg, cfg.ChainID, log))

	w := &world{
		cfg:      cfg,
		manager:  mgr,
		registry: reg,
		metrics:  metrics,
		updater:  updater,
		conv0: ledger.PoolKey{
			Currency0:   ledger.Native,
			Currency1:   c0,
			Fee:         cfg.ConvFee,
			TickSpacing: cfg.ConvSpacing,
		},
		conv1: ledger.PoolKey{
			Currency0:   ledger.Native,
			Currency1:   c1,
			Fee:         cfg.ConvFee,
			TickSpacing: cfg.ConvSpacing,
		},
		prov: ledger.PoolKey{
			Currency0:   c0,
			Currency1:   c1,
			Fee:         cfg.ProvFee,
			TickSpacing: cfg.ProvSpacing,
			Hook:        hookAddr,
		},
	}

	eng, err := engine.NewEngine(engine.Config{
		ConversionPool0: w.conv0,
		ConversionPool1: w.conv1,
		ProvisionPool:   w.prov,
		TickOffset:      cfg.TickOffset,
	}, mgr, log, metrics)
	if err != nil {
		return nil, err
	}
	w.engine = eng

	if err := w.seed(); err != nil {
		return nil, err
	}
	return w, nil
}

// seed initializes all three pools at a 1:1 price, provisions wide liquidity,
// and funds the demo accounts plus the engine's residual float.
func (w *world) seed() error {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	deep := new(big.Int).Mul(unit, big.NewInt(1_000_000))
	float := new(big.Int).Mul(unit, big.NewInt(10))
	grant := new(big.Int).Mul(unit, big.NewInt(1_000))

	for _, key := range []ledger.PoolKey{w.conv0, w.conv1, w.prov} {
		if _, err := w.manager.Initialize(key, tickmath.Q96); err != nil {
			return fmt.Errorf("initialize pool: %w", err)
		}
		if err := w.manager.SeedLiquidity(key, w.manager.Address(), -120_000, 120_000, deep); err != nil {
			return fmt.Errorf("seed pool: %w", err)
		}
	}

	for _, c := range []ledger.Currency{ledger.Native, w.prov.Currency0, w.prov.Currency1} {
		w.manager.MintBalance(c, payerAddr, grant)
		w.manager.MintBalance(c, w.engine.Address(), float)
	}
	return nil
}
