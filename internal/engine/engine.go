package engine

import (
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityZap/internal/ledger"
	"liquidityZap/internal/observability"
)

// DefaultAddress is the engine's well-known account. It holds the float that
// covers settlement rounding residuals.
var DefaultAddress = common.HexToAddress("0x00000000000000000000000000000000005a4102")

// DefaultTickOffset is the half-width, in ticks, of the range the native zap
// centers on the current tick.
const DefaultTickOffset int32 = 600

// Config fixes the engine's pool topology. Both conversion pools sell the
// native asset for one side of the provisioning pool.
type Config struct {
	// ConversionPool0 trades native against the provisioning pool's currency0.
	ConversionPool0 ledger.PoolKey
	// ConversionPool1 trades native against the provisioning pool's currency1.
	ConversionPool1 ledger.PoolKey
	// ProvisionPool is where positions are minted.
	ProvisionPool ledger.PoolKey
	// TickOffset is the half-width of the auto-selected range. Zero selects
	// DefaultTickOffset.
	TickOffset int32
	// Address overrides the engine account. Zero selects DefaultAddress.
	Address common.Address
}

// Engine routes the three provisioning operations through single-session
// ledger callbacks. It is stateless between calls apart from configuration
// and the non-reentrancy latch.
type Engine struct {
	cfg     Config
	addr    common.Address
	offset  int32
	ledger  ledger.Ledger
	log     *zap.Logger
	metrics *observability.Metrics

	// inCallback rejects a nested callback. The ledger serializes sessions,
	// so a second entry can only mean the router called back into itself.
	inCallback atomic.Bool
}

func NewEngine(cfg Config, l ledger.Ledger, log *zap.Logger, metrics *observability.Metrics) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.ConversionPool0.Currency0.IsNative() || !cfg.ConversionPool1.Currency0.IsNative() {
		return nil, fmt.Errorf("conversion pools must quote the native asset as currency0")
	}
	if cfg.ConversionPool0.Currency1 != cfg.ProvisionPool.Currency0 {
		return nil, fmt.Errorf("conversion pool 0 output %s does not match provisioning currency0 %s",
			cfg.ConversionPool0.Currency1, cfg.ProvisionPool.Currency0)
	}
	if cfg.ConversionPool1.Currency1 != cfg.ProvisionPool.Currency1 {
		return nil, fmt.Errorf("conversion pool 1 output %s does not match provisioning currency1 %s",
			cfg.ConversionPool1.Currency1, cfg.ProvisionPool.Currency1)
	}

	offset := cfg.TickOffset
	if offset == 0 {
		offset = DefaultTickOffset
	}
	if offset < 0 {
		return nil, fmt.Errorf("tick offset must be positive, got %d", offset)
	}
	addr := cfg.Address
	if addr == (common.Address{}) {
		addr = DefaultAddress
	}

	return &Engine{
		cfg:     cfg,
		addr:    addr,
		offset:  offset,
		ledger:  l,
		log:     log,
		metrics: metrics,
	}, nil
}

// Address returns the engine's ledger account.
func (e *Engine) Address() common.Address {
	return e.addr
}

// ZapNativeParams drive the convert-then-provide operation.
type ZapNativeParams struct {
	AmountIn   *big.Int
	MinOut0    *big.Int
	MinOut1    *big.Int
	Payer      common.Address
	Recipient  common.Address
	EntityHint uint64
	Salt       common.Hash
}

// ZapNative splits a native amount across both conversion pools and mints a
// position centered on the provisioning pool's current tick. The whole
// operation is one ledger session; any failure leaves no trace.
func (e *Engine) ZapNative(p ZapNativeParams) (Result, error) {
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 {
		return Result{}, fmt.Errorf("%w: amount_in %v", ErrZeroAmount, p.AmountIn)
	}
	if p.Recipient == (common.Address{}) {
		return Result{}, ErrZeroRecipient
	}

	payload := sessionPayload{
		Kind:       kindZapNative,
		AmountIn:   p.AmountIn.String(),
		MinOut0:    bigOrZero(p.MinOut0).String(),
		MinOut1:    bigOrZero(p.MinOut1).String(),
		Payer:      p.Payer,
		Recipient:  p.Recipient,
		EntityHint: p.EntityHint,
		Salt:       p.Salt,
	}
	return e.run(kindZapNative, payload)
}

// ProvidePairParams drive the provide-from-two-assets operation.
type ProvidePairParams struct {
	Amount0    *big.Int
	Amount1    *big.Int
	TickLower  int32
	TickUpper  int32
	Payer      common.Address
	Recipient  common.Address
	EntityHint uint64
	Salt       common.Hash
}

// ProvidePair pulls exact amounts of both provisioning assets and mints on
// the supplied range, returning any surplus to the recipient.
func (e *Engine) ProvidePair(p ProvidePairParams) (Result, error) {
	if p.Amount0 == nil || p.Amount1 == nil || p.Amount0.Sign() <= 0 || p.Amount1.Sign() <= 0 {
		return Result{}, fmt.Errorf("%w: amounts %v/%v", ErrZeroAmount, p.Amount0, p.Amount1)
	}
	if p.Recipient == (common.Address{}) {
		return Result{}, ErrZeroRecipient
	}

	payload := sessionPayload{
		Kind:       kindProvidePair,
		Amount0:    p.Amount0.String(),
		Amount1:    p.Amount1.String(),
		TickLower:  p.TickLower,
		TickUpper:  p.TickUpper,
		Payer:      p.Payer,
		Recipient:  p.Recipient,
		EntityHint: p.EntityHint,
		Salt:       p.Salt,
	}
	return e.run(kindProvidePair, payload)
}

// ProvideSingleParams drive the provide-from-one-asset operation.
type ProvideSingleParams struct {
	Amount       *big.Int
	UseCurrency0 bool
	TickLower    int32
	TickUpper    int32
	Payer        common.Address
	Recipient    common.Address
	EntityHint   uint64
	Salt         common.Hash
}

// ProvideSingle pulls one provisioning asset, converts half of it through the
// provisioning pool itself, and mints on the supplied range.
func (e *Engine) ProvideSingle(p ProvideSingleParams) (Result, error) {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return Result{}, fmt.Errorf("%w: amount %v", ErrZeroAmount, p.Amount)
	}
	if p.Recipient == (common.Address{}) {
		return Result{}, ErrZeroRecipient
	}

	payload := sessionPayload{
		Kind:         kindProvideSingle,
		Amount0:      p.Amount.String(),
		UseCurrency0: p.UseCurrency0,
		TickLower:    p.TickLower,
		TickUpper:    p.TickUpper,
		Payer:        p.Payer,
		Recipient:    p.Recipient,
		EntityHint:   p.EntityHint,
		Salt:         p.Salt,
	}
	return e.run(kindProvideSingle, payload)
}

func (e *Engine) run(kind string, payload sessionPayload) (Result, error) {
	start := time.Now()

	raw, err := payload.encode()
	if err != nil {
		return Result{}, err
	}
	out, err := e.ledger.Unlock(e.addr, e, raw)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if _, ok := IsShortfall(err); ok {
			outcome = "shortfall"
		}
	}
	if e.metrics != nil {
		e.metrics.OperationsTotal.WithLabelValues(kind, outcome).Inc()
		e.metrics.OperationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if outcome == "shortfall" {
			e.metrics.Shortfalls.Inc()
		}
		if outcome != "ok" {
			e.metrics.SessionRollbacks.Inc()
		}
	}
	if err != nil {
		e.log.Warn("operation failed", zap.String("kind", kind), zap.Error(err))
		return Result{}, err
	}

	res, err := decodeResult(out)
	if err != nil {
		return Result{}, err
	}
	e.log.Info("operation complete",
		zap.String("kind", kind),
		zap.String("liquidity", res.Liquidity.String()),
		zap.String("position_ref", res.PositionRef.Hex()),
	)
	return res, nil
}

// Quote estimates both conversion outputs for a hypothetical native amount
// from the ledger's current prices, with the pool fee applied as an input
// haircut. Quote(0) is (0, 0) without touching the ledger.
func (e *Engine) Quote(amountIn *big.Int) (*big.Int, *big.Int, error) {
	if e.metrics != nil {
		e.metrics.QuotesTotal.Inc()
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0), nil
	}

	half0 := new(big.Int).Rsh(amountIn, 1)
	half1 := new(big.Int).Sub(amountIn, half0)

	out0, err := e.quoteOne(e.cfg.ConversionPool0, half0)
	if err != nil {
		return nil, nil, err
	}
	out1, err := e.quoteOne(e.cfg.ConversionPool1, half1)
	if err != nil {
		return nil, nil, err
	}
	return out0, out1, nil
}

// quoteOne prices an input through one pool at its spot price. The estimate
// ignores the price impact of the trade itself, so realized outputs land at
// or slightly below it; floors derived from it must leave slack.
func (e *Engine) quoteOne(key ledger.PoolKey, amountIn *big.Int) (*big.Int, error) {
	price, err := e.ledger.ReadPrice(key)
	if err != nil {
		return nil, err
	}

	// Fees are in hundredths of a bip, same scale the ledger charges on input.
	const feeDenom = 1_000_000
	net := new(big.Int).Mul(amountIn, big.NewInt(feeDenom-int64(key.Fee)))
	net.Quo(net, big.NewInt(feeDenom))

	out := new(big.Int).Mul(net, price.SqrtPriceX96)
	out.Mul(out, price.SqrtPriceX96)
	out.Rsh(out, 192)
	return out, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
