package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityZap/internal/hook"
	"liquidityZap/internal/ledger"
	"liquidityZap/internal/tickmath"
)

// UnlockCallback is the single re-entry point the ledger resumes the engine
// through. It rejects any sender other than the ledger, refuses nested entry,
// and dispatches on the payload discriminator. Every delta the routines open
// is resolved before return; the ledger verifies the zero-sum on close.
func (e *Engine) UnlockCallback(sender common.Address, s ledger.Session, payload []byte) ([]byte, error) {
	if sender != e.ledger.Address() {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorizedCallback, sender.Hex())
	}
	if !e.inCallback.CompareAndSwap(false, true) {
		return nil, ErrReentrantCallback
	}
	defer e.inCallback.Store(false)

	p, err := decodePayload(payload)
	if err != nil {
		return nil, err
	}

	switch p.Kind {
	case kindZapNative:
		return e.settleZapNative(s, p)
	case kindProvidePair:
		return e.settleProvidePair(s, p)
	case kindProvideSingle:
		return e.settleProvideSingle(s, p)
	}
	return nil, fmt.Errorf("%w: kind %q", ErrBadPayload, p.Kind)
}

// settleZapNative converts half the native input through each conversion pool
// and mints on an auto-selected range around the current tick. Residuals the
// mint rounds up past the swap proceeds are covered from the engine's float;
// surpluses go to the recipient.
func (e *Engine) settleZapNative(s ledger.Session, p sessionPayload) ([]byte, error) {
	amountIn, err := parseAmount(p.AmountIn, "amount_in")
	if err != nil {
		return nil, err
	}
	min0, err := parseAmount(p.MinOut0, "min_out0")
	if err != nil {
		return nil, err
	}
	min1, err := parseAmount(p.MinOut1, "min_out1")
	if err != nil {
		return nil, err
	}

	if err := e.pull(s, ledger.Native, p.Payer, amountIn); err != nil {
		return nil, err
	}

	// Remainder rides on the second half so no wei is dropped.
	half0 := new(big.Int).Rsh(amountIn, 1)
	half1 := new(big.Int).Sub(amountIn, half0)

	d0, err := s.Swap(e.cfg.ConversionPool0, true, half0)
	if err != nil {
		return nil, err
	}
	realized0 := d0.Amount1
	if realized0.Cmp(min0) < 0 {
		return nil, &ShortfallError{Currency: e.cfg.ProvisionPool.Currency0, Floor: min0, Actual: realized0}
	}

	d1, err := s.Swap(e.cfg.ConversionPool1, true, half1)
	if err != nil {
		return nil, err
	}
	realized1 := d1.Amount1
	if realized1.Cmp(min1) < 0 {
		return nil, &ShortfallError{Currency: e.cfg.ProvisionPool.Currency1, Floor: min1, Actual: realized1}
	}

	price, err := e.ledger.ReadPrice(e.cfg.ProvisionPool)
	if err != nil {
		return nil, err
	}
	lower, upper, err := e.autoRange(price.Tick)
	if err != nil {
		return nil, err
	}

	liq, ref, err := e.mint(s, p, lower, upper, price.SqrtPriceX96, realized0, realized1)
	if err != nil {
		return nil, err
	}

	for _, c := range []ledger.Currency{e.cfg.ProvisionPool.Currency0, e.cfg.ProvisionPool.Currency1, ledger.Native} {
		if err := e.closeOut(s, c, p.Recipient, true); err != nil {
			return nil, err
		}
	}
	return encodeResult(liq, ref)
}

// settleProvidePair pulls exact amounts of both assets and mints on the
// caller's snapped range. The pull is the ceiling: a delta driven below zero
// by the mint means the routine consumed more than it pulled, which this
// operation cannot do.
func (e *Engine) settleProvidePair(s ledger.Session, p sessionPayload) ([]byte, error) {
	amount0, err := parseAmount(p.Amount0, "amount0")
	if err != nil {
		return nil, err
	}
	amount1, err := parseAmount(p.Amount1, "amount1")
	if err != nil {
		return nil, err
	}

	lower, upper, err := e.snapRange(p.TickLower, p.TickUpper)
	if err != nil {
		return nil, err
	}

	c0 := e.cfg.ProvisionPool.Currency0
	c1 := e.cfg.ProvisionPool.Currency1
	if err := e.pull(s, c0, p.Payer, amount0); err != nil {
		return nil, err
	}
	if err := e.pull(s, c1, p.Payer, amount1); err != nil {
		return nil, err
	}

	price, err := e.ledger.ReadPrice(e.cfg.ProvisionPool)
	if err != nil {
		return nil, err
	}

	liq, ref, err := e.mint(s, p, lower, upper, price.SqrtPriceX96, amount0, amount1)
	if err != nil {
		return nil, err
	}

	if err := e.closeOut(s, c0, p.Recipient, false); err != nil {
		return nil, err
	}
	if err := e.closeOut(s, c1, p.Recipient, false); err != nil {
		return nil, err
	}
	return encodeResult(liq, ref)
}

// settleProvideSingle pulls one asset, converts half of it through the
// provisioning pool itself, and mints on the snapped range at the post-swap
// price.
func (e *Engine) settleProvideSingle(s ledger.Session, p sessionPayload) ([]byte, error) {
	amount, err := parseAmount(p.Amount0, "amount")
	if err != nil {
		return nil, err
	}

	lower, upper, err := e.snapRange(p.TickLower, p.TickUpper)
	if err != nil {
		return nil, err
	}

	c0 := e.cfg.ProvisionPool.Currency0
	c1 := e.cfg.ProvisionPool.Currency1
	in := c1
	if p.UseCurrency0 {
		in = c0
	}
	if err := e.pull(s, in, p.Payer, amount); err != nil {
		return nil, err
	}

	half := new(big.Int).Rsh(amount, 1)
	d, err := s.Swap(e.cfg.ProvisionPool, p.UseCurrency0, half)
	if err != nil {
		return nil, err
	}

	remaining := new(big.Int).Sub(amount, half)
	var amount0, amount1 *big.Int
	if p.UseCurrency0 {
		amount0, amount1 = remaining, d.Amount1
	} else {
		amount0, amount1 = d.Amount0, remaining
	}

	// The conversion moved the pool; mint against the price it left behind.
	price, err := e.ledger.ReadPrice(e.cfg.ProvisionPool)
	if err != nil {
		return nil, err
	}

	liq, ref, err := e.mint(s, p, lower, upper, price.SqrtPriceX96, amount0, amount1)
	if err != nil {
		return nil, err
	}

	if err := e.closeOut(s, c0, p.Recipient, true); err != nil {
		return nil, err
	}
	if err := e.closeOut(s, c1, p.Recipient, true); err != nil {
		return nil, err
	}
	return encodeResult(liq, ref)
}

// mint computes liquidity for the realized amounts, derives the position
// reference, and applies the add with the hatch notification attached.
func (e *Engine) mint(s ledger.Session, p sessionPayload, lower, upper int32, sqrtPriceX96, amount0, amount1 *big.Int) (*big.Int, common.Hash, error) {
	sqrtA, err := tickmath.SqrtPriceAtTick(lower)
	if err != nil {
		return nil, common.Hash{}, err
	}
	sqrtB, err := tickmath.SqrtPriceAtTick(upper)
	if err != nil {
		return nil, common.Hash{}, err
	}

	liq := tickmath.LiquidityForAmounts(sqrtPriceX96, sqrtA, sqrtB, amount0, amount1)
	if liq.Sign() <= 0 {
		return nil, common.Hash{}, fmt.Errorf("%w: amounts %v/%v on [%d, %d)", ErrZeroLiquidity, amount0, amount1, lower, upper)
	}

	ref := PositionRef(p.Recipient, lower, upper, p.Salt)
	note := hook.Notification{
		Owner:       p.Recipient,
		EntityHint:  p.EntityHint,
		PositionRef: ref,
		TickLower:   lower,
		TickUpper:   upper,
	}
	data, err := note.Encode()
	if err != nil {
		return nil, common.Hash{}, err
	}

	if _, err := s.ModifyLiquidity(e.cfg.ProvisionPool, lower, upper, liq, ref, data); err != nil {
		return nil, common.Hash{}, err
	}

	e.log.Debug("position minted",
		zap.Int32("tick_lower", lower),
		zap.Int32("tick_upper", upper),
		zap.String("liquidity", liq.String()),
		zap.String("position_ref", ref.Hex()),
	)
	return liq, ref, nil
}

// pull moves an exact amount from the payer into the session, bracketed by
// sync and settle so the ledger credits it.
func (e *Engine) pull(s ledger.Session, c ledger.Currency, from common.Address, amount *big.Int) error {
	s.Sync(c)
	if err := s.Pay(c, from, amount); err != nil {
		return err
	}
	_, err := s.Settle(c)
	return err
}

// closeOut drives one currency's delta to zero. A positive delta is withdrawn
// to the recipient through the ledger's withdrawal primitive. A negative one
// is covered from the engine's float when topUp allows it; otherwise it is an
// invariant violation and the session aborts.
func (e *Engine) closeOut(s ledger.Session, c ledger.Currency, recipient common.Address, topUp bool) error {
	d := s.Delta(c)
	switch {
	case d.Sign() > 0:
		return s.Take(c, recipient, d)
	case d.Sign() < 0:
		owed := new(big.Int).Neg(d)
		if !topUp {
			return fmt.Errorf("%w: %s short by %v after exact pull", ErrDeltaInvariant, c, owed)
		}
		s.Sync(c)
		if err := s.Pay(c, e.addr, owed); err != nil {
			return fmt.Errorf("cover residual: %w", err)
		}
		if _, err := s.Settle(c); err != nil {
			return err
		}
	}
	return nil
}

// autoRange centers a snapped range of ±offset ticks on tick.
func (e *Engine) autoRange(tick int32) (int32, int32, error) {
	return e.boundRange(tick-e.offset, tick+e.offset)
}

// snapRange floors caller-supplied bounds to the pool's tick spacing.
func (e *Engine) snapRange(lower, upper int32) (int32, int32, error) {
	return e.boundRange(lower, upper)
}

func (e *Engine) boundRange(lower, upper int32) (int32, int32, error) {
	spacing := e.cfg.ProvisionPool.TickSpacing
	lo := tickmath.AlignTick(lower, spacing)
	hi := tickmath.AlignTick(upper, spacing)

	min := tickmath.AlignTick(tickmath.MinTick, spacing)
	if min < tickmath.MinTick {
		min += spacing
	}
	max := tickmath.AlignTick(tickmath.MaxTick, spacing)
	if lo < min {
		lo = min
	}
	if hi > max {
		hi = max
	}
	if lo >= hi {
		return 0, 0, fmt.Errorf("%w: [%d, %d) with spacing %d", ErrEmptyRange, lower, upper, spacing)
	}
	return lo, hi, nil
}
