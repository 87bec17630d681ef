package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"liquidityZap/internal/tickmath"
)

// session tracks the per-currency deltas opened during one Unlock.
type session struct {
	m       *Manager
	id      uuid.UUID
	locker  common.Address
	deltas  map[Currency]*big.Int
	synced  map[Currency]*big.Int
	pending []pendingHook
	closed  bool
}

// pendingHook is a validated notification waiting for the session to commit.
type pendingHook struct {
	hook      PositionHook
	key       PoolKey
	tickLower int32
	tickUpper int32
	liquidity *big.Int
	hookData  []byte
}

func (s *session) delta(c Currency) *big.Int {
	d, ok := s.deltas[c]
	if !ok {
		d = big.NewInt(0)
		s.deltas[c] = d
	}
	return d
}

func (s *session) guard() error {
	if s.closed || s.m.active != s {
		return ErrNoActiveSession
	}
	return nil
}

func (s *session) checkSettled() error {
	for c, d := range s.deltas {
		if d.Sign() != 0 {
			return fmt.Errorf("%w: currency=%s delta=%v", ErrNonZeroDelta, c, d)
		}
	}
	return nil
}

// Swap converts an exact input against the pool's in-range liquidity with the
// fee applied on input. Single price range; the reference ledger does not
// cross initialized ticks.
func (s *session) Swap(key PoolKey, zeroForOne bool, amountIn *big.Int) (BalanceDelta, error) {
	s.m.stateMu.Lock()
	defer s.m.stateMu.Unlock()

	if err := s.guard(); err != nil {
		return BalanceDelta{}, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return BalanceDelta{}, fmt.Errorf("swap amount must be positive, got %v", amountIn)
	}

	pool, ok := s.m.pools[key.ID()]
	if !ok {
		return BalanceDelta{}, ErrPoolNotInitialized
	}
	if pool.liquidity.Sign() <= 0 {
		return BalanceDelta{}, ErrInsufficientLiquidity
	}

	fee := new(big.Int).Mul(amountIn, big.NewInt(int64(key.Fee)))
	fee.Quo(fee, big.NewInt(1_000_000))
	net := new(big.Int).Sub(amountIn, fee)

	var (
		newSqrt   *big.Int
		amountOut *big.Int
		err       error
	)
	if zeroForOne {
		newSqrt, err = tickmath.NextSqrtPriceFromAmount0In(pool.sqrtPriceX96, pool.liquidity, net)
		if err != nil {
			return BalanceDelta{}, err
		}
		if newSqrt.Cmp(tickmath.MinSqrtPriceX96) < 0 {
			return BalanceDelta{}, ErrInsufficientLiquidity
		}
		amountOut = tickmath.Amount1Delta(newSqrt, pool.sqrtPriceX96, pool.liquidity, false)
	} else {
		newSqrt, err = tickmath.NextSqrtPriceFromAmount1In(pool.sqrtPriceX96, pool.liquidity, net)
		if err != nil {
			return BalanceDelta{}, err
		}
		if newSqrt.Cmp(tickmath.MaxSqrtPriceX96) > 0 {
			return BalanceDelta{}, ErrInsufficientLiquidity
		}
		amountOut = tickmath.Amount0Delta(pool.sqrtPriceX96, newSqrt, pool.liquidity, false)
	}

	newTick, err := tickmath.TickAtSqrtPrice(newSqrt)
	if err != nil {
		return BalanceDelta{}, err
	}
	pool.sqrtPriceX96 = newSqrt
	pool.tick = newTick

	var delta BalanceDelta
	if zeroForOne {
		delta = NewBalanceDelta(new(big.Int).Neg(amountIn), amountOut)
	} else {
		delta = NewBalanceDelta(amountOut, new(big.Int).Neg(amountIn))
	}
	s.delta(key.Currency0).Add(s.delta(key.Currency0), delta.Amount0)
	s.delta(key.Currency1).Add(s.delta(key.Currency1), delta.Amount1)

	s.m.log.Debug("swap",
		zap.String("session", s.id.String()),
		zap.String("pool", key.ID().Hex()),
		zap.Bool("zero_for_one", zeroForOne),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", amountOut.String()),
		zap.Int32("tick", newTick),
	)
	return delta, nil
}

// ModifyLiquidity applies a liquidity delta to the locker's position and opens
// the corresponding balance deltas. A positive delta on a hooked pool runs the
// hook's validation with hookData; a validation error fails the session. The
// notification itself is queued and delivered only if the session commits.
func (s *session) ModifyLiquidity(key PoolKey, tickLower, tickUpper int32, liquidityDelta *big.Int, salt common.Hash, hookData []byte) (BalanceDelta, error) {
	s.m.stateMu.Lock()

	if err := s.guard(); err != nil {
		s.m.stateMu.Unlock()
		return BalanceDelta{}, err
	}
	if liquidityDelta == nil || liquidityDelta.Sign() == 0 {
		s.m.stateMu.Unlock()
		return BalanceDelta{}, fmt.Errorf("liquidity delta must be nonzero")
	}
	if err := validateRange(key, tickLower, tickUpper); err != nil {
		s.m.stateMu.Unlock()
		return BalanceDelta{}, err
	}

	pool, ok := s.m.pools[key.ID()]
	if !ok {
		s.m.stateMu.Unlock()
		return BalanceDelta{}, ErrPoolNotInitialized
	}

	var hook PositionHook
	if key.Hook != (common.Address{}) {
		hook, ok = s.m.hooks[key.Hook]
		if !ok {
			s.m.stateMu.Unlock()
			return BalanceDelta{}, ErrUnknownHook
		}
	}

	sqrtA, err := tickmath.SqrtPriceAtTick(tickLower)
	if err != nil {
		s.m.stateMu.Unlock()
		return BalanceDelta{}, err
	}
	sqrtB, err := tickmath.SqrtPriceAtTick(tickUpper)
	if err != nil {
		s.m.stateMu.Unlock()
		return BalanceDelta{}, err
	}

	adding := liquidityDelta.Sign() > 0
	absDelta := new(big.Int).Abs(liquidityDelta)

	// Amounts owed round up against the caller; amounts returned round down.
	amount0, amount1 := tickmath.AmountsForLiquidity(pool.sqrtPriceX96, sqrtA, sqrtB, absDelta, adding)

	pk := positionID(s.locker, tickLower, tickUpper, salt)
	pos, ok := s.m.positions[pk]
	if !ok {
		pos = &positionState{owner: s.locker, tickLower: tickLower, tickUpper: tickUpper, liquidity: big.NewInt(0)}
		s.m.positions[pk] = pos
	}
	newLiq := new(big.Int).Add(pos.liquidity, liquidityDelta)
	if newLiq.Sign() < 0 {
		s.m.stateMu.Unlock()
		return BalanceDelta{}, fmt.Errorf("%w: position holds %v, delta %v", ErrInsufficientLiquidity, pos.liquidity, liquidityDelta)
	}
	pos.liquidity = newLiq

	if tickLower <= pool.tick && pool.tick < tickUpper {
		pool.liquidity.Add(pool.liquidity, liquidityDelta)
	}

	var delta BalanceDelta
	if adding {
		delta = NewBalanceDelta(new(big.Int).Neg(amount0), new(big.Int).Neg(amount1))
	} else {
		delta = NewBalanceDelta(amount0, amount1)
	}
	s.delta(key.Currency0).Add(s.delta(key.Currency0), delta.Amount0)
	s.delta(key.Currency1).Add(s.delta(key.Currency1), delta.Amount1)

	s.m.log.Debug("modify liquidity",
		zap.String("session", s.id.String()),
		zap.String("pool", key.ID().Hex()),
		zap.Int32("tick_lower", tickLower),
		zap.Int32("tick_upper", tickUpper),
		zap.String("liquidity_delta", liquidityDelta.String()),
	)

	// Release stateMu before invoking the hook: the adapter may read back
	// through the manager and must not deadlock.
	s.m.stateMu.Unlock()

	if hook != nil && adding {
		if err := hook.ValidateLiquidityAdded(s.m.addr, key, tickLower, tickUpper, absDelta, hookData); err != nil {
			return BalanceDelta{}, fmt.Errorf("hook rejected liquidity add: %w", err)
		}
		// Delivery waits for the zero-sum check: a rollback must leave no
		// hook side effects behind.
		s.pending = append(s.pending, pendingHook{
			hook:      hook,
			key:       key,
			tickLower: tickLower,
			tickUpper: tickUpper,
			liquidity: absDelta,
			hookData:  hookData,
		})
	}
	return delta, nil
}

// Sync records the current reserve of c as the settlement baseline.
func (s *session) Sync(c Currency) {
	s.m.stateMu.Lock()
	defer s.m.stateMu.Unlock()
	if s.closed {
		return
	}
	s.synced[c] = new(big.Int).Set(s.m.reserve(c))
}

// Pay moves tokens from an external balance into the ledger reserve. The
// payment is only credited to the session by a following Settle.
func (s *session) Pay(c Currency, from common.Address, amount *big.Int) error {
	s.m.stateMu.Lock()
	defer s.m.stateMu.Unlock()

	if err := s.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("pay amount must be non-negative, got %v", amount)
	}
	if _, ok := s.synced[c]; !ok {
		return fmt.Errorf("%w: pay %s before sync", ErrNotSynced, c)
	}
	if err := s.m.debit(c, from, amount); err != nil {
		return err
	}
	s.m.addReserve(c, amount)
	return nil
}

// Settle credits the session with everything paid in since the last Sync.
func (s *session) Settle(c Currency) (*big.Int, error) {
	s.m.stateMu.Lock()
	defer s.m.stateMu.Unlock()

	if err := s.guard(); err != nil {
		return nil, err
	}
	base, ok := s.synced[c]
	if !ok {
		return nil, fmt.Errorf("%w: settle %s", ErrNotSynced, c)
	}
	paid := new(big.Int).Sub(s.m.reserve(c), base)
	if paid.Sign() < 0 {
		return nil, fmt.Errorf("reserve of %s shrank below sync point", c)
	}
	s.delta(c).Add(s.delta(c), paid)
	delete(s.synced, c)
	return paid, nil
}

// Delta returns the session's current net obligation for c.
func (s *session) Delta(c Currency) *big.Int {
	s.m.stateMu.Lock()
	defer s.m.stateMu.Unlock()
	if d, ok := s.deltas[c]; ok {
		return new(big.Int).Set(d)
	}
	return big.NewInt(0)
}

// Take withdraws from the ledger to a recipient and debits the session.
func (s *session) Take(c Currency, to common.Address, amount *big.Int) error {
	s.m.stateMu.Lock()
	defer s.m.stateMu.Unlock()

	if err := s.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("take amount must be non-negative, got %v", amount)
	}
	r := s.m.reserve(c)
	if r.Cmp(amount) < 0 {
		return fmt.Errorf("%w: ledger holds %v of %s, take %v", ErrInsufficientBalance, r, c, amount)
	}
	r.Sub(r, amount)
	s.m.credit(c, to, amount)
	s.delta(c).Sub(s.delta(c), amount)
	return nil
}
