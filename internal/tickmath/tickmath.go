package tickmath

import (
	"fmt"
	"math/big"
)

// Tick bounds match the canonical concentrated-liquidity range where
// price = 1.0001^tick stays representable in Q64.96.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// Q96 is the fixed-point scaling factor for sqrt prices (2^96).
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	// MinSqrtPriceX96 and MaxSqrtPriceX96 bound valid pool prices.
	MinSqrtPriceX96 = big.NewInt(4295128739)
	MaxSqrtPriceX96, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	sqrtBase = big.NewFloat(1.0001).SetPrec(floatPrec)
	q96Float = new(big.Float).SetPrec(floatPrec).SetInt(Q96)
)

const floatPrec = 256

// AlignTick rounds a tick toward negative infinity to the nearest multiple
// of spacing. Idempotent: AlignTick(AlignTick(t, s), s) == AlignTick(t, s).
func AlignTick(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

// SqrtPriceAtTick returns sqrt(1.0001^tick) * 2^96.
func SqrtPriceAtTick(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick %d out of range [%d, %d]", tick, MinTick, MaxTick)
	}

	ratio := powFloat(sqrtBase, int64(tick))
	ratio.Sqrt(ratio)
	ratio.Mul(ratio, q96Float)

	out, _ := ratio.Int(nil)
	if out.Cmp(MinSqrtPriceX96) < 0 {
		out.Set(MinSqrtPriceX96)
	}
	if out.Cmp(MaxSqrtPriceX96) > 0 {
		out.Set(MaxSqrtPriceX96)
	}
	return out, nil
}

// TickAtSqrtPrice returns the largest tick whose sqrt price is <= sqrtPriceX96.
// Binary search keeps it consistent with SqrtPriceAtTick by construction.
func TickAtSqrtPrice(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtPriceX96) < 0 || sqrtPriceX96.Cmp(MaxSqrtPriceX96) > 0 {
		return 0, fmt.Errorf("sqrt price out of range: %v", sqrtPriceX96)
	}

	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		sp, err := SqrtPriceAtTick(mid)
		if err != nil {
			return 0, err
		}
		if sp.Cmp(sqrtPriceX96) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// powFloat computes base^exp with exponentiation by squaring.
func powFloat(base *big.Float, exp int64) *big.Float {
	result := big.NewFloat(1).SetPrec(floatPrec)
	if exp == 0 {
		return result
	}

	neg := exp < 0
	if neg {
		exp = -exp
	}

	acc := new(big.Float).SetPrec(floatPrec).Set(base)
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, acc)
		}
		acc.Mul(acc, acc)
		exp >>= 1
	}

	if neg {
		result.Quo(big.NewFloat(1).SetPrec(floatPrec), result)
	}
	return result
}
