package tickmath

import "math/big"

// LiquidityForAmounts returns the maximum liquidity the given token amounts can
// fund across [sqrtA, sqrtB] at the current price sqrtP. When the price sits
// inside the range the result is the smaller of the two single-sided estimates.
func LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}

	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return liquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtP.Cmp(sqrtB) >= 0:
		return liquidityForAmount1(sqrtA, sqrtB, amount1)
	default:
		l0 := liquidityForAmount0(sqrtP, sqrtB, amount0)
		l1 := liquidityForAmount1(sqrtA, sqrtP, amount1)
		if l0.Cmp(l1) < 0 {
			return l0
		}
		return l1
	}
}

// AmountsForLiquidity returns the token amounts a liquidity delta across
// [sqrtA, sqrtB] is worth at price sqrtP. roundUp selects ceiling division,
// used when the amounts are owed to the ledger.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *big.Int, roundUp bool) (amount0, amount1 *big.Int) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}

	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return Amount0Delta(sqrtA, sqrtB, liquidity, roundUp), big.NewInt(0)
	case sqrtP.Cmp(sqrtB) >= 0:
		return big.NewInt(0), Amount1Delta(sqrtA, sqrtB, liquidity, roundUp)
	default:
		return Amount0Delta(sqrtP, sqrtB, liquidity, roundUp), Amount1Delta(sqrtA, sqrtP, liquidity, roundUp)
	}
}

// Amount0Delta returns liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB), scaled
// out of Q96.
func Amount0Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}

	num := new(big.Int).Lsh(liquidity, 96)
	num.Mul(num, new(big.Int).Sub(sqrtB, sqrtA))

	if roundUp {
		inner := divRoundUp(num, sqrtB)
		return divRoundUp(inner, sqrtA)
	}
	out := new(big.Int).Quo(num, sqrtB)
	return out.Quo(out, sqrtA)
}

// Amount1Delta returns liquidity * (sqrtB - sqrtA) / Q96.
func Amount1Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}

	num := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	if roundUp {
		return divRoundUp(num, Q96)
	}
	return num.Quo(num, Q96)
}

// liquidityForAmount0 = amount0 * (sqrtA * sqrtB / Q96) / (sqrtB - sqrtA)
func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	if amount0 == nil || amount0.Sign() <= 0 {
		return big.NewInt(0)
	}
	intermediate := new(big.Int).Mul(sqrtA, sqrtB)
	intermediate.Quo(intermediate, Q96)

	out := new(big.Int).Mul(amount0, intermediate)
	return out.Quo(out, new(big.Int).Sub(sqrtB, sqrtA))
}

// liquidityForAmount1 = amount1 * Q96 / (sqrtB - sqrtA)
func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	if amount1 == nil || amount1.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Lsh(amount1, 96)
	return out.Quo(out, new(big.Int).Sub(sqrtB, sqrtA))
}

func divRoundUp(num, denom *big.Int) *big.Int {
	out, rem := new(big.Int).QuoRem(num, denom, new(big.Int))
	if rem.Sign() != 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}
