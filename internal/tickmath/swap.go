package tickmath

import (
	"fmt"
	"math/big"
)

// NextSqrtPriceFromAmount0In returns the sqrt price after selling amountIn of
// token0 into liquidity at sqrtP. Price moves down.
//
//	sqrtP' = L * sqrtP * Q96 / (L * Q96 + amountIn * sqrtP)
func NextSqrtPriceFromAmount0In(sqrtP, liquidity, amountIn *big.Int) (*big.Int, error) {
	if liquidity.Sign() <= 0 {
		return nil, fmt.Errorf("no liquidity")
	}
	if amountIn.Sign() == 0 {
		return new(big.Int).Set(sqrtP), nil
	}

	num := new(big.Int).Mul(liquidity, sqrtP)
	num.Lsh(num, 96)

	denom := new(big.Int).Lsh(liquidity, 96)
	denom.Add(denom, new(big.Int).Mul(amountIn, sqrtP))

	return divRoundUp(num, denom), nil
}

// NextSqrtPriceFromAmount1In returns the sqrt price after selling amountIn of
// token1 into liquidity at sqrtP. Price moves up.
//
//	sqrtP' = sqrtP + amountIn * Q96 / L
func NextSqrtPriceFromAmount1In(sqrtP, liquidity, amountIn *big.Int) (*big.Int, error) {
	if liquidity.Sign() <= 0 {
		return nil, fmt.Errorf("no liquidity")
	}
	step := new(big.Int).Lsh(amountIn, 96)
	step.Quo(step, liquidity)
	return new(big.Int).Add(sqrtP, step), nil
}
