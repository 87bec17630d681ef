package tickmath

import (
	"math/big"
	"testing"
)

func mustSqrt(t *testing.T, tick int32) *big.Int {
	t.Helper()
	sp, err := SqrtPriceAtTick(tick)
	if err != nil {
		t.Fatalf("sqrt price at %d: %v", tick, err)
	}
	return sp
}

func TestLiquidityForAmountsInRangeIsMin(t *testing.T) {
	sqrtP := mustSqrt(t, 0)
	sqrtA := mustSqrt(t, -600)
	sqrtB := mustSqrt(t, 600)

	amount := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	liq := LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount, amount)
	if liq.Sign() <= 0 {
		t.Fatalf("expected positive liquidity, got %v", liq)
	}

	// Starving one side must reduce the result: the min estimate binds.
	small := new(big.Int).Quo(amount, big.NewInt(10))
	liqSmall := LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount, small)
	if liqSmall.Cmp(liq) >= 0 {
		t.Fatalf("starved side did not bind: %v >= %v", liqSmall, liq)
	}
}

func TestLiquidityForAmountsOutOfRange(t *testing.T) {
	sqrtA := mustSqrt(t, 600)
	sqrtB := mustSqrt(t, 1200)
	amount := big.NewInt(1_000_000)

	// Price below the range needs only amount0.
	below := LiquidityForAmounts(mustSqrt(t, 0), sqrtA, sqrtB, amount, big.NewInt(0))
	if below.Sign() <= 0 {
		t.Fatalf("expected positive liquidity below range, got %v", below)
	}

	// Price above the range needs only amount1.
	above := LiquidityForAmounts(mustSqrt(t, 2400), sqrtA, sqrtB, big.NewInt(0), amount)
	if above.Sign() <= 0 {
		t.Fatalf("expected positive liquidity above range, got %v", above)
	}
}

func TestAmountsForLiquidityRoundTrip(t *testing.T) {
	sqrtP := mustSqrt(t, 0)
	sqrtA := mustSqrt(t, -600)
	sqrtB := mustSqrt(t, 600)

	amount := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	liq := LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount, amount)

	owed0, owed1 := AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liq, true)
	if owed0.Sign() <= 0 || owed1.Sign() <= 0 {
		t.Fatalf("in-range liquidity must owe both assets: %v / %v", owed0, owed1)
	}

	// Owed amounts round up against the caller but never exceed the funding
	// amounts by more than the rounding unit.
	slack := big.NewInt(2)
	if new(big.Int).Sub(owed0, amount).Cmp(slack) > 0 {
		t.Fatalf("owed0 %v exceeds funded %v beyond rounding", owed0, amount)
	}
	if new(big.Int).Sub(owed1, amount).Cmp(slack) > 0 {
		t.Fatalf("owed1 %v exceeds funded %v beyond rounding", owed1, amount)
	}
}

func TestAmountDeltaRounding(t *testing.T) {
	sqrtA := mustSqrt(t, -600)
	sqrtB := mustSqrt(t, 600)
	liq := big.NewInt(1_000_003)

	down0 := Amount0Delta(sqrtA, sqrtB, liq, false)
	up0 := Amount0Delta(sqrtA, sqrtB, liq, true)
	if up0.Cmp(down0) < 0 {
		t.Fatalf("round up below round down: %v < %v", up0, down0)
	}

	down1 := Amount1Delta(sqrtA, sqrtB, liq, false)
	up1 := Amount1Delta(sqrtA, sqrtB, liq, true)
	if up1.Cmp(down1) < 0 {
		t.Fatalf("round up below round down: %v < %v", up1, down1)
	}
}
