package tickmath

import (
	"math/big"
	"testing"
)

func TestAlignTick(t *testing.T) {
	cases := []struct {
		tick, spacing, want int32
	}{
		{0, 10, 0},
		{7, 10, 0},
		{10, 10, 10},
		{-7, 10, -10},
		{-10, 10, -10},
		{-11, 10, -20},
		{601, 60, 600},
		{-601, 60, -660},
	}
	for _, c := range cases {
		if got := AlignTick(c.tick, c.spacing); got != c.want {
			t.Fatalf("AlignTick(%d, %d) = %d, want %d", c.tick, c.spacing, got, c.want)
		}
	}
}

func TestAlignTickIdempotent(t *testing.T) {
	for _, tick := range []int32{-887271, -12345, -1, 0, 1, 9999, 887271} {
		once := AlignTick(tick, 60)
		if twice := AlignTick(once, 60); twice != once {
			t.Fatalf("AlignTick not idempotent at %d: %d != %d", tick, twice, once)
		}
		if once > tick {
			t.Fatalf("AlignTick(%d) = %d rounded up", tick, once)
		}
	}
}

func TestSqrtPriceAtTickZero(t *testing.T) {
	sp, err := SqrtPriceAtTick(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sp.Cmp(Q96) != 0 {
		t.Fatalf("sqrt price at tick 0 = %v, want %v", sp, Q96)
	}
}

func TestSqrtPriceAtTickMonotonic(t *testing.T) {
	prev, err := SqrtPriceAtTick(-1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for tick := int32(-900); tick <= 1000; tick += 100 {
		sp, err := SqrtPriceAtTick(tick)
		if err != nil {
			t.Fatalf("unexpected error at %d: %v", tick, err)
		}
		if sp.Cmp(prev) <= 0 {
			t.Fatalf("sqrt price not increasing at tick %d: %v <= %v", tick, sp, prev)
		}
		prev = sp
	}
}

func TestSqrtPriceAtTickBounds(t *testing.T) {
	if _, err := SqrtPriceAtTick(MinTick - 1); err == nil {
		t.Fatalf("expected error below MinTick")
	}
	if _, err := SqrtPriceAtTick(MaxTick + 1); err == nil {
		t.Fatalf("expected error above MaxTick")
	}

	lo, err := SqrtPriceAtTick(MinTick)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lo.Cmp(MinSqrtPriceX96) < 0 {
		t.Fatalf("sqrt price at MinTick below floor: %v", lo)
	}
	hi, err := SqrtPriceAtTick(MaxTick)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hi.Cmp(MaxSqrtPriceX96) > 0 {
		t.Fatalf("sqrt price at MaxTick above cap: %v", hi)
	}
}

func TestTickAtSqrtPriceRoundTrip(t *testing.T) {
	for _, tick := range []int32{-120000, -600, -1, 0, 1, 600, 120000} {
		sp, err := SqrtPriceAtTick(tick)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := TickAtSqrtPrice(sp)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tick {
			t.Fatalf("round trip of tick %d gave %d", tick, got)
		}
	}
}

func TestTickAtSqrtPriceRejectsOutOfRange(t *testing.T) {
	if _, err := TickAtSqrtPrice(big.NewInt(1)); err == nil {
		t.Fatalf("expected error below MinSqrtPriceX96")
	}
	over := new(big.Int).Add(MaxSqrtPriceX96, big.NewInt(1))
	if _, err := TickAtSqrtPrice(over); err == nil {
		t.Fatalf("expected error above MaxSqrtPriceX96")
	}
}
