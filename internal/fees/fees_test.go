package fees

import (
	"math/big"
	"testing"

	"github.com/web3pay/payer-svc/internal/data"
)

func schedule(min, max, percent, div int64) data.FeeSchedule {
	return data.FeeSchedule{
		Min:     big.NewInt(min),
		Max:     big.NewInt(max),
		Percent: big.NewInt(percent),
		Div:     big.NewInt(div),
	}
}

func TestCalc_DisabledSchedule(t *testing.T) {
	s := schedule(10, 1000, 5, 0)
	for _, amount := range []int64{0, 1, 1000, 1 << 60} {
		if fee := Calc(big.NewInt(amount), s); fee.Sign() != 0 {
			t.Errorf("amount %d: expected zero fee for zero divisor, got %s", amount, fee)
		}
	}
}

func TestCalc_Percentage(t *testing.T) {
	fee := Calc(big.NewInt(1000), schedule(0, 1000, 5, 100))
	if fee.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("expected fee 50, got %s", fee)
	}
}

func TestCalc_Clamping(t *testing.T) {
	s := schedule(20, 70, 5, 100)

	if fee := Calc(big.NewInt(100), s); fee.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("expected min clamp 20, got %s", fee)
	}
	if fee := Calc(big.NewInt(10_000), s); fee.Cmp(big.NewInt(70)) != 0 {
		t.Errorf("expected max clamp 70, got %s", fee)
	}
	if fee := Calc(big.NewInt(1000), s); fee.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("expected 50 inside bounds, got %s", fee)
	}
}

func TestCalc_Rounding(t *testing.T) {
	// 333 * 5 / 100 = 16.65 rounds to a whole token unit
	fee := Calc(big.NewInt(333), schedule(0, 1000, 5, 100))
	if fee.Cmp(big.NewInt(17)) != 0 {
		t.Errorf("expected rounded fee 17, got %s", fee)
	}
}

func TestCalc_BeyondUint64(t *testing.T) {
	amount, ok := new(big.Int).SetString("340282366920938463463374607431768211456", 10) // 2^128
	if !ok {
		t.Fatal("failed to build amount")
	}
	max := new(big.Int).Mul(amount, big.NewInt(10))

	fee := Calc(amount, data.FeeSchedule{
		Min:     big.NewInt(0),
		Max:     max,
		Percent: big.NewInt(25),
		Div:     big.NewInt(100),
	})

	want := new(big.Int).Div(new(big.Int).Mul(amount, big.NewInt(25)), big.NewInt(100))
	if fee.Cmp(want) != 0 {
		t.Errorf("expected %s, got %s", want, fee)
	}
}

func TestCalc_BoundsHold(t *testing.T) {
	s := schedule(3, 900, 7, 250)
	for _, amount := range []int64{0, 1, 99, 1000, 123456, 1 << 40} {
		fee := Calc(big.NewInt(amount), s)
		if fee.Cmp(s.Min) < 0 || fee.Cmp(s.Max) > 0 {
			t.Errorf("amount %d: fee %s escaped [%s, %s]", amount, fee, s.Min, s.Max)
		}
	}
}
