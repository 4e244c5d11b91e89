// Package fees computes the bounded percentage service fee of an order
// amount. Amounts are blockchain integers that can exceed the native 64-bit
// range, so all arithmetic goes through arbitrary-precision decimals.
package fees

import (
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/web3pay/payer-svc/internal/data"
)

// Calc returns the service fee for amount under the given schedule:
// amount * percent / div, clamped to [min, max] and rounded to a whole
// token unit. A zero divisor disables the schedule and yields a zero fee.
func Calc(amount *big.Int, schedule data.FeeSchedule) *big.Int {
	if schedule.Div == nil || schedule.Div.Sign() == 0 {
		return big.NewInt(0)
	}

	raw := dec(amount).Mul(dec(schedule.Percent)).Div(dec(schedule.Div))

	if raw.LessThan(dec(schedule.Min)) {
		return bigOrZero(schedule.Min)
	}
	if raw.GreaterThan(dec(schedule.Max)) {
		return bigOrZero(schedule.Max)
	}

	return raw.Round(0).BigInt()
}

func dec(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
