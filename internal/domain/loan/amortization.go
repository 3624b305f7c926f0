package loan

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	cents   = int32(2)
)

type Schedule struct {
	Payment        decimal.Decimal
	TotalRepayment decimal.Decimal
	TotalInterest  decimal.Decimal
	Installments   []Installment
}

// Amortize builds a fixed-payment schedule. The per-period rate is the
// annual rate divided by the periods in a year. Installment i falls i periods
// after first; the last one absorbs cent rounding so the installments always
// sum to the total repayment. When rounding the payment up would leave the
// last installment negative, the payment is rounded down instead.
func Amortize(amount, annualRatePct decimal.Decimal, periods int, unit DurationUnit, first time.Time) Schedule {
	n := decimal.NewFromInt(int64(periods))
	rate := annualRatePct.Div(hundred).Div(decimal.NewFromInt(unit.periodsPerYear()))

	var exact decimal.Decimal
	if rate.IsZero() {
		exact = amount.Div(n)
	} else {
		a, _ := amount.Float64()
		r, _ := rate.Float64()
		exact = decimal.NewFromFloat(a * r / (1 - math.Pow(1+r, -float64(periods))))
	}

	payment := exact.Round(cents)
	total := exact.Mul(n).Round(cents)
	if periods > 1 && payment.Mul(decimal.NewFromInt(int64(periods-1))).GreaterThan(total) {
		payment = exact.RoundFloor(cents)
	}

	items := make([]Installment, periods)
	allocated := decimal.Zero
	for i := 0; i < periods; i++ {
		amt := payment
		if i == periods-1 {
			amt = total.Sub(allocated)
		}
		allocated = allocated.Add(amt)
		items[i] = Installment{
			Seq:        i + 1,
			DueDate:    unit.step(first, i+1),
			Amount:     amt,
			Status:     InstallmentPending,
			PaidAmount: decimal.Zero,
		}
	}

	return Schedule{
		Payment:        payment,
		TotalRepayment: total,
		TotalInterest:  total.Sub(amount),
		Installments:   items,
	}
}
