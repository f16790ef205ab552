package ledger

import "github.com/shopspring/decimal"

// Scale is the fractional precision of every stored quantity, price and amount.
const Scale int32 = 8

// WeightedAverage is the entry price after adding qty at price to a position of
// oldQty at oldAvg. Results are rounded half-up to Scale digits.
func WeightedAverage(oldQty, oldAvg, qty, price decimal.Decimal) decimal.Decimal {
	total := oldQty.Add(qty)
	if !total.IsPositive() {
		return decimal.Zero
	}
	cost := oldQty.Mul(oldAvg).Add(qty.Mul(price))
	return cost.DivRound(total, Scale)
}
