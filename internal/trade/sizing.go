package trade

import "github.com/shopspring/decimal"

// Sizing decides how much cash a buy commits.
type Sizing struct {
	SpendFraction decimal.Decimal
	MinSpend      decimal.Decimal
	MinQty        decimal.Decimal
	Scale         int32
}

func DefaultSizing() Sizing {
	return Sizing{
		SpendFraction: decimal.RequireFromString("0.10"),
		MinSpend:      decimal.RequireFromString("25.00"),
		MinQty:        decimal.RequireFromString("0.00001000"),
		Scale:         8,
	}
}

// Spend is SpendFraction of cash, raised to MinSpend. ok is false when the
// result exceeds cash.
func (s Sizing) Spend(cash decimal.Decimal) (decimal.Decimal, bool) {
	spend := cash.Mul(s.SpendFraction)
	if spend.LessThan(s.MinSpend) {
		spend = s.MinSpend
	}
	if cash.LessThan(spend) {
		return decimal.Zero, false
	}
	return spend, true
}

// Quantity is spend/price truncated to Scale digits. ok is false for dust.
func (s Sizing) Quantity(spend, price decimal.Decimal) (decimal.Decimal, bool) {
	qty, _ := spend.QuoRem(price, s.Scale)
	if qty.LessThan(s.MinQty) {
		return decimal.Zero, false
	}
	return qty, true
}
