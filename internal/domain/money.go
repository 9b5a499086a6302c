package domain

import "github.com/shopspring/decimal"

// sharePlaces is the number of decimal places a share amount is kept to.
const sharePlaces = 2

// ShareAmount splits total evenly across headcount members and rounds the
// result to two decimal places, ties rounding toward zero (half-down).
//
// The division is exact: the quotient is truncated at the target precision
// and the remainder decides the rounding, so repeating decimals never leak a
// binary or precision artifact into the tie check.
func ShareAmount(total decimal.Decimal, headcount int) decimal.Decimal {
	if headcount <= 0 {
		return decimal.Zero
	}
	return divRoundHalfDown(total, decimal.NewFromInt(int64(headcount)), sharePlaces)
}

// divRoundHalfDown returns num/den rounded to places decimals, half-down.
// num and den must be positive.
func divRoundHalfDown(num, den decimal.Decimal, places int32) decimal.Decimal {
	q, r := num.QuoRem(den, places)
	if r.IsZero() {
		return q
	}
	// r is in [0, den*unit). Compare 2r with den*unit to locate the exact midpoint.
	unit := decimal.New(1, -places)
	twice := r.Add(r)
	if twice.GreaterThan(den.Mul(unit)) {
		return q.Add(unit)
	}
	return q
}
