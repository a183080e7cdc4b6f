package aggregate

import "github.com/shopspring/decimal"

// Round rounds v half away from zero to the given number of places.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Sum adds values; an empty input sums to zero.
func Sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Mean is the arithmetic mean, 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var s float64
	for _, v := range values {
		s += v
	}
	return s / float64(len(values))
}

// TrendPercent is the day-over-day change of latest against previous, rounded
// to one place. A zero or negative previous value gives 0.
func TrendPercent(latest, previous decimal.Decimal) float64 {
	if !previous.IsPositive() {
		return 0
	}
	f, _ := latest.Sub(previous).
		Mul(decimal.NewFromInt(100)).
		Div(previous).
		Round(1).
		Float64()
	return f
}

// Summary folds a series into scalars.
type Summary struct {
	Total decimal.Decimal
	Mean  decimal.Decimal
	Trend float64
}

// Summarize totals and averages values and compares the last value with the
// one before it.
func Summarize(values []decimal.Decimal) Summary {
	s := Summary{Total: Sum(values), Mean: decimal.Zero}
	if n := len(values); n > 0 {
		s.Mean = s.Total.Div(decimal.NewFromInt(int64(n)))
		if n > 1 {
			s.Trend = TrendPercent(values[n-1], values[n-2])
		}
	}
	return s
}

// AmountSeries pulls each bucket's amount, preserving order.
func AmountSeries(buckets []Bucket) []decimal.Decimal {
	out := make([]decimal.Decimal, len(buckets))
	for i, b := range buckets {
		out[i] = b.Amount
	}
	return out
}
