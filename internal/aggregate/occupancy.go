package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/him/wellness/pkg/calendar"
)

// Slot categories bucketed by the occupancy report.
const (
	ConsultationSlot = "consultation"
	TreatmentSlot    = "treatment"
)

// Rate returns count/capacity as a percentage rounded to two places. It is not
// clamped: volume above capacity yields more than 100. A non-positive capacity
// yields 0.
func Rate(count, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	r := decimal.NewFromInt(int64(count)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(capacity))).
		Round(2)
	f, _ := r.Float64()
	return f
}

// RatePoint is one day of occupancy for a slot category.
type RatePoint struct {
	Date  calendar.Date
	Count int
	Rate  float64
}

// Occupancy converts the category's daily counts into rates.
func Occupancy(buckets []Bucket, category string, capacity int) []RatePoint {
	out := make([]RatePoint, len(buckets))
	for i, b := range buckets {
		n := b.Count(category)
		out[i] = RatePoint{Date: b.Date, Count: n, Rate: Rate(n, capacity)}
	}
	return out
}

// MeanRate averages per-day rates (not summed counts over summed capacity),
// rounded to two places.
func MeanRate(points []RatePoint) float64 {
	rates := make([]float64, len(points))
	for i, p := range points {
		rates[i] = p.Rate
	}
	return Round(Mean(rates), 2)
}
