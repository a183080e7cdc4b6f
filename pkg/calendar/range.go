package calendar

import (
	"errors"
	"fmt"
)

var ErrInvertedRange = errors.New("start date is after end date")

// Range is an inclusive span of calendar days.
type Range struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewRange validates start <= end.
func NewRange(start, end Date) (Range, error) {
	if start.After(end) {
		return Range{}, fmt.Errorf("%s..%s: %w", start, end, ErrInvertedRange)
	}
	return Range{Start: start, End: end}, nil
}

// Trailing returns the window of n days ending on end (n < 1 is treated as 1).
func Trailing(end Date, n int) Range {
	if n < 1 {
		n = 1
	}
	return Range{Start: end.AddDays(-(n - 1)), End: end}
}

// Days returns the number of days in the range, both ends included.
func (r Range) Days() int {
	return r.End.DaysSince(r.Start) + 1
}

func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Dates enumerates every day of the range in ascending order.
func (r Range) Dates() []Date {
	n := r.Days()
	if n <= 0 {
		return nil
	}
	out := make([]Date, 0, n)
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

func (r Range) String() string {
	return r.Start.String() + ".." + r.End.String()
}
