// Package calendar provides a civil (wall-calendar) date type. A Date carries
// no time of day and no location, so comparing or bucketing two Dates can never
// drift across a timezone boundary.
package calendar

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layout is the wire format of a Date.
const Layout = "2006-01-02"

// Date is a calendar day. The zero value is not a valid date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New returns the normalized date for y-m-d, so New(2024, 1, 32) is 2024-02-01.
func New(year int, month time.Month, day int) Date {
	return Of(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Of returns the calendar fields of t as they read in t's own location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// In returns the date of the instant t as observed in loc.
func In(t time.Time, loc *time.Location) Date {
	return Of(t.In(loc))
}

// FromWallClock interprets a naive timestamp (a "timestamp without time zone"
// whose fields were recorded in store) and returns its date in report.
func FromWallClock(naive time.Time, store, report *time.Location) Date {
	y, m, d := naive.Date()
	hh, mm, ss := naive.Clock()
	instant := time.Date(y, m, d, hh, mm, ss, naive.Nanosecond(), store)
	return In(instant, report)
}

// Today returns the current date in loc.
func Today(loc *time.Location) Date {
	return In(time.Now(), loc)
}

// Parse parses a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Of(t), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// StartIn returns midnight of d in loc.
func (d Date) StartIn(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// WallClockStart returns the naive timestamp, as recorded in store, at which
// the report-zone day d begins. It is the inverse of FromWallClock and is used
// to build half-open bounds for queries on naive timestamp columns.
func (d Date) WallClockStart(store, report *time.Location) time.Time {
	t := d.StartIn(report).In(store)
	y, m, dd := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, dd, hh, mm, ss, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return Of(d.utc().AddDate(0, 0, n))
}

// DaysSince returns d - o in whole days.
func (d Date) DaysSince(o Date) int {
	return int(d.utc().Sub(o.utc()).Hours() / 24)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Max returns the latest non-nil date, or nil when every argument is nil.
func Max(dates ...*Date) *Date {
	var latest *Date
	for _, d := range dates {
		if d == nil || d.IsZero() {
			continue
		}
		if latest == nil || d.After(*latest) {
			v := *d
			latest = &v
		}
	}
	return latest
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
