package calendar

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParse_RoundTrip(t *testing.T) {
	d, err := Parse("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Errorf("expected 2024-02-29, got %s", d)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "2024-13-01", "2024/01/01", "2024-01-01T00:00:00Z"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestNew_Normalizes(t *testing.T) {
	if got := New(2024, time.January, 32); got != MustParse("2024-02-01") {
		t.Errorf("expected 2024-02-01, got %s", got)
	}
}

func TestAddDays_AcrossMonthAndYear(t *testing.T) {
	if got := MustParse("2023-12-31").AddDays(1); got != MustParse("2024-01-01") {
		t.Errorf("got %s", got)
	}
	if got := MustParse("2024-03-01").AddDays(-1); got != MustParse("2024-02-29") {
		t.Errorf("got %s", got)
	}
}

func TestCompare(t *testing.T) {
	a := MustParse("2024-01-05")
	b := MustParse("2024-02-10")
	if !a.Before(b) || b.Before(a) || !b.After(a) {
		t.Error("unexpected ordering")
	}
	if a.Compare(a) != 0 {
		t.Error("expected equal")
	}
	if b.DaysSince(a) != 36 {
		t.Errorf("expected 36 days, got %d", b.DaysSince(a))
	}
}

func TestFromWallClock_SameZone(t *testing.T) {
	kl, err := time.LoadLocation("Asia/Kuala_Lumpur")
	if err != nil {
		t.Skip("tzdata not available")
	}
	naive := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	if got := FromWallClock(naive, kl, kl); got != MustParse("2024-01-01") {
		t.Errorf("expected wall-clock date to be kept, got %s", got)
	}
}

func TestFromWallClock_UTCStoreShiftsToNextDay(t *testing.T) {
	kl, err := time.LoadLocation("Asia/Kuala_Lumpur")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 17:00 UTC is 01:00 the next day in Kuala Lumpur.
	naive := time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC)
	if got := FromWallClock(naive, time.UTC, kl); got != MustParse("2024-01-02") {
		t.Errorf("expected 2024-01-02, got %s", got)
	}
}

func TestWallClockStart_InvertsFromWallClock(t *testing.T) {
	kl, err := time.LoadLocation("Asia/Kuala_Lumpur")
	if err != nil {
		t.Skip("tzdata not available")
	}
	d := MustParse("2024-06-15")
	start := d.WallClockStart(time.UTC, kl)
	if want := time.Date(2024, 6, 14, 16, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("expected %s, got %s", want, start)
	}
	if got := FromWallClock(start, time.UTC, kl); got != d {
		t.Errorf("expected %s, got %s", d, got)
	}
	if got := FromWallClock(start.Add(-time.Second), time.UTC, kl); got != d.AddDays(-1) {
		t.Errorf("expected previous day, got %s", got)
	}
}

func TestDate_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Date `json:"d"`
	}{D: MustParse("2024-01-03")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2024-01-03"}` {
		t.Errorf("unexpected json %s", b)
	}

	var out struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.D != MustParse("2024-01-03") {
		t.Errorf("got %s", out.D)
	}
}

func TestMax(t *testing.T) {
	a := MustParse("2024-01-01")
	b := MustParse("2024-03-01")
	if got := Max(&a, nil, &b); got == nil || *got != b {
		t.Errorf("expected %s, got %v", b, got)
	}
	if got := Max(nil, nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestRange_Days(t *testing.T) {
	r, err := NewRange(MustParse("2024-01-01"), MustParse("2024-01-03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Days() != 3 {
		t.Errorf("expected 3 days, got %d", r.Days())
	}
	dates := r.Dates()
	if len(dates) != 3 || dates[0] != r.Start || dates[2] != r.End {
		t.Errorf("unexpected dates %v", dates)
	}
}

func TestRange_SingleDay(t *testing.T) {
	d := MustParse("2024-05-05")
	r, err := NewRange(d, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Days() != 1 || !r.Contains(d) || r.Contains(d.AddDays(1)) {
		t.Error("single-day range misbehaves")
	}
}

func TestNewRange_Inverted(t *testing.T) {
	_, err := NewRange(MustParse("2024-01-03"), MustParse("2024-01-01"))
	if !errors.Is(err, ErrInvertedRange) {
		t.Errorf("expected ErrInvertedRange, got %v", err)
	}
}

func TestTrailing(t *testing.T) {
	r := Trailing(MustParse("2024-01-30"), 30)
	if r.Start != MustParse("2024-01-01") {
		t.Errorf("expected 2024-01-01, got %s", r.Start)
	}
	if r.Days() != 30 {
		t.Errorf("expected 30 days, got %d", r.Days())
	}
	if Trailing(MustParse("2024-01-30"), 0).Days() != 1 {
		t.Error("expected non-positive window to clamp to one day")
	}
}
