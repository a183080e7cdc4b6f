package aggregate

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/him/wellness/pkg/calendar"
)

func mustRange(t *testing.T, start, end string) calendar.Range {
	t.Helper()
	r, err := calendar.NewRange(calendar.MustParse(start), calendar.MustParse(end))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return r
}

func TestBucketByDay_ZeroFillScenario(t *testing.T) {
	rng := mustRange(t, "2024-01-01", "2024-01-03")
	d1 := calendar.MustParse("2024-01-01")
	d3 := calendar.MustParse("2024-01-03")
	entries := []Entry{
		{Date: d1, Category: "catA"},
		{Date: d1, Category: "catA"},
		{Date: d3, Category: "catA"},
	}

	buckets := BucketByDay(rng, entries)
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	want := []map[string]int{{"catA": 2}, {"catA": 0}, {"catA": 1}}
	for i, b := range buckets {
		if b.Date != rng.Start.AddDays(i) {
			t.Errorf("bucket %d: expected date %s, got %s", i, rng.Start.AddDays(i), b.Date)
		}
		if !reflect.DeepEqual(b.Counts, want[i]) {
			t.Errorf("bucket %d: expected %v, got %v", i, want[i], b.Counts)
		}
	}
}

func TestBucketByDay_CountMatchesRangeLength(t *testing.T) {
	ranges := [][2]string{
		{"2024-01-01", "2024-01-01"},
		{"2024-02-20", "2024-03-05"},
		{"2023-12-15", "2024-01-14"},
	}
	for _, pair := range ranges {
		rng := mustRange(t, pair[0], pair[1])
		buckets := BucketByDay(rng, nil)
		if len(buckets) != rng.End.DaysSince(rng.Start)+1 {
			t.Errorf("%s: expected %d buckets, got %d", rng, rng.Days(), len(buckets))
		}
		for _, b := range buckets {
			if !rng.Contains(b.Date) {
				t.Errorf("%s: bucket date %s outside range", rng, b.Date)
			}
		}
	}
}

func TestBucketByDay_SkipsOutOfRange(t *testing.T) {
	rng := mustRange(t, "2024-01-02", "2024-01-02")
	entries := []Entry{
		{Date: calendar.MustParse("2024-01-01"), Category: "x"},
		{Date: calendar.MustParse("2024-01-02"), Category: "x"},
		{Date: calendar.MustParse("2024-01-03"), Category: "y"},
	}
	buckets := BucketByDay(rng, entries)
	if buckets[0].Total != 1 {
		t.Errorf("expected total 1, got %d", buckets[0].Total)
	}
	// Categories from the whole input keep the series keys consistent.
	if _, ok := buckets[0].Counts["y"]; !ok {
		t.Error("expected category y to be pre-seeded")
	}
}

func TestBucketByDay_UnknownCategoryCountsOnlyTowardTotal(t *testing.T) {
	rng := mustRange(t, "2024-01-01", "2024-01-01")
	d := rng.Start
	entries := []Entry{
		{Date: d, Category: "FACIAL", Amount: decimal.NewFromInt(100)},
		{Date: d, Category: UnknownCategory, Amount: decimal.NewFromInt(50)},
		{Date: d, Category: "", Amount: decimal.NewFromInt(25)},
	}
	b := BucketByDay(rng, entries)[0]
	if b.Total != 3 {
		t.Errorf("expected total 3, got %d", b.Total)
	}
	if !b.Amount.Equal(decimal.NewFromInt(175)) {
		t.Errorf("expected amount 175, got %s", b.Amount)
	}
	if len(b.Counts) != 1 || b.Counts["FACIAL"] != 1 {
		t.Errorf("unexpected counts %v", b.Counts)
	}
}

func TestBucketByDay_PinnedCategories(t *testing.T) {
	rng := mustRange(t, "2024-01-01", "2024-01-02")
	buckets := BucketByDay(rng, nil, ConsultationSlot, TreatmentSlot)
	for _, b := range buckets {
		if len(b.Counts) != 2 || b.Counts[ConsultationSlot] != 0 || b.Counts[TreatmentSlot] != 0 {
			t.Errorf("expected pinned zero counts, got %v", b.Counts)
		}
	}
}

func TestBucketByDay_Deterministic(t *testing.T) {
	rng := mustRange(t, "2024-01-01", "2024-01-05")
	entries := []Entry{
		{Date: calendar.MustParse("2024-01-02"), Category: "b"},
		{Date: calendar.MustParse("2024-01-04"), Category: "a"},
	}
	first := BucketByDay(rng, entries)
	second := BucketByDay(rng, entries)
	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical output for identical input")
	}
}

func TestCategories_SortedUnion(t *testing.T) {
	entries := []Entry{{Category: "b"}, {Category: "a"}, {Category: UnknownCategory}, {Category: "b"}}
	got := Categories(entries, "c", "")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("unexpected categories %v", got)
	}
}

func TestResolveRange(t *testing.T) {
	today := calendar.MustParse("2024-06-30")
	latest := calendar.MustParse("2024-03-14")

	explicit := mustRange(t, "2024-01-01", "2024-01-31")
	if got := ResolveRange(&explicit, &latest, today, 30); got != explicit {
		t.Errorf("explicit range should win, got %s", got)
	}

	got := ResolveRange(nil, &latest, today, OccupancyWindow)
	if got.End != latest || got.Start != calendar.MustParse("2024-03-01") {
		t.Errorf("expected 2024-03-01..2024-03-14, got %s", got)
	}

	got = ResolveRange(nil, nil, today, SalesTrendWindow)
	if got.End != today || got.Days() != 30 {
		t.Errorf("expected 30 days ending today, got %s", got)
	}
}
