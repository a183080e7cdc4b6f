package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/him/wellness/pkg/calendar"
)

// UnknownCategory marks an entry whose category is missing. Such entries count
// toward a bucket's Total and Amount but never get a key in Counts.
const UnknownCategory = "N/A"

// Entry is one dated observation fed to BucketByDay.
type Entry struct {
	Date     calendar.Date
	Category string
	Amount   decimal.Decimal
}

// Bucket is one calendar day of aggregated entries. Counts is an open key set:
// every category seen in the input (or pinned by the caller) is present, with
// zero on days without activity.
type Bucket struct {
	Date   calendar.Date
	Counts map[string]int
	Total  int
	Amount decimal.Decimal
}

// Count returns the bucket's count for category, zero when absent.
func (b Bucket) Count(category string) int {
	return b.Counts[category]
}

// KnownCategory reports whether c is usable as a series key.
func KnownCategory(c string) bool {
	return c != "" && c != UnknownCategory
}

// Categories returns the sorted union of known categories in entries and pinned.
func Categories(entries []Entry, pinned ...string) []string {
	seen := make(map[string]struct{}, len(pinned))
	for _, c := range pinned {
		if KnownCategory(c) {
			seen[c] = struct{}{}
		}
	}
	for _, e := range entries {
		if KnownCategory(e.Category) {
			seen[e.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// BucketByDay folds entries into one bucket per day of rng, ascending. Entries
// dated outside rng are ignored.
func BucketByDay(rng calendar.Range, entries []Entry, pinned ...string) []Bucket {
	categories := Categories(entries, pinned...)
	dates := rng.Dates()

	buckets := make([]Bucket, len(dates))
	index := make(map[calendar.Date]int, len(dates))
	for i, d := range dates {
		counts := make(map[string]int, len(categories))
		for _, c := range categories {
			counts[c] = 0
		}
		buckets[i] = Bucket{Date: d, Counts: counts, Amount: decimal.Zero}
		index[d] = i
	}

	for _, e := range entries {
		i, ok := index[e.Date]
		if !ok {
			continue
		}
		b := &buckets[i]
		b.Total++
		b.Amount = b.Amount.Add(e.Amount)
		if KnownCategory(e.Category) {
			b.Counts[e.Category]++
		}
	}
	return buckets
}
