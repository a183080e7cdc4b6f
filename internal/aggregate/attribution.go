package aggregate

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/him/wellness/pkg/calendar"
)

// Key identifies the (entity, category) pair whose first occurrence matters.
type Key struct {
	Entity   string
	Category string
}

// Occurrence is a qualifying record reduced to what attribution needs.
type Occurrence struct {
	Key  Key
	Date calendar.Date
	At   time.Time // original timestamp, first tie-break
	ID   string    // record id, second tie-break
}

// Precedes orders occurrences by date, then timestamp, then record id.
func (o Occurrence) Precedes(p Occurrence) bool {
	if c := o.Date.Compare(p.Date); c != 0 {
		return c < 0
	}
	if !o.At.Equal(p.At) {
		return o.At.Before(p.At)
	}
	return CompareIDs(o.ID, p.ID) < 0
}

// ClassifyFirst returns, aligned with occs, true for the first occurrence of
// each key and false for every later one. Callers must pass the key's full
// history: the answer for a record depends on records outside any report window.
func ClassifyFirst(occs []Occurrence) []bool {
	first := make(map[Key]int, len(occs))
	for i, o := range occs {
		j, ok := first[o.Key]
		if !ok || o.Precedes(occs[j]) {
			first[o.Key] = i
		}
	}
	out := make([]bool, len(occs))
	for _, i := range first {
		out[i] = true
	}
	return out
}

// Earliest returns the index of the earliest occurrence for every key, ordered
// by (entity, category). Later occurrences of a key are absorbed.
func Earliest(occs []Occurrence) []int {
	first := make(map[Key]int, len(occs))
	for i, o := range occs {
		j, ok := first[o.Key]
		if !ok || o.Precedes(occs[j]) {
			first[o.Key] = i
		}
	}
	out := make([]int, 0, len(first))
	for _, i := range first {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool {
		ka, kb := occs[out[a]].Key, occs[out[b]].Key
		if ka.Entity != kb.Entity {
			return CompareIDs(ka.Entity, kb.Entity) < 0
		}
		return ka.Category < kb.Category
	})
	return out
}

// Identity is an entity id plus an optional cross-reference key (an MRN).
type Identity struct {
	EntityID string
	CrossRef *string
}

// SameEntity matches on the cross-reference key when both sides carry one and
// falls back to the entity id when either side lacks it.
func SameEntity(a, b Identity) bool {
	if a.CrossRef != nil && b.CrossRef != nil {
		return *a.CrossRef == *b.CrossRef
	}
	return a.EntityID == b.EntityID
}

// Denied reports whether any value contains term, case-insensitively. A nil
// value is denied, as it cannot be shown not to match.
func Denied(term string, values ...*string) bool {
	term = strings.ToLower(term)
	for _, v := range values {
		if v == nil {
			return true
		}
		if term != "" && strings.Contains(strings.ToLower(*v), term) {
			return true
		}
	}
	return false
}

// CompareIDs compares numerically when both ids are integers, else as strings.
func CompareIDs(a, b string) int {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}
