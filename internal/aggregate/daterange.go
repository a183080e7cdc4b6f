// Package aggregate holds the report-independent rules behind every dashboard
// figure: default window resolution, zero-filled daily bucketing, first
// occurrence attribution, occupancy rates and trend summaries. Nothing here
// touches the store; callers feed it rows already normalized to calendar.Date.
package aggregate

import "github.com/him/wellness/pkg/calendar"

// Report windows in days, used when the caller supplies no range.
const (
	SalesTrendWindow   = 30
	RegistrationWindow = 30
	ClosingWindow      = 30
	OccupancyWindow    = 14
)

// ResolveRange returns explicit when set. Otherwise it returns the window of
// the given length ending on latest, or ending on today when there is no data.
func ResolveRange(explicit *calendar.Range, latest *calendar.Date, today calendar.Date, window int) calendar.Range {
	if explicit != nil {
		return *explicit
	}
	end := today
	if latest != nil && !latest.IsZero() {
		end = *latest
	}
	return calendar.Trailing(end, window)
}
