package manifest

import (
	"fmt"
	"time"

	"github.com/kozaktomas/trip-book/internal/constants"
)

// DateRange is the span of capture dates of a book.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	Label string     `json:"label"`
	Days  int        `json:"days"`
}

// ComputeDateRange returns the first and last capture time of the assets and a
// printable label. Without any timestamp the label is "Unknown dates".
func ComputeDateRange(assets []AssetRecord) DateRange {
	var start, end *time.Time
	for _, a := range assets {
		if !a.Dated() {
			continue
		}
		t := *a.TakenAt
		if start == nil || t.Before(*start) {
			start = &t
		}
		if end == nil || t.After(*end) {
			end = &t
		}
	}
	if start == nil {
		return DateRange{Label: constants.UnknownDatesLabel}
	}
	return DateRange{
		Start: start,
		End:   end,
		Label: formatRange(*start, *end),
		Days:  calendarDays(*start, *end),
	}
}

func formatRange(start, end time.Time) string {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	switch {
	case sy == ey && sm == em && sd == ed:
		return start.Format("January 2, 2006")
	case sy == ey && sm == em:
		return fmt.Sprintf("%s %d-%d, %d", sm, sd, ed, sy)
	case sy == ey:
		return fmt.Sprintf("%s %d - %s %d, %d", sm, sd, em, ed, sy)
	default:
		return start.Format("January 2, 2006") + " - " + end.Format("January 2, 2006")
	}
}

// calendarDays counts distinct calendar dates from start to end inclusive.
func calendarDays(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}
