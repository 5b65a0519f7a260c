package planner

import "fmt"

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Blurb is the one-line trip summary. calendarDays comes from the date range
// and falls back to the number of timeline days for undated trips.
func Blurb(calendarDays, timelineDays, photos, stops int) string {
	if photos == 0 {
		return ""
	}
	days := calendarDays
	if days == 0 {
		days = max(timelineDays, 1)
	}

	switch {
	case stops >= 20:
		return fmt.Sprintf("A %d-day trip with %s across about %d places.", days, plural(photos, "photo"), stops)
	case stops > 0:
		return fmt.Sprintf("A %d-day trip captured in %s across %s.", days, plural(photos, "photo"), plural(stops, "stop"))
	}
	return fmt.Sprintf("A %d-day trip captured in %s.", days, plural(photos, "photo"))
}
