package progression

import "time"

// MonthsBetween counts whole calendar months from start to end. A month is
// complete once the same day and time of day is reached; when the target
// month is shorter, its last day stands in for the missing one. An end before
// start yields 0. Both instants are read in UTC so the count does not depend
// on the zone a store hands back.
func MonthsBetween(start, end time.Time) int {
	if start.IsZero() || !end.After(start) {
		return 0
	}
	start, end = start.UTC(), end.UTC()

	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	if months > 0 && addMonths(start, months).After(end) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// addMonths moves t forward n months, clamping to the last day of the target month.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
