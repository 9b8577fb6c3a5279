// Package dates holds the date arithmetic the step schedule is built on.
// Dates are passed around as YYYY-MM-DD strings; all math happens on
// midnight-UTC day boundaries so a difference of one calendar day is always
// exactly one.
package dates

import (
	"fmt"
	"time"
)

const Layout = "2006-01-02"

// Parse parses a YYYY-MM-DD date string.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Valid reports whether s is a well-formed YYYY-MM-DD date.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Format renders t as a YYYY-MM-DD date in UTC.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

func truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b; positive when b is
// after a. Both arguments are truncated to day boundaries first.
func DaysBetween(a, b time.Time) int {
	return int(truncate(b).Sub(truncate(a)).Hours() / 24)
}

// AddDays returns date shifted by n calendar days.
func AddDays(date time.Time, n int) time.Time {
	return truncate(date).AddDate(0, 0, n)
}

// AddWorkingDays returns date shifted by n days, skipping Saturdays and
// Sundays when allowWeekends is false. n must be non-negative.
func AddWorkingDays(date time.Time, n int, allowWeekends bool) time.Time {
	if allowWeekends {
		return AddDays(date, n)
	}
	d := truncate(date)
	for n > 0 {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		n--
	}
	return d
}
