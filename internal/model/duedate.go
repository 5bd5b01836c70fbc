package model

import "time"

const (
	// DateLayout is the YYYY-MM-DD format used for due dates.
	DateLayout = "2006-01-02"

	dueAfterDays = 7
)

// DueDate returns the calendar date seven days after now in now's location.
func DueDate(now time.Time) string {
	return now.AddDate(0, 0, dueAfterDays).Format(DateLayout)
}

// ParseDueDate parses a due date in the local time zone.
func ParseDueDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.Local)
}
