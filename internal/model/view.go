package model

import (
	"fmt"
	"strings"
	"time"
)

type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

// DateLayout is the ISO date format used for board dates.
const DateLayout = "2006-01-02"

func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ViewDay, nil
	case ViewDay, ViewWeek, ViewMonth:
		return v, nil
	default:
		return "", fmt.Errorf("invalid view %q (expected day|week|month)", s)
	}
}

// Next cycles day -> week -> month -> day.
func (v View) Next() View {
	switch v {
	case ViewDay:
		return ViewWeek
	case ViewWeek:
		return ViewMonth
	default:
		return ViewDay
	}
}

// ParseDate parses an ISO date (YYYY-MM-DD) in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns now's calendar date as an ISO string.
func Today(now time.Time) string {
	return FormatDate(now)
}

// Window returns the half-open [start, end) range a board date/view covers.
// Weeks start on Monday.
func Window(date string, view View, loc *time.Location) (time.Time, time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	switch view {
	case ViewDay, "":
		return d, d.AddDate(0, 0, 1), nil
	case ViewWeek:
		offset := (int(d.Weekday()) + 6) % 7
		start := d.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), nil
	case ViewMonth:
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
		return start, start.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("invalid view %q", view)
	}
}

// ShiftDate moves a board date by n steps of the view's span.
func ShiftDate(date string, view View, n int) (string, error) {
	d, err := ParseDate(date, time.UTC)
	if err != nil {
		return "", err
	}
	switch view {
	case ViewWeek:
		d = d.AddDate(0, 0, 7*n)
	case ViewMonth:
		// Clamp to the 1st so Jan 31 + 1 month does not skip February.
		d = time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	default:
		d = d.AddDate(0, 0, n)
	}
	return FormatDate(d), nil
}
