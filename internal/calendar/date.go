package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// DateLayout is the ISO calendar-date format used for occurrence dates.
const DateLayout = "2006-01-02"

// Dates are civil days carried as time.Time at 00:00 UTC. Arithmetic on them
// never crosses a DST edge, and the local zone only matters when "today" is
// derived from a wall clock (see Today).

// Civil truncates t to its calendar day in t's own location.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the civil day of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return Civil(now.In(loc))
}

// Midnight returns the instant at which date begins in loc.
func Midnight(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// AddDays shifts a civil date by n days.
func AddDays(date time.Time, n int) time.Time { return date.AddDate(0, 0, n) }

// DaysBetween returns the whole days from a to b (negative if b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(Civil(b).Sub(Civil(a)).Hours() / 24)
}

// MonthsBetween returns the calendar-month distance from a to b, ignoring days.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// EndOfSecondNextMonth returns the last day of the month two months after
// date's month: 2024-01-15 -> 2024-03-31, 2024-11-30 -> 2025-01-31.
func EndOfSecondNextMonth(date time.Time) time.Time {
	y, m, _ := date.Date()
	return time.Date(y, m+3, 0, 0, 0, 0, 0, time.UTC)
}

// FirstOfMonth and LastOfMonth bound a calendar month.
func FirstOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func LastOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}

// NextOccurrenceAfter scans date (inclusive) and the following withinDays-1
// days for the first day whose weekday is allowed.
func NextOccurrenceAfter(date time.Time, weekdays []Weekday, withinDays int) (time.Time, bool) {
	for i := 0; i < withinDays; i++ {
		d := AddDays(date, i)
		if Contains(weekdays, WeekdayOf(d)) {
			return d, true
		}
	}
	return time.Time{}, false
}

// NextAllowedAfter is the strict variant: it scans offsets 1..maxDays.
func NextAllowedAfter(date time.Time, weekdays []Weekday, maxDays int) (time.Time, bool) {
	for i := 1; i <= maxDays; i++ {
		d := AddDays(date, i)
		if Contains(weekdays, WeekdayOf(d)) {
			return d, true
		}
	}
	return time.Time{}, false
}

// EligibleDays enumerates every day in [from, until] whose weekday is allowed,
// in ascending order.
func EligibleDays(from, until time.Time, weekdays []Weekday) ([]time.Time, error) {
	if len(weekdays) == 0 || until.Before(from) {
		return nil, nil
	}
	byDay := make([]rrule.Weekday, 0, len(weekdays))
	for _, w := range weekdays {
		if !w.Valid() {
			return nil, fmt.Errorf("invalid weekday %d", int(w))
		}
		byDay = append(byDay, weekdayTable[w].rr)
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   Civil(from),
		Until:     Civil(until),
		Byweekday: byDay,
	})
	if err != nil {
		return nil, fmt.Errorf("weekday rule: %w", err)
	}
	days := r.All()
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		out = append(out, Civil(d))
	}
	return out, nil
}
