package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Weekday is the scheduler's own weekday symbol. Values match time.Weekday
// numbering (Sun=0..Sat=6) through weekdayTable, never by cast.
type Weekday int

const (
	Sun Weekday = iota
	Mon
	Tue
	Wed
	Thu
	Fri
	Sat
)

type weekdayInfo struct {
	std   time.Weekday
	rr    rrule.Weekday
	short string
	ko    string
	long  string
}

var weekdayTable = [7]weekdayInfo{
	Sun: {std: time.Sunday, rr: rrule.SU, short: "Sun", ko: "일", long: "sunday"},
	Mon: {std: time.Monday, rr: rrule.MO, short: "Mon", ko: "월", long: "monday"},
	Tue: {std: time.Tuesday, rr: rrule.TU, short: "Tue", ko: "화", long: "tuesday"},
	Wed: {std: time.Wednesday, rr: rrule.WE, short: "Wed", ko: "수", long: "wednesday"},
	Thu: {std: time.Thursday, rr: rrule.TH, short: "Thu", ko: "목", long: "thursday"},
	Fri: {std: time.Friday, rr: rrule.FR, short: "Fri", ko: "금", long: "friday"},
	Sat: {std: time.Saturday, rr: rrule.SA, short: "Sat", ko: "토", long: "saturday"},
}

// stdToWeekday is the reverse half of weekdayTable.
var stdToWeekday = func() map[time.Weekday]Weekday {
	m := make(map[time.Weekday]Weekday, len(weekdayTable))
	for w, info := range weekdayTable {
		m[info.std] = Weekday(w)
	}
	return m
}()

func (w Weekday) Valid() bool { return w >= Sun && w <= Sat }

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayTable[w].short
}

// Korean returns the single-character label used by the rule source and the API.
func (w Weekday) Korean() string {
	if !w.Valid() {
		return ""
	}
	return weekdayTable[w].ko
}

func (w Weekday) Std() time.Weekday { return weekdayTable[w].std }

// FromStd maps a time.Weekday into the scheduler's enum.
func FromStd(d time.Weekday) Weekday { return stdToWeekday[d] }

// WeekdayOf returns the weekday of a calendar date.
func WeekdayOf(date time.Time) Weekday { return FromStd(date.Weekday()) }

// ParseWeekday accepts the Korean label ("월"), the short name ("Mon") or the
// full English name ("monday"), case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "요일")
	for w, info := range weekdayTable {
		if s == info.ko || strings.EqualFold(s, info.short) || strings.EqualFold(s, info.long) {
			return Weekday(w), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// MarshalText renders the Korean label so API payloads keep the rule source's vocabulary.
func (w Weekday) MarshalText() ([]byte, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(w))
	}
	return []byte(w.Korean()), nil
}

func (w *Weekday) UnmarshalText(b []byte) error {
	v, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// Contains reports whether w is in set.
func Contains(set []Weekday, w Weekday) bool {
	for _, s := range set {
		if s == w {
			return true
		}
	}
	return false
}
