package chore

import (
	"fmt"
	"strings"
)

// Frequency is the spacing between consecutive occurrences of a rule.
type Frequency int

const (
	Daily Frequency = iota
	EveryOtherDay
	Weekly
	EveryOtherWeek
	Monthly
)

var frequencyNames = [...]struct {
	en, ko string
}{
	Daily:          {"daily", "매일"},
	EveryOtherDay:  {"every_other_day", "격일"},
	Weekly:         {"weekly", "매주"},
	EveryOtherWeek: {"every_other_week", "격주"},
	Monthly:        {"monthly", "매달"},
}

func (f Frequency) Valid() bool { return f >= Daily && f <= Monthly }

func (f Frequency) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
	return frequencyNames[f].en
}

// Korean returns the label used in the rule source.
func (f Frequency) Korean() string {
	if !f.Valid() {
		return ""
	}
	return frequencyNames[f].ko
}

// ParseFrequency accepts the Korean label or the English name.
func ParseFrequency(s string) (Frequency, error) {
	s = strings.TrimSpace(s)
	for i, n := range frequencyNames {
		if s == n.ko || strings.EqualFold(s, n.en) {
			return Frequency(i), nil
		}
	}
	return 0, fmt.Errorf("unknown frequency %q", s)
}

func (f Frequency) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid frequency %d", int(f))
	}
	return []byte(f.Korean()), nil
}

func (f *Frequency) UnmarshalText(b []byte) error {
	v, err := ParseFrequency(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
