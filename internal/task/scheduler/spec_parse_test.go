package scheduler

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw    string
		kind   SpecKind
		cron   string
		every  time.Duration
		source string
	}{
		{raw: "@every 6h", kind: SpecCron, cron: "@every 6h", source: "cron"},
		{raw: " 0 9 * * * ", kind: SpecCron, cron: "0 9 * * *", source: "cron"},
		{raw: "CRON:0 0 1 * *", kind: SpecCron, cron: "0 0 1 * *", source: "cron"},
		{raw: "6h", kind: SpecInterval, every: 6 * time.Hour, source: "duration"},
		{raw: "every: 90m", kind: SpecInterval, every: 90 * time.Minute, source: "duration"},
		{raw: "06:00", kind: SpecInterval, every: 6 * time.Hour, source: "hhmm"},
		{raw: "interval:100:30", kind: SpecInterval, every: 100*time.Hour + 30*time.Minute, source: "hhmm"},
	}
	for _, tc := range tests {
		got, err := ParseSchedule(tc.raw)
		if err != nil {
			t.Fatalf("ParseSchedule(%q): %v", tc.raw, err)
		}
		if got.Kind != tc.kind || got.Cron != tc.cron || got.Every != tc.every || got.Source != tc.source {
			t.Fatalf("ParseSchedule(%q) = %+v", tc.raw, got)
		}
	}
}

func TestParseScheduleRejects(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "   ", "cron:", "tomorrow", "06:75", "0s", "-5m", "interval:"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q) should fail", raw)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		h, m   int
		wantOK bool
	}{
		{"09:00", 9, 0, true},
		{" 23:59 ", 23, 59, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"9", 0, 0, false},
	}
	for _, tc := range tests {
		h, m, err := parseHHMM(tc.in)
		if (err == nil) != tc.wantOK || h != tc.h || m != tc.m {
			t.Fatalf("parseHHMM(%q) = %d %d %v", tc.in, h, m, err)
		}
	}
}
