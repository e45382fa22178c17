package calendar

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestWeekdayTableRoundTrip(t *testing.T) {
	t.Parallel()
	for d := time.Sunday; d <= time.Saturday; d++ {
		w := FromStd(d)
		if w.Std() != d {
			t.Fatalf("FromStd(%v).Std() = %v", d, w.Std())
		}
		parsed, err := ParseWeekday(w.Korean())
		if err != nil || parsed != w {
			t.Fatalf("ParseWeekday(%q) = %v, %v", w.Korean(), parsed, err)
		}
	}
	if FromStd(time.Sunday) != Sun || FromStd(time.Monday) != Mon {
		t.Fatal("sunday/monday mapping broken")
	}
}

func TestParseWeekdayVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Weekday
	}{
		{"월", Mon},
		{"일요일", Sun},
		{"tue", Tue},
		{"Saturday", Sat},
		{" 금 ", Fri},
	}
	for _, tt := range tests {
		got, err := ParseWeekday(tt.in)
		if err != nil {
			t.Fatalf("ParseWeekday(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseWeekday(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseWeekday("someday"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNextOccurrenceAfter(t *testing.T) {
	t.Parallel()
	wed := mustDate(t, "2024-06-05") // Wednesday

	got, ok := NextOccurrenceAfter(wed, []Weekday{Wed}, 7)
	if !ok || FormatDate(got) != "2024-06-05" {
		t.Fatalf("inclusive start: got %v %v", got, ok)
	}

	got, ok = NextOccurrenceAfter(wed, []Weekday{Mon}, 7)
	if !ok || FormatDate(got) != "2024-06-10" {
		t.Fatalf("next monday: got %v %v", got, ok)
	}

	if _, ok := NextOccurrenceAfter(wed, []Weekday{Mon}, 5); ok {
		t.Fatal("monday is 5 days out; window of 5 covers offsets 0..4 only")
	}
	if _, ok := NextOccurrenceAfter(wed, nil, 7); ok {
		t.Fatal("empty weekday set must not resolve")
	}
}

func TestNextAllowedAfterIsStrict(t *testing.T) {
	t.Parallel()
	mon := mustDate(t, "2024-06-03")
	got, ok := NextAllowedAfter(mon, []Weekday{Mon}, 14)
	if !ok || FormatDate(got) != "2024-06-10" {
		t.Fatalf("got %v %v", got, ok)
	}
	got, ok = NextAllowedAfter(mon, []Weekday{Mon, Tue}, 14)
	if !ok || FormatDate(got) != "2024-06-04" {
		t.Fatalf("got %v %v", got, ok)
	}
	if _, ok := NextAllowedAfter(mon, nil, 14); ok {
		t.Fatal("expected no match")
	}
}

func TestEndOfSecondNextMonth(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"2024-01-15": "2024-03-31",
		"2024-12-01": "2025-02-28",
		"2023-12-31": "2024-02-29",
		"2024-11-30": "2025-01-31",
	}
	for in, want := range tests {
		if got := FormatDate(EndOfSecondNextMonth(mustDate(t, in))); got != want {
			t.Fatalf("EndOfSecondNextMonth(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestEligibleDays(t *testing.T) {
	t.Parallel()
	from := mustDate(t, "2024-06-01") // Saturday
	until := mustDate(t, "2024-06-16")
	days, err := EligibleDays(from, until, []Weekday{Mon, Sun})
	if err != nil {
		t.Fatalf("EligibleDays: %v", err)
	}
	want := []string{"2024-06-02", "2024-06-03", "2024-06-09", "2024-06-10", "2024-06-16"}
	if len(days) != len(want) {
		t.Fatalf("got %d days, want %d: %v", len(days), len(want), days)
	}
	for i, d := range days {
		if FormatDate(d) != want[i] {
			t.Fatalf("day[%d] = %s, want %s", i, FormatDate(d), want[i])
		}
	}
}

func TestDayAndMonthDistance(t *testing.T) {
	t.Parallel()
	a := mustDate(t, "2024-01-31")
	b := mustDate(t, "2024-02-01")
	if DaysBetween(a, b) != 1 {
		t.Fatalf("DaysBetween = %d", DaysBetween(a, b))
	}
	if MonthsBetween(a, b) != 1 {
		t.Fatalf("MonthsBetween = %d", MonthsBetween(a, b))
	}
	if MonthsBetween(mustDate(t, "2023-12-05"), mustDate(t, "2024-02-01")) != 2 {
		t.Fatal("cross-year month distance")
	}
}

func TestTodayUsesLocation(t *testing.T) {
	t.Parallel()
	seoul := time.FixedZone("KST", 9*3600)
	now := time.Date(2024, 6, 2, 20, 0, 0, 0, time.UTC) // 05:00 next day in KST
	if got := FormatDate(Today(now, seoul)); got != "2024-06-03" {
		t.Fatalf("Today = %s", got)
	}
	if got := FormatDate(Today(now, time.UTC)); got != "2024-06-02" {
		t.Fatalf("Today(UTC) = %s", got)
	}
}
