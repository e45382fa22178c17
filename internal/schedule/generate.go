package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
	logx "chorebot/pkg/logx"
)

// GenerateResult summarizes one generation pass.
type GenerateResult struct {
	Current    int
	Past       int
	Skipped    []string // rule ids without an anchor
	ValidUntil string
}

// Generate rebuilds the live schedule from the current rules. On error the
// previous schedule is left untouched.
func (e *Engine) Generate(ctx context.Context) (GenerateResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	now := e.now()
	today := calendar.Today(now, e.loc)
	validUntil := calendar.EndOfSecondNextMonth(today)

	var (
		all []chore.Occurrence
		res = GenerateResult{ValidUntil: calendar.FormatDate(validUntil)}
	)
	for _, rule := range e.rules.Rules() {
		anchor, ok, err := e.anchorFor(ctx, rule, today)
		if err != nil {
			return GenerateResult{}, fmt.Errorf("anchor for %q: %w", rule.Title, err)
		}
		if !ok {
			e.log.Debug("rule skipped: no anchor", logx.String("rule", rule.ID), logx.String("title", rule.Title))
			res.Skipped = append(res.Skipped, rule.ID)
			continue
		}
		occ, err := expandRule(rule, anchor, validUntil)
		if err != nil {
			return GenerateResult{}, fmt.Errorf("expand %q: %w", rule.Title, err)
		}
		all = append(all, occ...)
	}

	all = dedupe(all)
	sortByDate(all)

	todayStr := calendar.FormatDate(today)
	current := make([]chore.Occurrence, 0, len(all))
	past := make([]chore.Occurrence, 0)
	for _, o := range all {
		if o.Date < todayStr {
			past = append(past, o)
		} else {
			current = append(current, o)
		}
	}

	e.sched = &chore.Schedule{Items: current, LastUpdated: now, ValidUntil: res.ValidUntil}
	e.past = past
	res.Current = len(current)
	res.Past = len(past)

	e.log.Info("schedule generated",
		logx.Int("current", res.Current),
		logx.Int("past", res.Past),
		logx.Int("skipped", len(res.Skipped)),
		logx.String("valid_until", res.ValidUntil),
		logx.Duration("took", time.Since(start)),
	)
	return res, nil
}

// anchorFor resolves where expansion starts: the latest history date for the
// rule's title, else the first allowed weekday within the anchor scan window.
func (e *Engine) anchorFor(ctx context.Context, rule chore.Rule, today time.Time) (time.Time, bool, error) {
	if e.history != nil {
		rec, found, err := e.history.FindLatestByTitle(ctx, rule.Title)
		if err != nil {
			return time.Time{}, false, err
		}
		if found {
			d, err := calendar.ParseDate(rec.Date)
			if err == nil {
				return d, true, nil
			}
			e.log.Warn("history record has bad date; ignoring", logx.String("title", rule.Title), logx.String("date", rec.Date))
		}
	}
	d, ok := calendar.NextOccurrenceAfter(today, rule.Weekdays, e.anchorScanDays)
	return d, ok, nil
}

// expandRule walks allowed weekdays from anchor through until and keeps a day
// when enough time has passed since the last kept one (greedy minimum spacing).
func expandRule(rule chore.Rule, anchor, until time.Time) ([]chore.Occurrence, error) {
	days, err := calendar.EligibleDays(anchor, until, rule.Weekdays)
	if err != nil {
		return nil, err
	}
	out := make([]chore.Occurrence, 0, len(days))
	var last time.Time
	for _, d := range days {
		if !last.IsZero() && !spacingMet(rule.Frequency, last, d) {
			continue
		}
		out = append(out, occurrenceFor(rule, d))
		last = d
	}
	return out, nil
}

func spacingMet(f chore.Frequency, last, d time.Time) bool {
	switch f {
	case chore.Daily:
		return true
	case chore.EveryOtherDay:
		return calendar.DaysBetween(last, d) >= 2
	case chore.Weekly:
		return calendar.DaysBetween(last, d) >= 7
	case chore.EveryOtherWeek:
		return calendar.DaysBetween(last, d) >= 14
	case chore.Monthly:
		return calendar.MonthsBetween(last, d) >= 1
	default:
		return false
	}
}

func occurrenceFor(rule chore.Rule, d time.Time) chore.Occurrence {
	date := calendar.FormatDate(d)
	return chore.Occurrence{
		ID:             rule.ID + "_" + date,
		Title:          rule.Title,
		Assignee:       rule.Assignee,
		Memo:           rule.Memo,
		Date:           date,
		DayOfWeek:      calendar.WeekdayOf(d),
		OriginalRuleID: rule.ID,
		URL:            rule.URL,
		IsDone:         rule.IsDone,
		Emoji:          rule.Emoji,
	}
}

// dedupe keeps the first occurrence per (date, rule id).
func dedupe(in []chore.Occurrence) []chore.Occurrence {
	seen := make(map[chore.Key]struct{}, len(in))
	out := in[:0]
	for _, o := range in {
		k := o.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}

func sortByDate(items []chore.Occurrence) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date < items[j].Date })
}
