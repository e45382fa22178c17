package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
)

// Status is a snapshot of engine state for the status endpoint.
type Status struct {
	HasSchedule  bool      `json:"hasSchedule"`
	ItemCount    int       `json:"itemCount"`
	LastUpdated  time.Time `json:"lastUpdated,omitempty"`
	ValidUntil   string    `json:"validUntil,omitempty"`
	RulesChanged bool      `json:"rulesChanged"`
	RuleCount    int       `json:"ruleCount"`
}

// Schedule returns a copy of the live schedule, or nil before the first Generate.
func (e *Engine) Schedule() *chore.Schedule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Clone()
}

func (e *Engine) ForDate(date string) []chore.Occurrence {
	return e.ForPeriod(date, date)
}

// ForPeriod returns live occurrences with start <= date <= end.
func (e *Engine) ForPeriod(start, end string) []chore.Occurrence {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched == nil {
		return []chore.Occurrence{}
	}
	return filterRange(e.sched.Items, start, end)
}

// PendingPast returns the past partition from the last Generate.
func (e *Engine) PendingPast() []chore.Occurrence {
	e.mu.Lock()
	defer e.mu.Unlock()
	return chore.CloneOccurrences(e.past)
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		RulesChanged: e.rules.Changed(),
		RuleCount:    e.rules.Len(),
	}
	if e.sched != nil {
		st.HasSchedule = true
		st.ItemCount = len(e.sched.Items)
		st.LastUpdated = e.sched.LastUpdated
		st.ValidUntil = e.sched.ValidUntil
	}
	return st
}

// History returns persisted occurrences in [start, end], ascending.
func (e *Engine) History(ctx context.Context, start, end string) ([]chore.HistoryRecord, error) {
	if _, err := calendar.ParseDate(start); err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrInvalidInput, err)
	}
	if _, err := calendar.ParseDate(end); err != nil {
		return nil, fmt.Errorf("%w: end: %v", ErrInvalidInput, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.history == nil {
		return []chore.HistoryRecord{}, nil
	}
	recs, err := e.history.FindByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("history range: %w", err)
	}
	return recs, nil
}

// MonthlyView is the merged month listing.
type MonthlyView struct {
	Start string                    `json:"start"`
	End   string                    `json:"end"`
	Items []chore.SourcedOccurrence `json:"items"`
}

// Monthly merges history (days before today) with the live schedule (today
// onwards) for one calendar month. Only the source that overlaps the month is
// queried.
func (e *Engine) Monthly(ctx context.Context, year, month int) (MonthlyView, error) {
	if year <= 0 {
		return MonthlyView{}, fmt.Errorf("%w: year must be positive", ErrInvalidInput)
	}
	if month < 1 || month > 12 {
		return MonthlyView{}, fmt.Errorf("%w: month must be 1..12", ErrInvalidInput)
	}

	first := calendar.FirstOfMonth(year, time.Month(month))
	last := calendar.LastOfMonth(year, time.Month(month))
	view := MonthlyView{
		Start: calendar.FormatDate(first),
		End:   calendar.FormatDate(last),
		Items: []chore.SourcedOccurrence{},
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	today := calendar.Today(e.now(), e.loc)

	if first.Before(today) && e.history != nil {
		histEnd := last
		if !today.After(last) {
			histEnd = calendar.AddDays(today, -1)
		}
		recs, err := e.history.FindByDateRange(ctx, view.Start, calendar.FormatDate(histEnd))
		if err != nil {
			return MonthlyView{}, fmt.Errorf("monthly history: %w", err)
		}
		for _, r := range recs {
			view.Items = append(view.Items, chore.SourcedOccurrence{Occurrence: r.Occurrence, Source: chore.SourceDatabase})
		}
	}

	if !last.Before(today) && e.sched != nil {
		liveStart := first
		if today.After(first) {
			liveStart = today
		}
		for _, o := range filterRange(e.sched.Items, calendar.FormatDate(liveStart), view.End) {
			view.Items = append(view.Items, chore.SourcedOccurrence{Occurrence: o, Source: chore.SourceScheduler})
		}
	}

	sort.SliceStable(view.Items, func(i, j int) bool { return view.Items[i].Date < view.Items[j].Date })
	return view, nil
}

func filterRange(items []chore.Occurrence, start, end string) []chore.Occurrence {
	out := make([]chore.Occurrence, 0)
	for _, o := range items {
		if o.Date >= start && o.Date <= end {
			out = append(out, o)
		}
	}
	return chore.CloneOccurrences(out)
}
