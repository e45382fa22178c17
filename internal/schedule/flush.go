package schedule

import (
	"context"
	"fmt"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
	logx "chorebot/pkg/logx"
)

type FlushResult struct {
	Candidates int `json:"candidates"`
	Inserted   int `json:"inserted"`
	Existing   int `json:"existing"`
}

// FlushPastToHistory persists every live occurrence whose local midnight is
// before now. Today's items qualify too once the day has started. The first
// store error stops the flush and is returned; rows already written stay.
func (e *Engine) FlushPastToHistory(ctx context.Context) (FlushResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var res FlushResult
	if e.sched == nil {
		return res, nil
	}
	if e.history == nil {
		return res, fmt.Errorf("flush: no history store")
	}
	now := e.now()
	for _, o := range e.sched.Items {
		d, err := calendar.ParseDate(o.Date)
		if err != nil {
			e.log.Warn("flush: skipping occurrence with bad date", logx.String("id", o.ID), logx.String("date", o.Date))
			continue
		}
		if !calendar.Midnight(d, e.loc).Before(now) {
			continue
		}
		res.Candidates++
		rec := chore.HistoryRecord{
			Occurrence:    chore.CloneOccurrences([]chore.Occurrence{o})[0],
			ScheduledDate: now,
			CompletedDate: o.CompletedAt,
		}
		inserted, err := e.history.UpsertIfAbsent(ctx, rec)
		if err != nil {
			return res, fmt.Errorf("flush %s: %w", o.ID, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Existing++
		}
	}
	if res.Candidates > 0 {
		e.log.Info("flushed past occurrences",
			logx.Int("candidates", res.Candidates),
			logx.Int("inserted", res.Inserted),
			logx.Int("existing", res.Existing),
		)
	}
	return res, nil
}

// PrunePastFromMemory drops live occurrences dated before today and returns
// how many were removed. Callers run it only after a successful flush.
func (e *Engine) PrunePastFromMemory() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched == nil {
		return 0
	}
	today := calendar.FormatDate(calendar.Today(e.now(), e.loc))
	kept := e.sched.Items[:0]
	removed := 0
	for _, o := range e.sched.Items {
		if o.Date < today {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	e.sched.Items = kept
	return removed
}
