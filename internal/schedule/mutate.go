package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
	logx "chorebot/pkg/logx"
)

// UpdateDoneStatus sets the completion flag (and optionally the assignee) of
// one occurrence. ok is false when the id is unknown.
func (e *Engine) UpdateDoneStatus(id string, isDone bool, assignee *string) (chore.Occurrence, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i < 0 {
		return chore.Occurrence{}, false
	}
	it := &e.sched.Items[i]
	it.IsDone = isDone
	if isDone {
		t := e.now()
		it.CompletedAt = &t
	} else {
		it.CompletedAt = nil
	}
	if assignee != nil {
		it.Assignee = *assignee
	}
	return chore.CloneOccurrences([]chore.Occurrence{*it})[0], true
}

// DelayResult describes what a delay did.
type DelayResult struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Collapsed bool   `json:"collapsed"`
}

// Delay pushes an occurrence to the next allowed weekday of its rule. When the
// rule already has an occurrence on that day the delayed one is dropped
// instead. The occurrence keeps its id and dayOfWeek after a move.
func (e *Engine) Delay(ctx context.Context, id string) (DelayResult, bool, error) {
	res, notice, ok, err := e.delayLocked(id)
	if !ok || err != nil {
		return res, ok, err
	}
	if e.msg != nil {
		if r := e.msg.SendMessage(ctx, notice); !r.Success {
			e.log.Warn("delay notice not delivered", logx.String("id", id), logx.String("err", r.Error))
		}
	}
	return res, true, nil
}

func (e *Engine) delayLocked(id string) (DelayResult, string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i < 0 {
		return DelayResult{}, "", false, nil
	}
	it := e.sched.Items[i]
	rule, found := e.rules.Find(it.OriginalRuleID)
	if !found {
		return DelayResult{}, "", false, nil
	}
	cur, err := calendar.ParseDate(it.Date)
	if err != nil {
		return DelayResult{}, "", false, fmt.Errorf("occurrence %s: %w", id, err)
	}
	next, found := calendar.NextAllowedAfter(cur, rule.Weekdays, e.delayScanDays)
	if !found {
		return DelayResult{}, "", false, fmt.Errorf("delay %s: %w", id, ErrNoEligibleDay)
	}
	nextStr := calendar.FormatDate(next)

	nearest := ""
	for _, o := range e.sched.Items {
		if o.OriginalRuleID != it.OriginalRuleID || o.Date <= it.Date {
			continue
		}
		if nearest == "" || o.Date < nearest {
			nearest = o.Date
		}
	}

	res := DelayResult{ID: id, From: it.Date, To: nextStr}
	notice := delayNotice(it, cur, next)

	if nearest == nextStr {
		e.sched.Items = append(e.sched.Items[:i], e.sched.Items[i+1:]...)
		res.Collapsed = true
		e.log.Info("delay collapsed into existing occurrence", logx.String("id", id), logx.String("date", nextStr))
	} else {
		e.sched.Items[i].Date = nextStr
		sortByDate(e.sched.Items)
		e.log.Info("occurrence delayed", logx.String("id", id), logx.String("from", res.From), logx.String("to", nextStr))
	}
	return res, notice, true, nil
}

func delayNotice(o chore.Occurrence, from, to time.Time) string {
	var b strings.Builder
	b.WriteString("⏰ 일정 연기: ")
	if o.Emoji != "" {
		b.WriteString(o.Emoji)
		b.WriteString(" ")
	}
	b.WriteString(o.Title)
	fmt.Fprintf(&b, "\n%s(%s) → %s(%s)",
		calendar.FormatDate(from), calendar.WeekdayOf(from).Korean(),
		calendar.FormatDate(to), calendar.WeekdayOf(to).Korean(),
	)
	return b.String()
}

// OneTime is the input for an ad-hoc chore.
type OneTime struct {
	Title    string `json:"title"`
	Assignee string `json:"assignee"`
	Date     string `json:"date"`
	Memo     string `json:"memo,omitempty"`
	Emoji    string `json:"emoji,omitempty"`
}

// AddOneTime inserts an ad-hoc occurrence into the live schedule.
func (e *Engine) AddOneTime(in OneTime) (chore.Occurrence, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return chore.Occurrence{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	d, err := calendar.ParseDate(in.Date)
	if err != nil {
		return chore.Occurrence{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched == nil {
		return chore.Occurrence{}, ErrNoSchedule
	}

	emoji := in.Emoji
	if emoji == "" {
		emoji = defaultOneTimeEmoji
	}
	date := calendar.FormatDate(d)
	base := fmt.Sprintf("one-time-%d-%s", e.now().UnixMilli(), e.newID())
	o := chore.Occurrence{
		ID:             base + "_" + date,
		Title:          title,
		Assignee:       in.Assignee,
		Memo:           in.Memo,
		Date:           date,
		DayOfWeek:      calendar.WeekdayOf(d),
		OriginalRuleID: base,
		Emoji:          emoji,
	}
	e.sched.Items = append(e.sched.Items, o)
	sortByDate(e.sched.Items)
	e.log.Info("one-time chore added", logx.String("id", o.ID), logx.String("date", date))
	return o, nil
}

// Delete removes an occurrence by id and reports whether it existed.
func (e *Engine) Delete(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexLocked(id)
	if i < 0 {
		return false
	}
	e.sched.Items = append(e.sched.Items[:i], e.sched.Items[i+1:]...)
	return true
}
