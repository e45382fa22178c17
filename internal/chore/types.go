package chore

import (
	"time"

	"chorebot/internal/calendar"
)

// Rule is one recurring chore as defined in the rule source.
type Rule struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Weekdays  []calendar.Weekday `json:"days"`
	Frequency Frequency          `json:"frequency"`
	Assignee  string             `json:"assignee"`
	Memo      string             `json:"memo,omitempty"`
	URL       string             `json:"url,omitempty"`
	Emoji     string             `json:"emoji,omitempty"`
	IsDone    bool               `json:"isDone"`
}

// Occurrence is a dated instance of a rule (or a one-off chore) on the live schedule.
//
// ID is "{ruleID}_{date}" when generated and is not rewritten when a delay moves
// the date; DayOfWeek likewise keeps the value computed at creation.
type Occurrence struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Assignee       string           `json:"assignee"`
	Memo           string           `json:"memo,omitempty"`
	Date           string           `json:"date"`
	DayOfWeek      calendar.Weekday `json:"dayOfWeek"`
	OriginalRuleID string           `json:"originalHouseWorkId"`
	URL            string           `json:"url,omitempty"`
	IsDone         bool             `json:"isDone"`
	Emoji          string           `json:"emoji,omitempty"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
}

// Key is the natural identity shared by the live schedule and history.
type Key struct {
	Date   string
	RuleID string
}

func (o Occurrence) Key() Key { return Key{Date: o.Date, RuleID: o.OriginalRuleID} }

// Schedule is the live window of current and future occurrences.
type Schedule struct {
	Items       []Occurrence `json:"items"`
	LastUpdated time.Time    `json:"lastUpdated"`
	ValidUntil  string       `json:"validUntil"`
}

// Clone deep-copies the schedule so callers never alias engine state.
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Items = CloneOccurrences(s.Items)
	return &cp
}

func CloneOccurrences(in []Occurrence) []Occurrence {
	if in == nil {
		return nil
	}
	out := make([]Occurrence, len(in))
	copy(out, in)
	for i := range out {
		if out[i].CompletedAt != nil {
			t := *out[i].CompletedAt
			out[i].CompletedAt = &t
		}
	}
	return out
}

// HistoryRecord is a flushed occurrence as persisted by a history store.
type HistoryRecord struct {
	Occurrence
	ScheduledDate time.Time  `json:"scheduledDate"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Source tags where an entry of a monthly view came from.
type Source string

const (
	SourceDatabase  Source = "database"
	SourceScheduler Source = "scheduler"
)

// SourcedOccurrence is an occurrence annotated with its origin.
type SourcedOccurrence struct {
	Occurrence
	Source Source `json:"source"`
}
