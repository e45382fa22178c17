package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"chorebot/internal/chore"
	"chorebot/internal/notifier"
	logx "chorebot/pkg/logx"
)

var (
	// ErrNoSchedule is returned by operations that need a generated schedule.
	ErrNoSchedule = errors.New("schedule not generated yet")
	// ErrNoEligibleDay means a delay found no allowed weekday inside the scan window.
	ErrNoEligibleDay = errors.New("no eligible weekday within delay window")
	ErrInvalidInput  = errors.New("invalid input")
)

// History is the persisted side of the schedule.
type History interface {
	FindLatestByTitle(ctx context.Context, title string) (chore.HistoryRecord, bool, error)
	FindByDateRange(ctx context.Context, start, end string) ([]chore.HistoryRecord, error)
	UpsertIfAbsent(ctx context.Context, rec chore.HistoryRecord) (bool, error)
}

// Messenger delivers human-readable notices.
type Messenger interface {
	SendMessage(ctx context.Context, text string) notifier.Result
}

const (
	defaultAnchorScanDays = 7
	defaultDelayScanDays  = 14
	defaultOneTimeEmoji   = "📝"
)

// Engine owns the live schedule. One mutex serializes every public operation,
// including the history I/O done by Generate and FlushPastToHistory, so a
// refresh never interleaves with an API mutation.
type Engine struct {
	mu sync.Mutex

	rules   *chore.RuleStore
	history History
	msg     Messenger
	log     logx.Logger

	loc            *time.Location
	now            func() time.Time
	newID          func() string
	anchorScanDays int
	delayScanDays  int

	sched *chore.Schedule
	past  []chore.Occurrence
}

type Option func(*Engine)

// WithLocation sets the zone that defines "today".
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides the random part of one-off occurrence ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func WithAnchorScanDays(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.anchorScanDays = n
		}
	}
}

func WithDelayScanDays(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.delayScanDays = n
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func New(rules *chore.RuleStore, history History, msg Messenger, opts ...Option) *Engine {
	e := &Engine{
		rules:          rules,
		history:        history,
		msg:            msg,
		log:            logx.Nop(),
		loc:            time.Local,
		now:            time.Now,
		newID:          func() string { return uuid.NewString() },
		anchorScanDays: defaultAnchorScanDays,
		delayScanDays:  defaultDelayScanDays,
	}
	for _, o := range opts {
		o(e)
	}
	if e.rules == nil {
		e.rules = chore.NewRuleStore()
	}
	if e.log.IsZero() {
		e.log = logx.Nop()
	}
	return e
}

// Rules exposes the rule store the engine generates from.
func (e *Engine) Rules() *chore.RuleStore { return e.rules }

// Location returns the zone used for "today".
func (e *Engine) Location() *time.Location { return e.loc }

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time { return e.now() }

func (e *Engine) indexLocked(id string) int {
	if e.sched == nil {
		return -1
	}
	for i := range e.sched.Items {
		if e.sched.Items[i].ID == id {
			return i
		}
	}
	return -1
}
