package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "chorebot/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Enabled        bool
	Timezone       string // IANA TZ, e.g. "Asia/Seoul"
	DefaultTimeout time.Duration
	HistorySize    int
}

// OverlapPolicy decides what a trigger does while the previous run of the
// same job is still going.
type OverlapPolicy int

const (
	OverlapSkipIfRunning OverlapPolicy = iota
	OverlapAllow
)

type TaskOptions struct {
	Overlap OverlapPolicy
}

// Job is the unit of scheduled work.
type Job func(ctx context.Context) error

type scheduleDef struct {
	name          string
	spec          string // cron spec or @every
	timeout       time.Duration
	job           Job
	opt           TaskOptions
	entryID       cron.EntryID
	startupSpread time.Duration
	running       *runGuard
}

// runGuard tracks whether a job is in flight.
type runGuard struct {
	mu      sync.Mutex
	running bool
}

func (g *runGuard) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	return true
}

func (g *runGuard) release() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem
}

type ScheduleInfo struct {
	Name    string        `json:"name"`
	Spec    string        `json:"spec"`
	Timeout time.Duration `json:"timeout"`
	Spread  time.Duration `json:"spread,omitempty"`
	Running bool          `json:"running"`
	Next    time.Time     `json:"next,omitempty"`
	Prev    time.Time     `json:"prev,omitempty"`
}

// HistoryItem records one finished run.
type HistoryItem struct {
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Trigger  string        `json:"trigger"` // "schedule" | "manual"
	Skipped  bool          `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type Snapshot struct {
	Enabled   bool           `json:"enabled"`
	Timezone  string         `json:"timezone"`
	Schedules []ScheduleInfo `json:"schedules"`
	History   []HistoryItem  `json:"history"`
}
