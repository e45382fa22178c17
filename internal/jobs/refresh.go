package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chorebot/internal/chore"
	"chorebot/internal/schedule"
	"chorebot/internal/task/scheduler"
	logx "chorebot/pkg/logx"
)

// ErrRefreshRunning is returned by TryRun when another refresh holds the lock.
var ErrRefreshRunning = errors.New("refresh already running")

// RuleProvider is the source of truth for recurring chores.
type RuleProvider interface {
	FetchRules(ctx context.Context) ([]chore.Rule, error)
}

// RefreshReport describes one pass of the refresh cycle.
type RefreshReport struct {
	Started      time.Time               `json:"started"`
	Duration     time.Duration           `json:"duration"`
	Flush        schedule.FlushResult    `json:"flush"`
	FlushError   string                  `json:"flushError,omitempty"`
	Pruned       int                     `json:"pruned"`
	Rules        int                     `json:"rules"`
	RulesChanged bool                    `json:"rulesChanged"`
	Generated    schedule.GenerateResult `json:"generated"`
}

// Refresher runs flush, prune, rule pull and regeneration in that order.
type Refresher struct {
	run sync.Mutex

	engine   *schedule.Engine
	provider RuleProvider
	log      logx.Logger

	mu   sync.Mutex
	last *RefreshReport
}

func NewRefresher(engine *schedule.Engine, provider RuleProvider, log logx.Logger) *Refresher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Refresher{engine: engine, provider: provider, log: log}
}

// Run waits for any in-flight refresh and then performs one pass.
//
// A flush failure skips the prune and is reported but does not stop the rule
// pull. A provider or generation error aborts the pass with the previous
// schedule intact.
func (r *Refresher) Run(ctx context.Context) (RefreshReport, error) {
	r.run.Lock()
	defer r.run.Unlock()
	return r.runLocked(ctx)
}

// TryRun is Run without waiting: it fails fast with ErrRefreshRunning.
func (r *Refresher) TryRun(ctx context.Context) (RefreshReport, error) {
	if !r.run.TryLock() {
		return RefreshReport{}, ErrRefreshRunning
	}
	defer r.run.Unlock()
	return r.runLocked(ctx)
}

func (r *Refresher) runLocked(ctx context.Context) (RefreshReport, error) {
	rep := RefreshReport{Started: time.Now()}
	defer func() { rep.Duration = time.Since(rep.Started) }()

	flushed, err := r.engine.FlushPastToHistory(ctx)
	rep.Flush = flushed
	if err != nil {
		rep.FlushError = err.Error()
		r.log.Warn("refresh: flush failed, keeping past items in memory", logx.Err(err))
	} else {
		rep.Pruned = r.engine.PrunePastFromMemory()
	}

	rules, err := r.provider.FetchRules(ctx)
	if err != nil {
		r.log.Error("refresh: fetch rules failed", logx.Err(err))
		return rep, fmt.Errorf("fetch rules: %w", err)
	}
	rep.Rules = len(rules)
	rep.RulesChanged = r.engine.Rules().SetRules(rules)

	gen, err := r.engine.Generate(ctx)
	if err != nil {
		r.log.Error("refresh: generate failed", logx.Err(err))
		return rep, fmt.Errorf("generate: %w", err)
	}
	rep.Generated = gen

	r.mu.Lock()
	cp := rep
	cp.Duration = time.Since(rep.Started)
	r.last = &cp
	r.mu.Unlock()

	r.log.Info("schedule refreshed",
		logx.Int("rules", rep.Rules),
		logx.Bool("rules_changed", rep.RulesChanged),
		logx.Int("current", gen.Current),
		logx.Int("pruned", rep.Pruned),
		logx.String("valid_until", gen.ValidUntil),
	)
	return rep, nil
}

// Last returns the most recent successful report.
func (r *Refresher) Last() (RefreshReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return RefreshReport{}, false
	}
	return *r.last, true
}

// Job adapts Run to the scheduler.
func (r *Refresher) Job() scheduler.Job {
	return func(ctx context.Context) error {
		_, err := r.Run(ctx)
		return err
	}
}
