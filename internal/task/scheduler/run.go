package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	logx "chorebot/pkg/logx"
)

// ErrSkipped is returned by RunNow when the job is already running.
var ErrSkipped = errors.New("job already running")

// RunNow runs a registered job synchronously, outside its schedule. It honors
// the job's overlap policy and timeout.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	d, ok := s.findLocked(name)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, d, "manual")
}

// trigger is the cron callback: it runs the job under the service run context.
func (s *Service) trigger(d scheduleDef, how string) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	_ = s.execute(ctx, d, how)
}

func (s *Service) execute(ctx context.Context, d scheduleDef, how string) (err error) {
	start := time.Now()
	if d.opt.Overlap == OverlapSkipIfRunning {
		if !d.running.tryAcquire() {
			s.log.Debug("job skipped: previous run still active", logx.String("name", d.name), logx.String("trigger", how))
			s.appendHistory(HistoryItem{Name: d.name, Started: start, Trigger: how, Skipped: true})
			return ErrSkipped
		}
		defer d.running.release()
	}

	timeout := d.timeout
	if timeout <= 0 {
		s.mu.Lock()
		timeout = s.cfg.DefaultTimeout
		s.mu.Unlock()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", logx.String("name", d.name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
		it := HistoryItem{Name: d.name, Started: start, Duration: time.Since(start), Trigger: how}
		if err != nil {
			it.Error = err.Error()
			s.log.Warn("job failed", logx.String("name", d.name), logx.String("trigger", how), logx.Duration("took", it.Duration), logx.Err(err))
		} else {
			s.log.Debug("job done", logx.String("name", d.name), logx.String("trigger", how), logx.Duration("took", it.Duration))
		}
		s.appendHistory(it)
	}()
	return d.job(ctx)
}

func (s *Service) appendHistory(it HistoryItem) {
	s.mu.Lock()
	max := s.cfg.HistorySize
	s.mu.Unlock()
	if max <= 0 {
		max = 50
	}
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	s.hmu.Unlock()
}
