package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrEmptyText = errors.New("message text is empty")
	ErrNoSender  = errors.New("no sender configured")
)

// Service delivers household messages to one configured chat with a rate
// limit, bounded retry and a short duplicate-suppression window.
//
// SendMessage never returns a raw error; failures come back in Result.
// It is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	sender  kit.Sender
	target  kit.ChatTarget
	cfg     Config
	limiter *rate.Limiter

	dmu   sync.Mutex
	dedup map[uint64]time.Time

	hmu     sync.Mutex
	history []HistoryItem

	now func() time.Time
}

func New(cfg Config, sender kit.Sender, target kit.ChatTarget, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:    log,
		sender: sender,
		target: target,
		dedup:  map[uint64]time.Time{},
		now:    time.Now,
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled && s.sender != nil
}

// Apply swaps config and target on hot reload.
func (s *Service) Apply(cfg Config, target kit.ChatTarget) {
	s.mu.Lock()
	s.target = target
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// SendMessage delivers text to the household chat.
func (s *Service) SendMessage(ctx context.Context, text string) Result {
	return s.send(ctx, text, false)
}

// SendLog satisfies logx.Sink so warnings can be mirrored into the chat.
// Its own failures are logged at debug to keep the sink from feeding itself.
func (s *Service) SendLog(ctx context.Context, text string) error {
	r := s.send(ctx, text, true)
	if !r.Success {
		return errors.New(r.Error)
	}
	return nil
}

func (s *Service) send(ctx context.Context, text string, quiet bool) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(text) == "" {
		return failed(ErrEmptyText)
	}

	s.mu.Lock()
	cfg, lim, sender, target, log := s.cfg, s.limiter, s.sender, s.target, s.log
	s.mu.Unlock()

	if !cfg.Enabled {
		return failed(ErrDisabled)
	}
	if sender == nil {
		return failed(ErrNoSender)
	}

	if cfg.DedupWindow > 0 && !s.dedupAllow(dedupKey(target, text), cfg.DedupWindow) {
		log.Debug("message suppressed as duplicate", logx.Int("len", len(text)))
		return ok()
	}

	attempts := 1 + cfg.RetryMax
	var lastErr error
retry:
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			lastErr = err
			break
		}
		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		_, err := sender.SendText(callCtx, target, text, &kit.SendOptions{DisablePreview: true})
		cancel()
		if err == nil {
			s.appendHistory(HistoryItem{At: s.now(), Text: text, Success: true}, cfg.HistorySize)
			return ok()
		}
		lastErr = err
		log.Debug("send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", attempts))
		if attempt == attempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			lastErr = ctx.Err()
			break retry
		}
	}

	err := fmt.Errorf("send message: %w", lastErr)
	if quiet {
		log.Debug("log line not delivered", logx.Err(err))
	} else {
		log.Warn("message not delivered", logx.Err(err))
	}
	s.appendHistory(HistoryItem{At: s.now(), Text: text, Success: false, Error: lastErr.Error()}, cfg.HistorySize)
	return failed(err)
}

// Snapshot returns recent sends, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) appendHistory(it HistoryItem, max int) {
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	s.hmu.Unlock()
}

func dedupKey(to kit.ChatTarget, text string) uint64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d:%d|", to.ChatID, to.ThreadID)
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}

func (s *Service) dedupAllow(key uint64, window time.Duration) bool {
	now := s.now()
	s.dmu.Lock()
	defer s.dmu.Unlock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	s.dedup[key] = now.Add(window)
	return true
}

// retryDelay is base * 2^(attempt-1) with 0.7..1.3 jitter, capped.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
