package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

type fakeSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	texts    []string
	targets  []kit.ChatTarget
}

func (f *fakeSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return kit.MessageRef{}, errors.New("telegram: 502")
	}
	f.texts = append(f.texts, text)
	f.targets = append(f.targets, to)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.calls}, nil
}

func testConfig() Config {
	return Config{
		Enabled:       true,
		RatePerSec:    1000,
		RetryMax:      2,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 2 * time.Millisecond,
		SendTimeout:   time.Second,
		DedupWindow:   time.Minute,
	}
}

func TestSendMessageDelivers(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(testConfig(), fs, kit.ChatTarget{ChatID: -100123}, logx.Nop())

	r := s.SendMessage(context.Background(), "🧽 설거지")
	if !r.Success || r.Error != "" {
		t.Fatalf("result = %+v", r)
	}
	if len(fs.texts) != 1 || fs.targets[0].ChatID != -100123 {
		t.Fatalf("sent = %v to %v", fs.texts, fs.targets)
	}
	if h := s.Snapshot(); len(h) != 1 || !h[0].Success {
		t.Fatalf("history = %+v", h)
	}
}

func TestSendMessageRetriesThenFails(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{failures: 2}
	s := New(testConfig(), fs, kit.ChatTarget{ChatID: 1}, logx.Nop())
	if r := s.SendMessage(context.Background(), "retry me"); !r.Success {
		t.Fatalf("expected success after retries: %+v", r)
	}
	if fs.calls != 3 {
		t.Fatalf("calls = %d, want 3", fs.calls)
	}

	fs = &fakeSender{failures: 10}
	s = New(testConfig(), fs, kit.ChatTarget{ChatID: 1}, logx.Nop())
	r := s.SendMessage(context.Background(), "never")
	if r.Success || r.Error == "" {
		t.Fatalf("expected structured failure: %+v", r)
	}
	if fs.calls != 3 {
		t.Fatalf("calls = %d, want 3", fs.calls)
	}
	if err := s.SendLog(context.Background(), "log line"); err == nil {
		t.Fatal("SendLog should surface the failure as an error")
	}
}

func TestSendMessageGuards(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}

	s := New(testConfig(), fs, kit.ChatTarget{ChatID: 1}, logx.Nop())
	if r := s.SendMessage(context.Background(), "   "); r.Success {
		t.Fatal("blank text must be rejected")
	}

	cfg := testConfig()
	cfg.Enabled = false
	s = New(cfg, fs, kit.ChatTarget{ChatID: 1}, logx.Nop())
	if r := s.SendMessage(context.Background(), "hi"); r.Success || r.Error != ErrDisabled.Error() {
		t.Fatalf("disabled = %+v", r)
	}

	s = New(testConfig(), nil, kit.ChatTarget{ChatID: 1}, logx.Nop())
	if r := s.SendMessage(context.Background(), "hi"); r.Success {
		t.Fatal("nil sender must fail")
	}
	if fs.calls != 0 {
		t.Fatalf("sender called %d times", fs.calls)
	}
}

func TestSendMessageDedup(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(testConfig(), fs, kit.ChatTarget{ChatID: 1}, logx.Nop())
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if r := s.SendMessage(context.Background(), "same"); !r.Success {
			t.Fatalf("send %d: %+v", i, r)
		}
	}
	if fs.calls != 1 {
		t.Fatalf("calls = %d, want 1", fs.calls)
	}

	now = now.Add(2 * time.Minute)
	s.SendMessage(context.Background(), "same")
	if fs.calls != 2 {
		t.Fatalf("after window calls = %d, want 2", fs.calls)
	}
}

func TestRetryDelayBounded(t *testing.T) {
	t.Parallel()
	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	for attempt := 1; attempt <= 8; attempt++ {
		d := retryDelay(cfg, attempt)
		if d <= 0 || d > time.Second {
			t.Fatalf("attempt %d: delay %v out of bounds", attempt, d)
		}
	}
}
