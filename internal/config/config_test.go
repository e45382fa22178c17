package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

const validYAML = `
http:
  enabled: true
  addr: ":8080"
telegram:
  enabled: true
  token: ${CHOREBOT_TEST_TG_TOKEN}
  chat_id: -100123
notion:
  token: ${CHOREBOT_TEST_NOTION_TOKEN}
  database_id: db-1
storage:
  driver: sqlite
  path: ./chorebot.db
scheduler:
  enabled: true
  timezone: Asia/Seoul
  refresh: "@every 6h"
digest:
  enabled: true
  role_a: { tag: "👦🏻" }
  role_b: { tag: "👧🏻" }
  both: { tag: "👦🏻👧🏻", header: "함께" }
logging:
  level: debug
  console: true
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadYAMLExpandsEnv(t *testing.T) {
	t.Setenv("CHOREBOT_TEST_TG_TOKEN", "123:abc")
	t.Setenv("CHOREBOT_TEST_NOTION_TOKEN", "secret_x")

	m := NewConfigManager(writeFile(t, t.TempDir(), "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Notion.Token != "secret_x" {
		t.Fatalf("env not expanded: %+v %+v", cfg.Telegram, cfg.Notion)
	}
	if cfg.Telegram.ChatID != -100123 || cfg.Scheduler.Timezone != "Asia/Seoul" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Digest.Both.Header != "함께" || cfg.Digest.RoleA.Tag != "👦🏻" {
		t.Fatalf("digest = %+v", cfg.Digest)
	}
	if m.Get() != cfg {
		t.Fatal("Load should commit")
	}
}

func TestExpandEnvLeavesBareDollar(t *testing.T) {
	t.Setenv("CHOREBOT_TEST_X", "v")
	got := string(expandEnv([]byte(`a${CHOREBOT_TEST_X}b $HOME c${CHOREBOT_TEST_MISSING}`)))
	if got != "avb $HOME c" {
		t.Fatalf("got %q", got)
	}
}

func TestParseRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"unknown.json":  `{"notion":{"token":"x","database_id":"y","colour":"red"}}`,
		"trailing.json": `{"notion":{"token":"x","database_id":"y"}} {}`,
		"unknown.yml":   "pprof:\n  enabled: true\n",
	} {
		m := NewConfigManager(writeFile(t, dir, name, body))
		if _, err := m.Parse(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{Notion: NotionConfig{Token: "t", DatabaseID: "d"}}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"notion", func(c *Config) { c.Notion.Token = "" }, "notion.token"},
		{"telegram", func(c *Config) { c.Telegram.Enabled = true }, "telegram.chat_id"},
		{"driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"sqlite path", func(c *Config) { c.Storage.Driver = "sqlite" }, "storage.path"},
		{"redis addr", func(c *Config) { c.Storage.Driver = "redis" }, "storage.redis.addr"},
		{"tz", func(c *Config) { c.Scheduler.Timezone = "Mars/Base" }, "scheduler.timezone"},
		{"duration", func(c *Config) { c.HTTP.RequestTimeout = "ten" }, "http.request_timeout"},
		{"digest", func(c *Config) { c.Digest.Enabled = true }, "digest.enabled"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := c.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestDurationOr(t *testing.T) {
	t.Parallel()
	if got := DurationOr("", time.Second); got != time.Second {
		t.Fatalf("empty = %v", got)
	}
	if got := DurationOr("bogus", time.Second); got != time.Second {
		t.Fatalf("bogus = %v", got)
	}
	if got := DurationOr("90s", time.Second); got != 90*time.Second {
		t.Fatalf("90s = %v", got)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative accepted")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	a := &Config{Notion: NotionConfig{Token: "old", DatabaseID: "d"}, Logging: LoggingConfig{Level: "info"}}
	b := &Config{Notion: NotionConfig{Token: "new", DatabaseID: "d"}, Logging: LoggingConfig{Level: "debug"}}
	changed, attrs := SummarizeConfigChange(a, b)
	if !slices.Equal(changed, []string{"notion", "logging"}) || len(attrs) == 0 {
		t.Fatalf("changed = %v", changed)
	}
	if got := RequiresRestart(a, b); !slices.Equal(got, []string{"notion"}) {
		t.Fatalf("restart = %v", got)
	}
	if changed, _ := SummarizeConfigChange(a, a); len(changed) != 0 {
		t.Fatalf("self diff = %v", changed)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	dir := t.TempDir()
	body := `{"notion":{"token":"t","database_id":"d"},"logging":{"level":"info"}}`
	path := writeFile(t, dir, "config.json", body)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	time.Sleep(100 * time.Millisecond)

	// invalid: missing notion token, must not publish
	writeFile(t, dir, "config.json", `{"notion":{"database_id":"d"}}`)
	time.Sleep(600 * time.Millisecond)
	select {
	case cfg := <-sub:
		t.Fatalf("invalid config published: %+v", cfg)
	default:
	}

	writeFile(t, dir, "config.json", strings.Replace(body, `"info"`, `"debug"`, 1))
	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("level = %s", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload published")
	}
	cancel()
	<-done
}
