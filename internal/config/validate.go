package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid config")

// Validate reports every missing or malformed value at once.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Notion.Token) == "" {
		bad("notion.token is required")
	}
	if strings.TrimSpace(c.Notion.DatabaseID) == "" {
		bad("notion.database_id is required")
	}

	if c.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			bad("telegram.token is required when telegram.enabled")
		}
		if c.Telegram.ChatID == 0 {
			bad("telegram.chat_id is required when telegram.enabled")
		}
	}
	if c.Logging.Telegram.Enabled && !c.Telegram.Enabled {
		bad("logging.telegram requires telegram.enabled")
	}

	switch d := strings.ToLower(strings.TrimSpace(c.Storage.Driver)); d {
	case "", "none", "memory":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			bad("storage.path is required for driver %q", d)
		}
	case "redis":
		if strings.TrimSpace(c.Storage.Redis.Addr) == "" {
			bad("storage.redis.addr is required for driver redis")
		}
	default:
		bad("storage.driver %q is not one of sqlite, file, redis, memory", c.Storage.Driver)
	}

	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			bad("scheduler.timezone: %v", err)
		}
	}
	if c.Scheduler.AnchorScanDays < 0 || c.Scheduler.DelayScanDays < 0 {
		bad("scheduler scan days must be >= 0")
	}
	if c.Digest.Enabled && !c.Telegram.Enabled {
		bad("digest.enabled requires telegram.enabled")
	}

	for path, raw := range c.durationFields() {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func (c *Config) durationFields() map[string]string {
	m := map[string]string{
		"http.request_timeout":      c.HTTP.RequestTimeout,
		"http.read_header_timeout":  c.HTTP.ReadHeaderTimeout,
		"telegram.poll_timeout":     c.Telegram.PollTimeout,
		"telegram.command_timeout":  c.Telegram.CommandTimeout,
		"notion.timeout":            c.Notion.Timeout,
		"storage.busy_timeout":      c.Storage.BusyTimeout,
		"scheduler.default_timeout": c.Scheduler.DefaultTimeout,
	}
	if n := c.Notifier; n != nil {
		m["notifier.retry_base"] = n.RetryBase
		m["notifier.retry_max_delay"] = n.RetryMaxDelay
		m["notifier.send_timeout"] = n.SendTimeout
		m["notifier.dedup_window"] = n.DedupWindow
	}
	return m
}
