package app

import (
	"strings"
	"time"

	"chorebot/internal/config"
	"chorebot/internal/httpapi"
	"chorebot/internal/jobs"
	"chorebot/internal/notifier"
	"chorebot/internal/notion"
	"chorebot/internal/schedule"
	"chorebot/internal/storage"
	"chorebot/internal/task/scheduler"
	kit "chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

const (
	defaultRefreshSpec = "@every 6h"
	defaultDigestSpec  = "0 9 * * *"
	defaultTimezone    = "Asia/Seoul"
)

// The mappers below take a config that already passed Validate, so bad
// durations fall back to defaults instead of failing.

func mapStorageConfig(cfg *config.Config) storage.Config {
	sc := cfg.Storage
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: config.DurationOr(sc.BusyTimeout, time.Second),
		Redis: storage.RedisConfig{
			Addr:      strings.TrimSpace(sc.Redis.Addr),
			Password:  sc.Redis.Password,
			DB:        sc.Redis.DB,
			KeyPrefix: sc.Redis.KeyPrefix,
		},
	}
}

func timezone(cfg *config.Config) string {
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		return tz
	}
	return defaultTimezone
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Timezone:       timezone(cfg),
		DefaultTimeout: config.DurationOr(cfg.Scheduler.DefaultTimeout, 2*time.Minute),
		HistorySize:    cfg.Scheduler.HistorySize,
	}
}

func refreshSpec(cfg *config.Config) string {
	if s := strings.TrimSpace(cfg.Scheduler.Refresh); s != "" {
		return s
	}
	return defaultRefreshSpec
}

func digestSpec(cfg *config.Config) string {
	if s := strings.TrimSpace(cfg.Scheduler.Digest); s != "" {
		return s
	}
	return defaultDigestSpec
}

func engineOptions(cfg *config.Config, loc *time.Location, log logx.Logger) []schedule.Option {
	return []schedule.Option{
		schedule.WithLocation(loc),
		schedule.WithAnchorScanDays(cfg.Scheduler.AnchorScanDays),
		schedule.WithDelayScanDays(cfg.Scheduler.DelayScanDays),
		schedule.WithLogger(log),
	}
}

// mapNotifierConfig follows telegram.enabled when the notifier section is
// omitted.
func mapNotifierConfig(cfg *config.Config) notifier.Config {
	n := cfg.Notifier
	if n == nil {
		return notifier.Config{Enabled: cfg.Telegram.Enabled, DedupWindow: time.Minute}
	}
	return notifier.Config{
		Enabled:       n.Enabled && cfg.Telegram.Enabled,
		RatePerSec:    n.RatePerSec,
		RetryMax:      n.RetryMax,
		RetryBase:     config.DurationOr(n.RetryBase, 0),
		RetryMaxDelay: config.DurationOr(n.RetryMaxDelay, 0),
		SendTimeout:   config.DurationOr(n.SendTimeout, 0),
		DedupWindow:   config.DurationOr(n.DedupWindow, 0),
		HistorySize:   n.HistorySize,
	}
}

func chatTarget(cfg *config.Config) kit.ChatTarget {
	return kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID}
}

// allowedChats always includes the household chat.
func allowedChats(cfg *config.Config) []int64 {
	out := make([]int64, 0, len(cfg.Telegram.AllowedChatIDs)+1)
	seen := map[int64]struct{}{}
	add := func(id int64) {
		if id == 0 {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(cfg.Telegram.ChatID)
	for _, id := range cfg.Telegram.AllowedChatIDs {
		add(id)
	}
	return out
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled: l.File.Enabled,
			Path:    l.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    l.Telegram.Enabled && cfg.Telegram.Enabled,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func mapHTTPConfig(cfg *config.Config) httpapi.Config {
	h := cfg.HTTP
	return httpapi.Config{
		Addr:              strings.TrimSpace(h.Addr),
		Token:             strings.TrimSpace(h.Token),
		CalendarName:      h.CalendarName,
		RequestTimeout:    config.DurationOr(h.RequestTimeout, 0),
		ReadHeaderTimeout: config.DurationOr(h.ReadHeaderTimeout, 0),
	}
}

func mapNotionConfig(cfg *config.Config) notion.Config {
	n := cfg.Notion
	return notion.Config{
		Token:      n.Token,
		DatabaseID: n.DatabaseID,
		Version:    strings.TrimSpace(n.Version),
		BaseURL:    strings.TrimSpace(n.BaseURL),
		Timeout:    config.DurationOr(n.Timeout, 0),
	}
}

func mapDigestConfig(cfg *config.Config) jobs.DigestConfig {
	d := cfg.Digest
	return jobs.DigestConfig{
		RoleA: jobs.Bucket{Tag: d.RoleA.Tag, Header: d.RoleA.Header},
		RoleB: jobs.Bucket{Tag: d.RoleB.Tag, Header: d.RoleB.Header},
		Both:  jobs.Bucket{Tag: d.Both.Tag, Header: d.Both.Header},
	}
}

func pollTimeout(cfg *config.Config) time.Duration {
	return config.DurationOr(cfg.Telegram.PollTimeout, 10*time.Second)
}

func commandTimeout(cfg *config.Config) time.Duration {
	return config.DurationOr(cfg.Telegram.CommandTimeout, 30*time.Second)
}
