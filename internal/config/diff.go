package config

import (
	"reflect"
	"strings"

	logx "chorebot/pkg/logx"
)

// SummarizeConfigChange lists the sections that differ and safe fields for a
// reload log line. Tokens and passwords are reported only as "set" flags.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)
	set := func(s string) bool { return strings.TrimSpace(s) != "" }

	if o, n := oldCfg.HTTP, newCfg.HTTP; !reflect.DeepEqual(o, n) {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", n.Enabled),
			logx.String("http.addr", n.Addr),
			logx.Bool("http.token_set", set(n.Token)),
		)
	}
	if o, n := oldCfg.Telegram, newCfg.Telegram; !reflect.DeepEqual(o, n) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.enabled", n.Enabled),
			logx.Int64("telegram.chat_id", n.ChatID),
			logx.Int("telegram.allowed_chats", len(n.AllowedChatIDs)),
			logx.Bool("telegram.token_changed", o.Token != n.Token),
		)
	}
	if o, n := oldCfg.Notion, newCfg.Notion; !reflect.DeepEqual(o, n) {
		changed = append(changed, "notion")
		attrs = append(attrs,
			logx.String("notion.database_id", n.DatabaseID),
			logx.Bool("notion.token_changed", o.Token != n.Token),
		)
	}
	if o, n := oldCfg.Storage, newCfg.Storage; !reflect.DeepEqual(o, n) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", n.Driver),
			logx.String("storage.path", n.Path),
		)
	}
	if o, n := oldCfg.Scheduler, newCfg.Scheduler; o != n {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", n.Enabled),
			logx.String("scheduler.timezone", n.Timezone),
			logx.String("scheduler.refresh", n.Refresh),
			logx.String("scheduler.digest", n.Digest),
		)
	}
	if o, n := oldCfg.Digest, newCfg.Digest; o != n {
		changed = append(changed, "digest")
		attrs = append(attrs,
			logx.Bool("digest.enabled", n.Enabled),
			logx.Strings("digest.tags", []string{n.RoleA.Tag, n.RoleB.Tag, n.Both.Tag}),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		if n := newCfg.Notifier; n != nil {
			attrs = append(attrs,
				logx.Bool("notifier.enabled", n.Enabled),
				logx.Int("notifier.rate_per_sec", n.RatePerSec),
			)
		}
	}
	if o, n := oldCfg.Logging, newCfg.Logging; o != n {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", n.Level),
			logx.Bool("logging.console", n.Console),
			logx.Bool("logging.file", n.File.Enabled),
			logx.Bool("logging.telegram", n.Telegram.Enabled),
		)
	}
	return changed, attrs
}

// RequiresRestart reports changes that hot reload does not apply. Storage,
// Notion credentials and the Telegram bot token are bound at startup.
func RequiresRestart(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		out = append(out, "storage")
	}
	if oldCfg.Notion != newCfg.Notion {
		out = append(out, "notion")
	}
	if oldCfg.Telegram.Enabled != newCfg.Telegram.Enabled || oldCfg.Telegram.Token != newCfg.Telegram.Token {
		out = append(out, "telegram.token")
	}
	return out
}
