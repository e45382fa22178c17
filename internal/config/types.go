package config

// Config is the on-disk configuration (JSON, or YAML by file extension).
//
// Secrets may be written as ${ENV_VAR}; they are expanded before decoding.
// Durations are Go duration strings ("500ms", "10s", "6h").
type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Telegram  TelegramConfig  `json:"telegram"`
	Notion    NotionConfig    `json:"notion"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Digest    DigestConfig    `json:"digest"`
	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
}

// HTTPConfig controls the JSON API.
type HTTPConfig struct {
	Enabled           bool   `json:"enabled"`
	Addr              string `json:"addr,omitempty"`  // default ":3000"
	Token             string `json:"token,omitempty"` // optional bearer token (do not log)
	CalendarName      string `json:"calendar_name,omitempty"`
	RequestTimeout    string `json:"request_timeout,omitempty"`
	ReadHeaderTimeout string `json:"read_header_timeout,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	// ChatID is the household chat that receives digests and notices.
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
	// AllowedChatIDs limits bot commands; ChatID is always allowed.
	AllowedChatIDs []int64 `json:"allowed_chat_ids,omitempty"`
	PollTimeout    string  `json:"poll_timeout,omitempty"`
	CommandTimeout string  `json:"command_timeout,omitempty"`
}

type NotionConfig struct {
	Token      string `json:"token"`
	DatabaseID string `json:"database_id"`
	Version    string `json:"version,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
}

// StorageConfig selects the history store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./chorebot.db" }
type StorageConfig struct {
	Driver      string      `json:"driver"`
	Path        string      `json:"path,omitempty"`
	BusyTimeout string      `json:"busy_timeout,omitempty"` // sqlite
	Redis       RedisConfig `json:"redis,omitempty"`
}

type RedisConfig struct {
	Addr      string `json:"addr,omitempty"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

// SchedulerConfig controls the periodic jobs and the engine's local zone.
//
// Schedules accept cron ("0 9 * * *"), "@every 6h", a Go duration or HH:MM.
type SchedulerConfig struct {
	Enabled        bool   `json:"enabled"`
	Timezone       string `json:"timezone,omitempty"`
	Refresh        string `json:"refresh,omitempty"` // default "@every 6h"
	Digest         string `json:"digest,omitempty"`  // default "0 9 * * *"
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	// SkipStartupRefresh disables the refresh run during Start.
	SkipStartupRefresh bool `json:"skip_startup_refresh,omitempty"`
	AnchorScanDays     int  `json:"anchor_scan_days,omitempty"`
	DelayScanDays      int  `json:"delay_scan_days,omitempty"`
}

// DigestConfig maps assignee tags to digest blocks.
type DigestConfig struct {
	Enabled bool         `json:"enabled"`
	RoleA   DigestBucket `json:"role_a"`
	RoleB   DigestBucket `json:"role_b"`
	Both    DigestBucket `json:"both"`
}

type DigestBucket struct {
	Tag    string `json:"tag"`
	Header string `json:"header,omitempty"`
}

// NotifierConfig controls chat delivery. If the section is omitted the
// notifier follows telegram.enabled.
type NotifierConfig struct {
	Enabled       bool   `json:"enabled"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	SendTimeout   string `json:"send_timeout,omitempty"`
	DedupWindow   string `json:"dedup_window,omitempty"`
	HistorySize   int    `json:"history_size,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards warnings and errors to the household chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}
