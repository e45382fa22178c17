package storage

import (
	"errors"
	"strings"

	logx "chorebot/pkg/logx"
)

// Open initializes the configured history store.
// It returns (nil, ErrDisabled) when the driver is empty or "none".
func Open(cfg Config, log logx.Logger) (HistoryStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, ErrDisabled
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "memory":
		return NewMemory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "redis":
		return openRedis(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
