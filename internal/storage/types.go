package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"chorebot/internal/chore"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the history store.
//
// Driver values:
//   - "sqlite": SQLite database file (modernc, no cgo)
//   - "file":   append-only JSON Lines journal
//   - "redis":  Redis keys + sorted-set indexes
//   - "memory": process-local, for tests and dry runs
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Redis       RedisConfig
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// HistoryStore persists flushed occurrences, unique on (date, original rule id).
type HistoryStore interface {
	// FindLatestByTitle returns the record with the greatest date for title.
	FindLatestByTitle(ctx context.Context, title string) (chore.HistoryRecord, bool, error)
	// FindByDateRange returns records with start <= date <= end, ascending by date.
	FindByDateRange(ctx context.Context, start, end string) ([]chore.HistoryRecord, error)
	// UpsertIfAbsent inserts rec unless its natural key exists. Existing rows are never modified.
	UpsertIfAbsent(ctx context.Context, rec chore.HistoryRecord) (inserted bool, err error)
	Close() error
}

func sortRecords(recs []chore.HistoryRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Date != recs[j].Date {
			return recs[i].Date < recs[j].Date
		}
		return recs[i].OriginalRuleID < recs[j].OriginalRuleID
	})
}

func stampRecord(rec *chore.HistoryRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.ScheduledDate.IsZero() {
		rec.ScheduledDate = rec.CreatedAt
	}
}
