package storage

import (
	"context"
	"sync"

	"chorebot/internal/chore"
)

// Memory is a process-local history store.
type Memory struct {
	mu   sync.Mutex
	recs map[chore.Key]chore.HistoryRecord
}

func NewMemory() *Memory {
	return &Memory{recs: map[chore.Key]chore.HistoryRecord{}}
}

func (m *Memory) FindLatestByTitle(ctx context.Context, title string) (chore.HistoryRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return latestByTitle(m.recs, title)
}

func (m *Memory) FindByDateRange(ctx context.Context, start, end string) ([]chore.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return inRange(m.recs, start, end), nil
}

func (m *Memory) UpsertIfAbsent(ctx context.Context, rec chore.HistoryRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rec.Key()
	if _, ok := m.recs[k]; ok {
		return false, nil
	}
	stampRecord(&rec)
	m.recs[k] = rec
	return true, nil
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func (m *Memory) Close() error { return nil }

func latestByTitle(recs map[chore.Key]chore.HistoryRecord, title string) (chore.HistoryRecord, bool, error) {
	var (
		best  chore.HistoryRecord
		found bool
	)
	for _, r := range recs {
		if r.Title != title {
			continue
		}
		if !found || r.Date > best.Date {
			best, found = r, true
		}
	}
	return best, found, nil
}

func inRange(recs map[chore.Key]chore.HistoryRecord, start, end string) []chore.HistoryRecord {
	out := make([]chore.HistoryRecord, 0)
	for _, r := range recs {
		if r.Date >= start && r.Date <= end {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out
}
