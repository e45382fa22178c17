package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"chorebot/internal/chore"
	logx "chorebot/pkg/logx"
)

// fileStore keeps history in an append-only JSON Lines journal and an
// in-memory index rebuilt on open. Duplicate keys in the journal keep the
// first record, matching insert-if-absent semantics.
type fileStore struct {
	log logx.Logger

	mu      sync.Mutex
	journal *os.File
	recs    map[chore.Key]chore.HistoryRecord
}

func openFile(cfg Config, log logx.Logger) (HistoryStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	recs := map[chore.Key]chore.HistoryRecord{}
	skipped, err := replayJournal(path, recs)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if skipped > 0 {
		log.Warn("history journal has unreadable lines", logx.String("path", path), logx.Int("skipped", skipped))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	log.Debug("history journal loaded", logx.String("path", path), logx.Int("records", len(recs)))
	return &fileStore{log: log, journal: f, recs: recs}, nil
}

func replayJournal(path string, out map[chore.Key]chore.HistoryRecord) (skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var r chore.HistoryRecord
		if err := json.Unmarshal(line, &r); err != nil || r.Date == "" {
			skipped++
			continue
		}
		if _, dup := out[r.Key()]; !dup {
			out[r.Key()] = r
		}
	}
	return skipped, sc.Err()
}

func (s *fileStore) FindLatestByTitle(ctx context.Context, title string) (chore.HistoryRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return latestByTitle(s.recs, title)
}

func (s *fileStore) FindByDateRange(ctx context.Context, start, end string) ([]chore.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return inRange(s.recs, start, end), nil
}

func (s *fileStore) UpsertIfAbsent(ctx context.Context, rec chore.HistoryRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return false, errors.New("history journal closed")
	}
	k := rec.Key()
	if _, ok := s.recs[k]; ok {
		return false, nil
	}
	stampRecord(&rec)
	if err := json.NewEncoder(s.journal).Encode(rec); err != nil {
		return false, err
	}
	s.recs[k] = rec
	return true, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}
