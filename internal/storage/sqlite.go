package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
	logx "chorebot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (HistoryStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			log.Debug("sqlite pragma failed", logx.String("pragma", p), logx.Err(err))
		}
	}

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migrations)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const historyColumns = `house_work_id, title, assignee, memo, date, day_of_week, original_house_work_id,
	url, emoji, is_done, scheduled_date, completed_date, created_at`

func (s *sqliteStore) UpsertIfAbsent(ctx context.Context, rec chore.HistoryRecord) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	stampRecord(&rec)
	var completed any
	if rec.CompletedDate != nil {
		completed = rec.CompletedDate.Format(time.RFC3339Nano)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO housework_history(`+historyColumns+`)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(date, original_house_work_id) DO NOTHING`,
		rec.ID, rec.Title, rec.Assignee, rec.Memo, rec.Date, int(rec.DayOfWeek), rec.OriginalRuleID,
		rec.URL, rec.Emoji, boolInt(rec.IsDone), rec.ScheduledDate.Format(time.RFC3339Nano), completed,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) FindLatestByTitle(ctx context.Context, title string) (chore.HistoryRecord, bool, error) {
	if s == nil || s.db == nil {
		return chore.HistoryRecord{}, false, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM housework_history
		 WHERE title = ? ORDER BY date DESC LIMIT 1`, title)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chore.HistoryRecord{}, false, nil
	}
	if err != nil {
		return chore.HistoryRecord{}, false, err
	}
	return rec, true, nil
}

func (s *sqliteStore) FindByDateRange(ctx context.Context, start, end string) ([]chore.HistoryRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM housework_history
		 WHERE date >= ? AND date <= ? ORDER BY date ASC, original_house_work_id ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]chore.HistoryRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (chore.HistoryRecord, error) {
	var (
		rec                  chore.HistoryRecord
		dow, done            int
		scheduled, createdAt string
		completed            sql.NullString
	)
	err := sc.Scan(&rec.ID, &rec.Title, &rec.Assignee, &rec.Memo, &rec.Date, &dow, &rec.OriginalRuleID,
		&rec.URL, &rec.Emoji, &done, &scheduled, &completed, &createdAt)
	if err != nil {
		return chore.HistoryRecord{}, err
	}
	rec.DayOfWeek = calendar.Weekday(dow)
	rec.IsDone = done != 0
	if rec.ScheduledDate, err = time.Parse(time.RFC3339Nano, scheduled); err != nil {
		return chore.HistoryRecord{}, fmt.Errorf("history %s: scheduled_date: %w", rec.ID, err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return chore.HistoryRecord{}, fmt.Errorf("history %s: created_at: %w", rec.ID, err)
	}
	if completed.Valid {
		t, err := time.Parse(time.RFC3339Nano, completed.String)
		if err != nil {
			return chore.HistoryRecord{}, fmt.Errorf("history %s: completed_date: %w", rec.ID, err)
		}
		rec.CompletedDate = &t
		rec.CompletedAt = &t
	}
	return rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
