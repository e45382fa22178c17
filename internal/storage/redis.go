package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
	logx "chorebot/pkg/logx"
)

// redisStore layout (prefix defaults to "chorebot:"):
//
//	{prefix}history:data:{date}:{ruleID}  JSON record, written with SETNX
//	{prefix}history:index:date            ZSET member=data key, score=epoch day
//	{prefix}history:index:title:{title}   ZSET member=data key, score=epoch day
type redisStore struct {
	client *redis.Client
	prefix string
	log    logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (HistoryStore, error) {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("storage.redis.addr is required for redis driver")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return newRedisStore(client, cfg.Redis.KeyPrefix, log), nil
}

func newRedisStore(client *redis.Client, prefix string, log logx.Logger) *redisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "chorebot:"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &redisStore{client: client, prefix: prefix, log: log}
}

func (s *redisStore) dataKey(k chore.Key) string {
	return s.prefix + "history:data:" + k.Date + ":" + k.RuleID
}

func (s *redisStore) dateIndex() string { return s.prefix + "history:index:date" }

func (s *redisStore) titleIndex(title string) string {
	return s.prefix + "history:index:title:" + title
}

func epochDay(date string) (float64, error) {
	d, err := calendar.ParseDate(date)
	if err != nil {
		return 0, err
	}
	return float64(d.Unix() / 86400), nil
}

func (s *redisStore) UpsertIfAbsent(ctx context.Context, rec chore.HistoryRecord) (bool, error) {
	score, err := epochDay(rec.Date)
	if err != nil {
		return false, err
	}
	stampRecord(&rec)
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}

	key := s.dataKey(rec.Key())
	ok, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, s.index(ctx, key, score, rec.Title)
	}

	// The record may have been stored by a write whose indexing failed;
	// ZADD is idempotent, so re-index under the stored title.
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var prev chore.HistoryRecord
	if err := json.Unmarshal(raw, &prev); err != nil {
		return false, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return false, s.index(ctx, key, score, prev.Title)
}

func (s *redisStore) index(ctx context.Context, key string, score float64, title string) error {
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.dateIndex(), redis.Z{Score: score, Member: key})
	pipe.ZAdd(ctx, s.titleIndex(title), redis.Z{Score: score, Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis index %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) FindLatestByTitle(ctx context.Context, title string) (chore.HistoryRecord, bool, error) {
	keys, err := s.client.ZRevRange(ctx, s.titleIndex(title), 0, 0).Result()
	if err != nil {
		return chore.HistoryRecord{}, false, err
	}
	if len(keys) == 0 {
		return chore.HistoryRecord{}, false, nil
	}
	recs, err := s.load(ctx, keys)
	if err != nil || len(recs) == 0 {
		return chore.HistoryRecord{}, false, err
	}
	return recs[0], true, nil
}

func (s *redisStore) FindByDateRange(ctx context.Context, start, end string) ([]chore.HistoryRecord, error) {
	lo, err := epochDay(start)
	if err != nil {
		return nil, err
	}
	hi, err := epochDay(end)
	if err != nil {
		return nil, err
	}
	keys, err := s.client.ZRangeByScore(ctx, s.dateIndex(), &redis.ZRangeBy{
		Min: fmt.Sprintf("%.0f", lo),
		Max: fmt.Sprintf("%.0f", hi),
	}).Result()
	if err != nil {
		return nil, err
	}
	recs, err := s.load(ctx, keys)
	if err != nil {
		return nil, err
	}
	sortRecords(recs)
	return recs, nil
}

func (s *redisStore) load(ctx context.Context, keys []string) ([]chore.HistoryRecord, error) {
	if len(keys) == 0 {
		return []chore.HistoryRecord{}, nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]chore.HistoryRecord, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// index points at a missing key
			s.log.Debug("history index entry without data", logx.String("key", keys[i]))
			continue
		}
		var rec chore.HistoryRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *redisStore) Close() error { return s.client.Close() }
