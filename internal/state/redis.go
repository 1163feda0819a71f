package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maine/youtube_blog_worker/internal/video"
)

// RedisBackend хранит историю в Redis: хэш записей, хэш запусков ниш и ключ версии.
// Запись идёт в MULTI под WATCH ключа версии.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
	clock  func() time.Time
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend подключается к Redis. dsn: адрес host:port или URL redis://.
func NewRedisBackend(ctx context.Context, dsn, prefix string, clock func() time.Time) (*RedisBackend, error) {
	opts := &redis.Options{Addr: dsn}
	if strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://") {
		parsed, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisBackend(rdb, prefix, clock), nil
}

func newRedisBackend(rdb *redis.Client, prefix string, clock func() time.Time) *RedisBackend {
	if clock == nil {
		clock = time.Now
	}
	if prefix == "" {
		prefix = "blogworker"
	}
	return &RedisBackend{rdb: rdb, prefix: prefix, clock: clock}
}

// Close закрывает соединение.
func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}

func (b *RedisBackend) key(name string) string {
	return b.prefix + ":" + name
}

// Load реализует Backend. Все три ключа читаются одной транзакцией.
func (b *RedisBackend) Load(ctx context.Context) (video.History, error) {
	var (
		versionCmd *redis.StringCmd
		updatedCmd *redis.StringCmd
		itemsCmd   *redis.MapStringStringCmd
		nichesCmd  *redis.MapStringStringCmd
	)
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		versionCmd = pipe.Get(ctx, b.key("version"))
		updatedCmd = pipe.Get(ctx, b.key("updated_at"))
		itemsCmd = pipe.HGetAll(ctx, b.key("items"))
		nichesCmd = pipe.HGetAll(ctx, b.key("niches"))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return video.History{}, fmt.Errorf("load history from redis: %w", err)
	}

	history := emptyHistory()
	if v, err := versionCmd.Int64(); err == nil {
		history.Version = v
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedCmd.Val()); err == nil {
		history.UpdatedAt = t
	}

	for id, raw := range itemsCmd.Val() {
		var rec video.UsedItemRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return video.History{}, fmt.Errorf("decode used item %s: %w", id, err)
		}
		history.Items[id] = rec
	}
	for niche, raw := range nichesCmd.Val() {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return video.History{}, fmt.Errorf("decode niche run %s: %w", niche, err)
		}
		history.NicheRuns[niche] = t
	}
	return history, nil
}

// Apply реализует Backend.
func (b *RedisBackend) Apply(ctx context.Context, expectedVersion int64, diff Diff) (int64, error) {
	versionKey := b.key("version")
	itemsKey := b.key("items")
	nichesKey := b.key("niches")

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != expectedVersion {
			return fmt.Errorf("%w: redis at version %d, expected %d", ErrVersionConflict, current, expectedVersion)
		}

		// FirstUsed сохраняем самый ранний, как и в остальных бэкендах
		upserts := make([]video.UsedItemRecord, 0, len(diff.Upserts))
		for _, rec := range diff.Upserts {
			if raw, err := tx.HGet(ctx, itemsKey, rec.ID).Result(); err == nil {
				var prev video.UsedItemRecord
				if json.Unmarshal([]byte(raw), &prev) == nil && !prev.FirstUsed.IsZero() && prev.FirstUsed.Before(rec.FirstUsed) {
					rec.FirstUsed = prev.FirstUsed
				}
			}
			upserts = append(upserts, rec)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(diff.Deletes) > 0 {
				pipe.HDel(ctx, itemsKey, diff.Deletes...)
			}
			for _, rec := range upserts {
				data, err := json.Marshal(rec)
				if err != nil {
					return err
				}
				pipe.HSet(ctx, itemsKey, rec.ID, data)
			}
			for niche, at := range diff.NicheRuns {
				pipe.HSet(ctx, nichesKey, niche, at.UTC().Format(time.RFC3339Nano))
			}
			pipe.Set(ctx, versionKey, expectedVersion+1, 0)
			pipe.Set(ctx, b.key("updated_at"), b.clock().UTC().Format(time.RFC3339Nano), 0)
			return nil
		})
		return err
	}

	if err := b.rdb.Watch(ctx, txf, versionKey); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return 0, fmt.Errorf("%w: watched version changed", ErrVersionConflict)
		}
		if errors.Is(err, ErrVersionConflict) {
			return 0, err
		}
		return 0, fmt.Errorf("apply history to redis: %w", err)
	}
	return expectedVersion + 1, nil
}
