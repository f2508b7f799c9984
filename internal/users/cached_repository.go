package users

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "allowlist:v1:"

// CachedRepository is a read-through Redis cache in front of another
// Repository. Only successful lookups are cached; writes evict the entry.
type CachedRepository struct {
	next   Repository
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRepository wraps next. A nil cache or non-positive ttl returns next unchanged.
func NewCachedRepository(next Repository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) Repository {
	if cache == nil || ttl <= 0 {
		return next
	}
	return &CachedRepository{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (r *CachedRepository) Lookup(ctx context.Context, telegramID string) (Record, error) {
	key := cachePrefix + telegramID

	cached, err := r.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rec Record
		if err := json.Unmarshal(cached, &rec); err == nil {
			return rec, nil
		}
		r.logger.Warn("discarding undecodable cached user", slog.String("telegram_id", telegramID))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("user cache read failed", slog.String("telegram_id", telegramID), slog.Any("error", err))
	}

	rec, err := r.next.Lookup(ctx, telegramID)
	if err != nil {
		return Record{}, err
	}

	if payload, err := json.Marshal(rec); err == nil {
		if err := r.cache.Set(ctx, key, payload, r.ttl).Err(); err != nil {
			r.logger.Warn("user cache write failed", slog.String("telegram_id", telegramID), slog.Any("error", err))
		}
	}
	return rec, nil
}

func (r *CachedRepository) Upsert(ctx context.Context, record Record) (Record, error) {
	rec, err := r.next.Upsert(ctx, record)
	r.evict(ctx, record.TelegramID)
	return rec, err
}

func (r *CachedRepository) Delete(ctx context.Context, telegramID string) error {
	err := r.next.Delete(ctx, telegramID)
	r.evict(ctx, telegramID)
	return err
}

func (r *CachedRepository) List(ctx context.Context) ([]Record, error) {
	return r.next.List(ctx)
}

func (r *CachedRepository) evict(ctx context.Context, telegramID string) {
	if err := r.cache.Del(ctx, cachePrefix+telegramID).Err(); err != nil {
		r.logger.Warn("user cache eviction failed", slog.String("telegram_id", telegramID), slog.Any("error", err))
	}
}
