package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xaenox/rc-intel-bot/internal/models"
)

const cacheKeyPrefix = "rcintel:cache:"

// Only bump hits on entries that still exist; HINCRBY alone would resurrect
// an expired key as an empty hash.
var incrementHitsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('HINCRBY', KEYS[1], 'hits', 1)
end
return 0
`)

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Retention time.Duration
}

// RedisCacheStorage keeps report cache entries in Redis hashes. Keys expire
// after the retention period, which bounds storage; the read-side TTL is
// still evaluated from cached_at by the caller.
type RedisCacheStorage struct {
	client    *redis.Client
	retention time.Duration
}

// OpenRedisCacheStorage creates a client and pings it to validate the connection.
func OpenRedisCacheStorage(ctx context.Context, config RedisConfig) (*RedisCacheStorage, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	client := redis.NewClient(&redis.Options{Addr: config.Addr, Password: config.Password, DB: config.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return NewRedisCacheStorage(client, config.Retention), nil
}

func NewRedisCacheStorage(client *redis.Client, retention time.Duration) *RedisCacheStorage {
	return &RedisCacheStorage{client: client, retention: retention}
}

func (s *RedisCacheStorage) key(rcNumber string) string {
	return cacheKeyPrefix + rcNumber
}

func (s *RedisCacheStorage) GetCacheEntry(ctx context.Context, rcNumber string) (*models.CacheEntry, error) {
	values, err := s.client.HGetAll(ctx, s.key(rcNumber)).Result()
	if err != nil {
		return nil, fmt.Errorf("error getting cache entry: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	cachedAt, err := strconv.ParseInt(values["cached_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("error parsing cached_at: %w", err)
	}
	hits, _ := strconv.Atoi(values["hits"])

	return &models.CacheEntry{
		RCNumber: rcNumber,
		Data:     []byte(values["data"]),
		CachedAt: time.Unix(0, cachedAt),
		Hits:     hits,
	}, nil
}

func (s *RedisCacheStorage) PutCacheEntry(ctx context.Context, rcNumber string, data []byte, cachedAt time.Time) (*models.CacheEntry, error) {
	key := s.key(rcNumber)

	var hits *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "data", data, "cached_at", cachedAt.UnixNano())
		hits = pipe.HIncrBy(ctx, key, "hits", 1)
		if s.retention > 0 {
			pipe.Expire(ctx, key, s.retention)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error caching response: %w", err)
	}

	return &models.CacheEntry{
		RCNumber: rcNumber,
		Data:     data,
		CachedAt: cachedAt,
		Hits:     int(hits.Val()),
	}, nil
}

func (s *RedisCacheStorage) IncrementCacheHits(ctx context.Context, rcNumber string) (int, error) {
	hits, err := incrementHitsScript.Run(ctx, s.client, []string{s.key(rcNumber)}).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("error incrementing cache hits: %w", err)
	}
	return hits, nil
}

func (s *RedisCacheStorage) CountCacheEntries(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("error counting cache entries: %w", err)
	}
	return count, nil
}

func (s *RedisCacheStorage) Close() error {
	return s.client.Close()
}
