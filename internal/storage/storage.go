package storage

import (
	"context"
	"time"

	"github.com/xaenox/rc-intel-bot/internal/models"
)

type Storage interface {
	UserStorage
	QueryStorage
	CacheStorage
	FeedbackStorage
	StatsStorage
	Close() error
}

// UserStorage holds the quota ledger rows.
type UserStorage interface {
	// RecordUserActivity atomically upserts the user: lifetime count +1,
	// today's count reset to 1 when the stored day differs from today, else +1.
	RecordUserActivity(ctx context.Context, identity models.Identity, today string, now time.Time) (*models.User, error)
	// TouchUser upserts display fields and last_seen without counting a query.
	TouchUser(ctx context.Context, identity models.Identity, now time.Time) error
	// GetUser returns nil, nil for a user never seen before.
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SetPremium(ctx context.Context, userID int64, premium bool) error
	SetBanned(ctx context.Context, userID int64, banned bool) error
	ListUserIDs(ctx context.Context) ([]int64, error)
}

type QueryStorage interface {
	LogQuery(ctx context.Context, q *models.QueryRecord) error
	RecentQueries(ctx context.Context, userID int64, limit int) ([]models.QueryRecord, error)
}

// CacheStorage persists serialized reports. It never evaluates expiry.
type CacheStorage interface {
	// GetCacheEntry returns nil, nil when no entry exists.
	GetCacheEntry(ctx context.Context, rcNumber string) (*models.CacheEntry, error)
	// PutCacheEntry replaces the entry and sets hits to the prior value + 1.
	PutCacheEntry(ctx context.Context, rcNumber string, data []byte, cachedAt time.Time) (*models.CacheEntry, error)
	// IncrementCacheHits bumps the hit counter and returns the new value.
	IncrementCacheHits(ctx context.Context, rcNumber string) (int, error)
	CountCacheEntries(ctx context.Context) (int, error)
}

type FeedbackStorage interface {
	SaveFeedback(ctx context.Context, fb *models.Feedback) error
	RecentFeedback(ctx context.Context, limit int) ([]models.Feedback, error)
}

type StatsStorage interface {
	// AdminStats aggregates usage. CacheSize counts this store's own cache
	// entries; callers using a separate cache backend overwrite it.
	AdminStats(ctx context.Context, today string) (*models.AdminStats, error)
}
