package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/rc-intel-bot/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	users    map[int64]*models.User
	queries  []models.QueryRecord
	cache    map[string]*models.CacheEntry
	feedback []models.Feedback
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[int64]*models.User),
		cache: make(map[string]*models.CacheEntry),
	}
}

// User methods
func (s *MemoryStorage) RecordUserActivity(ctx context.Context, identity models.Identity, today string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[identity.ID]
	if !exists {
		user = &models.User{
			ID:        identity.ID,
			FirstSeen: now,
		}
		s.users[identity.ID] = user
	}

	user.Username = identity.Username
	user.FirstName = identity.FirstName
	user.LastName = identity.LastName
	user.QueriesCount++
	if user.LastQueryDate == today {
		user.QueriesToday++
	} else {
		user.QueriesToday = 1
	}
	user.LastQueryDate = today
	user.LastSeen = now

	cp := *user
	return &cp, nil
}

func (s *MemoryStorage) TouchUser(ctx context.Context, identity models.Identity, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[identity.ID]
	if !exists {
		user = &models.User{ID: identity.ID, FirstSeen: now}
		s.users[identity.ID] = user
	}
	user.Username = identity.Username
	user.FirstName = identity.FirstName
	user.LastName = identity.LastName
	user.LastSeen = now
	return nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, exists := s.users[userID]; exists {
		cp := *user
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStorage) SetPremium(ctx context.Context, userID int64, premium bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureUser(userID).IsPremium = premium
	return nil
}

func (s *MemoryStorage) SetBanned(ctx context.Context, userID int64, banned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureUser(userID).IsBanned = banned
	return nil
}

// ensureUser must be called with mu held.
func (s *MemoryStorage) ensureUser(userID int64) *models.User {
	user, exists := s.users[userID]
	if !exists {
		now := time.Now()
		user = &models.User{ID: userID, FirstSeen: now, LastSeen: now}
		s.users[userID] = user
	}
	return user
}

func (s *MemoryStorage) ListUserIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Query log methods
func (s *MemoryStorage) LogQuery(ctx context.Context, q *models.QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.ID = int64(len(s.queries) + 1)
	s.queries = append(s.queries, *q)
	return nil
}

func (s *MemoryStorage) RecentQueries(ctx context.Context, userID int64, limit int) ([]models.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.QueryRecord
	for i := len(s.queries) - 1; i >= 0 && len(result) < limit; i-- {
		if s.queries[i].UserID == userID {
			result = append(result, s.queries[i])
		}
	}
	return result, nil
}

// Cache methods
func (s *MemoryStorage) GetCacheEntry(ctx context.Context, rcNumber string) (*models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, exists := s.cache[rcNumber]; exists {
		cp := *entry
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStorage) PutCacheEntry(ctx context.Context, rcNumber string, data []byte, cachedAt time.Time) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits := 0
	if prev, exists := s.cache[rcNumber]; exists {
		hits = prev.Hits
	}
	entry := &models.CacheEntry{
		RCNumber: rcNumber,
		Data:     append([]byte(nil), data...),
		CachedAt: cachedAt,
		Hits:     hits + 1,
	}
	s.cache[rcNumber] = entry

	cp := *entry
	return &cp, nil
}

func (s *MemoryStorage) IncrementCacheHits(ctx context.Context, rcNumber string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.cache[rcNumber]
	if !exists {
		return 0, nil
	}
	entry.Hits++
	return entry.Hits, nil
}

func (s *MemoryStorage) CountCacheEntries(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.cache), nil
}

// Feedback methods
func (s *MemoryStorage) SaveFeedback(ctx context.Context, fb *models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb.ID = int64(len(s.feedback) + 1)
	s.feedback = append(s.feedback, *fb)
	return nil
}

func (s *MemoryStorage) RecentFeedback(ctx context.Context, limit int) ([]models.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Feedback
	for i := len(s.feedback) - 1; i >= 0 && len(result) < limit; i-- {
		fb := s.feedback[i]
		if user, exists := s.users[fb.UserID]; exists {
			fb.Username = user.Username
		}
		result = append(result, fb)
	}
	return result, nil
}

func (s *MemoryStorage) AdminStats(ctx context.Context, today string) (*models.AdminStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.AdminStats{
		TotalUsers:   len(s.users),
		TotalQueries: len(s.queries),
	}

	activeToday := make(map[int64]struct{})
	rcCounts := make(map[string]int)
	for _, q := range s.queries {
		if q.Success {
			stats.SuccessfulQueries++
		}
		if models.Day(q.Timestamp) == today {
			stats.QueriesToday++
			activeToday[q.UserID] = struct{}{}
		}
		rcCounts[q.RCNumber]++
	}
	stats.ActiveToday = len(activeToday)

	for _, user := range s.users {
		stats.TopUsers = append(stats.TopUsers, models.UserCount{
			UserID:   user.ID,
			Username: user.Username,
			Queries:  user.QueriesCount,
		})
	}
	sort.Slice(stats.TopUsers, func(i, j int) bool {
		if stats.TopUsers[i].Queries != stats.TopUsers[j].Queries {
			return stats.TopUsers[i].Queries > stats.TopUsers[j].Queries
		}
		return stats.TopUsers[i].UserID < stats.TopUsers[j].UserID
	})
	if len(stats.TopUsers) > 5 {
		stats.TopUsers = stats.TopUsers[:5]
	}

	for rcNumber, count := range rcCounts {
		stats.TopRCNumbers = append(stats.TopRCNumbers, models.RCCount{RCNumber: rcNumber, Count: count})
	}
	sort.Slice(stats.TopRCNumbers, func(i, j int) bool {
		if stats.TopRCNumbers[i].Count != stats.TopRCNumbers[j].Count {
			return stats.TopRCNumbers[i].Count > stats.TopRCNumbers[j].Count
		}
		return stats.TopRCNumbers[i].RCNumber < stats.TopRCNumbers[j].RCNumber
	})
	if len(stats.TopRCNumbers) > 5 {
		stats.TopRCNumbers = stats.TopRCNumbers[:5]
	}

	stats.CacheSize = len(s.cache)
	return stats, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
