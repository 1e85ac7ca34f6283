package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/xaenox/rc-intel-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("dbname", config.DBName))

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

const userColumns = `user_id, username, first_name, last_name, queries_count, queries_today,
		COALESCE(to_char(last_query_date, 'YYYY-MM-DD'), ''), first_seen, last_seen, is_premium, is_banned`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.QueriesCount,
		&user.QueriesToday,
		&user.LastQueryDate,
		&user.FirstSeen,
		&user.LastSeen,
		&user.IsPremium,
		&user.IsBanned,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RecordUserActivity runs the increment-or-reset as one statement so that
// concurrent calls for the same user cannot lose updates.
func (s *PostgresStorage) RecordUserActivity(ctx context.Context, identity models.Identity, today string, now time.Time) (*models.User, error) {
	query := `
		INSERT INTO users (user_id, username, first_name, last_name,
			queries_count, queries_today, last_query_date, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, 1, 1, $5, $6, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			queries_count = users.queries_count + 1,
			queries_today = CASE
				WHEN users.last_query_date = EXCLUDED.last_query_date THEN users.queries_today + 1
				ELSE 1
			END,
			last_query_date = EXCLUDED.last_query_date,
			last_seen = EXCLUDED.last_seen
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		identity.ID,
		identity.Username,
		identity.FirstName,
		identity.LastName,
		today,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("error recording user activity: %w", err)
	}
	return user, nil
}

func (s *PostgresStorage) TouchUser(ctx context.Context, identity models.Identity, now time.Time) error {
	query := `
		INSERT INTO users (user_id, username, first_name, last_name, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_seen = EXCLUDED.last_seen`

	_, err := s.db.ExecContext(ctx, query,
		identity.ID, identity.Username, identity.FirstName, identity.LastName, now)
	if err != nil {
		return fmt.Errorf("error touching user: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	return user, nil
}

func (s *PostgresStorage) SetPremium(ctx context.Context, userID int64, premium bool) error {
	query := `
		INSERT INTO users (user_id, is_premium) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET is_premium = EXCLUDED.is_premium`

	if _, err := s.db.ExecContext(ctx, query, userID, premium); err != nil {
		return fmt.Errorf("error setting premium flag: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SetBanned(ctx context.Context, userID int64, banned bool) error {
	query := `
		INSERT INTO users (user_id, is_banned) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET is_banned = EXCLUDED.is_banned`

	if _, err := s.db.ExecContext(ctx, query, userID, banned); err != nil {
		return fmt.Errorf("error setting banned flag: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStorage) LogQuery(ctx context.Context, q *models.QueryRecord) error {
	query := `
		INSERT INTO queries (user_id, rc_number, timestamp, success, error_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var errorMessage sql.NullString
	if q.ErrorMessage != "" {
		errorMessage = sql.NullString{String: q.ErrorMessage, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, query,
		q.UserID,
		q.RCNumber,
		q.Timestamp,
		q.Success,
		errorMessage,
	).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("error logging query: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentQueries(ctx context.Context, userID int64, limit int) ([]models.QueryRecord, error) {
	query := `
		SELECT id, user_id, rc_number, timestamp, success, COALESCE(error_message, '')
		FROM queries
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying recent queries: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var q models.QueryRecord
		if err := rows.Scan(&q.ID, &q.UserID, &q.RCNumber, &q.Timestamp, &q.Success, &q.ErrorMessage); err != nil {
			return nil, fmt.Errorf("error scanning query: %w", err)
		}
		records = append(records, q)
	}
	return records, rows.Err()
}

func (s *PostgresStorage) GetCacheEntry(ctx context.Context, rcNumber string) (*models.CacheEntry, error) {
	query := `SELECT rc_number, response_data, cached_at, hits FROM cache WHERE rc_number = $1`

	entry := &models.CacheEntry{}
	err := s.db.QueryRowContext(ctx, query, rcNumber).
		Scan(&entry.RCNumber, &entry.Data, &entry.CachedAt, &entry.Hits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting cache entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStorage) PutCacheEntry(ctx context.Context, rcNumber string, data []byte, cachedAt time.Time) (*models.CacheEntry, error) {
	query := `
		INSERT INTO cache (rc_number, response_data, cached_at, hits)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (rc_number) DO UPDATE SET
			response_data = EXCLUDED.response_data,
			cached_at = EXCLUDED.cached_at,
			hits = cache.hits + 1
		RETURNING hits`

	entry := &models.CacheEntry{RCNumber: rcNumber, Data: data, CachedAt: cachedAt}
	if err := s.db.QueryRowContext(ctx, query, rcNumber, string(data), cachedAt).Scan(&entry.Hits); err != nil {
		return nil, fmt.Errorf("error caching response: %w", err)
	}
	return entry, nil
}

func (s *PostgresStorage) IncrementCacheHits(ctx context.Context, rcNumber string) (int, error) {
	var hits int
	err := s.db.QueryRowContext(ctx,
		`UPDATE cache SET hits = hits + 1 WHERE rc_number = $1 RETURNING hits`, rcNumber).Scan(&hits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error incrementing cache hits: %w", err)
	}
	return hits, nil
}

func (s *PostgresStorage) CountCacheEntries(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting cache entries: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) SaveFeedback(ctx context.Context, fb *models.Feedback) error {
	query := `
		INSERT INTO feedback (user_id, message, category, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query, fb.UserID, fb.Message, string(fb.Category), fb.Timestamp).Scan(&fb.ID)
	if err != nil {
		return fmt.Errorf("error saving feedback: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentFeedback(ctx context.Context, limit int) ([]models.Feedback, error) {
	query := `
		SELECT f.id, f.user_id, COALESCE(u.username, ''), f.message, f.category, f.timestamp
		FROM feedback f
		LEFT JOIN users u ON f.user_id = u.user_id
		ORDER BY f.timestamp DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying feedback: %w", err)
	}
	defer rows.Close()

	var feedback []models.Feedback
	for rows.Next() {
		var fb models.Feedback
		var category string
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.Username, &fb.Message, &category, &fb.Timestamp); err != nil {
			return nil, fmt.Errorf("error scanning feedback: %w", err)
		}
		fb.Category = models.FeedbackCategory(category)
		feedback = append(feedback, fb)
	}
	return feedback, rows.Err()
}

func (s *PostgresStorage) AdminStats(ctx context.Context, today string) (*models.AdminStats, error) {
	stats := &models.AdminStats{}

	totals := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM queries),
			(SELECT COUNT(*) FROM queries WHERE success),
			(SELECT COUNT(*) FROM queries WHERE timestamp::date = $1::date),
			(SELECT COUNT(DISTINCT user_id) FROM queries WHERE timestamp::date = $1::date),
			(SELECT COUNT(*) FROM cache)`

	err := s.db.QueryRowContext(ctx, totals, today).Scan(
		&stats.TotalUsers,
		&stats.TotalQueries,
		&stats.SuccessfulQueries,
		&stats.QueriesToday,
		&stats.ActiveToday,
		&stats.CacheSize,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, username, queries_count
		FROM users
		ORDER BY queries_count DESC, user_id
		LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("error querying top users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uc models.UserCount
		if err := rows.Scan(&uc.UserID, &uc.Username, &uc.Queries); err != nil {
			return nil, fmt.Errorf("error scanning top user: %w", err)
		}
		stats.TopUsers = append(stats.TopUsers, uc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rcRows, err := s.db.QueryContext(ctx, `
		SELECT rc_number, COUNT(*) AS count
		FROM queries
		GROUP BY rc_number
		ORDER BY count DESC, rc_number
		LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("error querying top rc numbers: %w", err)
	}
	defer rcRows.Close()
	for rcRows.Next() {
		var rc models.RCCount
		if err := rcRows.Scan(&rc.RCNumber, &rc.Count); err != nil {
			return nil, fmt.Errorf("error scanning top rc number: %w", err)
		}
		stats.TopRCNumbers = append(stats.TopRCNumbers, rc)
	}
	return stats, rcRows.Err()
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
