package models

import "time"

// Identity carries the display fields the chat transport attaches to every event.
type Identity struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// User represents a bot user with their quota counters and flags
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	QueriesCount  int       `json:"queries_count"`
	QueriesToday  int       `json:"queries_today"`
	LastQueryDate string    `json:"last_query_date"` // YYYY-MM-DD
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	IsPremium     bool      `json:"is_premium"`
	IsBanned      bool      `json:"is_banned"`
}

// DateLayout is the calendar-day format used for LastQueryDate.
const DateLayout = "2006-01-02"

// Day returns the calendar day of t in t's location.
func Day(t time.Time) string {
	return t.Format(DateLayout)
}
