package models

import "time"

// QueryRecord is an append-only audit entry for one lookup attempt.
type QueryRecord struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	RCNumber     string    `json:"rc_number"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// CacheEntry is a stored, serialized report for one RC number.
type CacheEntry struct {
	RCNumber string    `json:"rc_number"`
	Data     []byte    `json:"data"`
	CachedAt time.Time `json:"cached_at"`
	Hits     int       `json:"hits"`
}

type FeedbackCategory string

const (
	FeedbackBug            FeedbackCategory = "bug"
	FeedbackFeatureRequest FeedbackCategory = "feature_request"
	FeedbackPraise         FeedbackCategory = "praise"
	FeedbackGeneral        FeedbackCategory = "general"
)

func (c FeedbackCategory) Valid() bool {
	switch c {
	case FeedbackBug, FeedbackFeatureRequest, FeedbackPraise, FeedbackGeneral:
		return true
	}
	return false
}

// Feedback is a free-form message left by a user.
type Feedback struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Username  string           `json:"username,omitempty"`
	Message   string           `json:"message"`
	Category  FeedbackCategory `json:"category"`
	Timestamp time.Time        `json:"timestamp"`
}
