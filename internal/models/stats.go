package models

// UserStats is the read model behind /stats.
type UserStats struct {
	User          User          `json:"user"`
	Remaining     int           `json:"remaining"` // -1 means unlimited
	RecentQueries []QueryRecord `json:"recent_queries"`
}

type UserCount struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Queries  int    `json:"queries"`
}

type RCCount struct {
	RCNumber string `json:"rc_number"`
	Count    int    `json:"count"`
}

// AdminStats is the read model behind the admin dashboard.
type AdminStats struct {
	TotalUsers        int         `json:"total_users"`
	TotalQueries      int         `json:"total_queries"`
	SuccessfulQueries int         `json:"successful_queries"`
	QueriesToday      int         `json:"queries_today"`
	ActiveToday       int         `json:"active_today"`
	TopUsers          []UserCount `json:"top_users"`
	TopRCNumbers      []RCCount   `json:"top_rc_numbers"`
	CacheSize         int         `json:"cache_size"`
}

// SuccessRate returns the share of successful queries in percent.
func (s AdminStats) SuccessRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.SuccessfulQueries) / float64(s.TotalQueries) * 100
}
