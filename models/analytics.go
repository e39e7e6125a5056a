// api/models/analytics.go
package models

import "time"

type TrendPoint struct {
	Date  string `json:"date"`
	Users int64  `json:"users"`
}

// Summary holds headline metrics for a window and their change against the
// previous window of the same length.
type Summary struct {
	TotalUsers        int64        `json:"total_users"`
	TotalUsersChange  float64      `json:"total_users_change"`
	EventCount        int64        `json:"event_count"`
	EventCountChange  float64      `json:"event_count_change"`
	Conversions       int64        `json:"conversions"`
	ConversionsChange float64      `json:"conversions_change"`
	NewUsers          int64        `json:"new_users"`
	NewUsersChange    float64      `json:"new_users_change"`
	TrendData         []TrendPoint `json:"trend_data"`
}

type MinuteCount struct {
	Minute string `json:"minute"`
	Users  int64  `json:"users"`
}

type CountryCount struct {
	Country string `json:"country"`
	Users   int64  `json:"users"`
}

type Realtime struct {
	ActiveUsers    int64          `json:"active_users"`
	UsersByMinute  []MinuteCount  `json:"users_by_minute"`
	UsersByCountry []CountryCount `json:"users_by_country"`
}

// AppInfo is one (app_name, domain) pair seen across all events.
type AppInfo struct {
	AppName    string    `json:"app_name"`
	Domain     string    `json:"domain"`
	EventCount int64     `json:"event_count"`
	UserCount  int64     `json:"user_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}
