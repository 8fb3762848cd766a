package dto

import "time"

// ViewAnalyticsSummary aggregates the trailing 24 hours of view attempts
// for the operator dashboard.
type ViewAnalyticsSummary struct {
	TotalViews    int       `json:"total_views" example:"1532"`
	TotalBlocked  int       `json:"total_blocked" example:"87"`
	UniqueIPs     int       `json:"unique_ips" example:"214"`
	UniquePosts   int       `json:"unique_posts" example:"58"`
	BlockRate     float64   `json:"block_rate" example:"5.68"`
	SuspiciousIPs []string  `json:"suspicious_ips"`
	GeneratedAt   time.Time `json:"generated_at"`
}
