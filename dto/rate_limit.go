package dto

import "time"

// AdmitResult is the outcome of a single admission-control check.
type AdmitResult struct {
	Allowed    bool          `json:"allowed" example:"true"`
	Remaining  int           `json:"remaining" example:"9"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty" swaggertype:"integer"`
}

type RateLimiterStats struct {
	Name        string `json:"name" example:"auth"`
	MaxRequests int    `json:"max_requests" example:"10"`
	WindowSecs  int    `json:"window_secs" example:"900"`
	TrackedKeys int    `json:"tracked_keys" example:"37"`
}
