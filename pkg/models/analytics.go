package models

import "time"

// HitSummary aggregates cache hits per category and session type.
type HitSummary struct {
	Category    string    `json:"category"`
	SessionType string    `json:"session_type"`
	Events      int64     `json:"events"`
	LastHitAt   time.Time `json:"last_hit_at"`
}
