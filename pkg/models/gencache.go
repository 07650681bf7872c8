package models

import (
	"encoding/json"
	"time"
)

// CacheEntry stores one cached generation result. An entry is keyed by the
// pair (cache_key, variant_index); the request hash exists only to detect
// narrow-key collisions and is never used for lookup.
type CacheEntry struct {
	CacheKey     string          `json:"cache_key"`
	VariantIndex int             `json:"variant_index"`
	RequestHash  string          `json:"request_hash"`
	Artifact     json.RawMessage `json:"artifact"`
	CreatedAt    time.Time       `json:"created_at"`
	LastAccessed time.Time       `json:"last_accessed"`
	HitCount     int64           `json:"hit_count"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// Expired reports whether the entry is logically dead at the given instant,
// independent of physical deletion.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// CacheStats reports aggregate cache state. On an empty cache all counts are
// zero and the access timestamps are nil.
type CacheStats struct {
	TotalEntries    int64      `json:"total_entries"`
	TotalHits       int64      `json:"total_hits"`
	AvgHitsPerEntry float64    `json:"avg_hits_per_entry"`
	OldestAccess    *time.Time `json:"oldest_access,omitempty"`
	NewestAccess    *time.Time `json:"newest_access,omitempty"`
	BudgetUnitsUsed int64      `json:"budget_units_used"`
}

// HitEvent is the payload delivered to the analytics sink on every cache
// hit. Only the key prefix crosses the boundary, never the full key.
type HitEvent struct {
	CacheKeyPrefix string `json:"cache_key_prefix"`
	VariantIndex   int    `json:"variant_index"`
	HitCount       int64  `json:"hit_count"`
	Category       string `json:"category"`
	SessionType    string `json:"session_type"`
}
