package models

import "time"

// GenRecord represents a single generator invocation, cached or not.
type GenRecord struct {
	RequestID      string    `json:"request_id"`
	CacheKeyPrefix string    `json:"cache_key_prefix"`
	VariantIndex   int       `json:"variant_index"`
	Category       string    `json:"category"`
	SessionType    string    `json:"session_type"`
	CacheHit       bool      `json:"cache_hit"`
	LatencyMs      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// GenLogConfig controls the generation log subsystem.
type GenLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// GenQueryOpts specifies filters for querying generation records.
type GenQueryOpts struct {
	RequestID      string
	Category       string
	CacheKeyPrefix string
	Since          time.Time
	HitsOnly       bool
	Limit          int
}

// GenStat holds aggregate invocation counts for a category/day combination.
type GenStat struct {
	Category string
	Day      string
	Count    int
	Hits     int
}
