package models

// HarvestResponse is the response for POST /api/v1/harvest.
type HarvestResponse struct {
	// Success indicates whether the run produced a report without a terminal error.
	Success bool `json:"success"`

	// Report carries the records and run counters.
	Report *RunReport `json:"report,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// HarvestMs is the time spent scrolling and extracting cards.
	HarvestMs int64 `json:"harvest_ms"`

	// EnrichMs is the time spent in AI clustering.
	EnrichMs int64 `json:"enrich_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string      `json:"status"` // "healthy" or "busy"
	Uptime  string      `json:"uptime"`
	Session SessionInfo `json:"session"`
	Version string      `json:"version"`
}

// SessionInfo reports the state of the shared browser session.
type SessionInfo struct {
	Busy        bool   `json:"busy"`
	Runs        int64  `json:"runs"`
	LastKeyword string `json:"last_keyword,omitempty"`
}
