package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const (
	CSATDispatchInterval = 1 * time.Minute
	CleanupJobInterval   = 5 * time.Minute
)

// Default rate limiting for the authenticated API
const DefaultRateLimitPerMin = 120

// Hard per-call ceilings for downstream capabilities. One slow provider
// must never block the whole event.
const (
	MediaDownloadTimeout = 45 * time.Second
	TranscodeTimeout     = 30 * time.Second
	TranscriptionTimeout = 60 * time.Second
	GenerationTimeout    = 45 * time.Second
	AnalysisTimeout      = 60 * time.Second
	SendTimeout          = 20 * time.Second
)

// Reaction target resolution: nearest-in-time window for compatible-type
// fallback matching.
const ReactionFallbackWindow = 5 * time.Minute

// Quoted-reply snippet length stored in the extension bag.
const ReplySnippetMaxLen = 120
