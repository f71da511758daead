package delivery

import (
	"time"

	"skillgoblin/internal/streaming"
	"skillgoblin/internal/workers"
)

// Config holds the static limits of an Engine.
type Config struct {
	// MaxChunkSize caps the bytes of a single range response.
	MaxChunkSize int64
	// MaxFullFileSize is the smallest video refused without a Range header.
	MaxFullFileSize int64
	// MaxCachedChunkSize is the largest chunk kept in the chunk cache.
	MaxCachedChunkSize int64
	// PrefetchMinRemaining skips prefetching when less than this is left.
	PrefetchMinRemaining int64

	HandleCacheSize    int
	HandleCacheTTL     time.Duration
	ChunkCacheSize     int
	ChunkCacheTTL      time.Duration
	ThumbnailCacheSize int
	ThumbnailCacheTTL  time.Duration

	// SweepInterval is how often expired cache entries are dropped.
	SweepInterval time.Duration
	// PrefetchWorkers bounds concurrent prefetches.
	PrefetchWorkers int
	// PlaceholderPath is the thumbnail fallback image.
	PlaceholderPath string

	Stream streaming.TimeoutWriterConfig
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize:         2 * 1024 * 1024,
		MaxFullFileSize:      20 * 1024 * 1024,
		MaxCachedChunkSize:   2 * 1024 * 1024,
		PrefetchMinRemaining: 64 * 1024,
		HandleCacheSize:      30,
		HandleCacheTTL:       60 * time.Second,
		ChunkCacheSize:       100,
		ChunkCacheTTL:        5 * time.Minute,
		ThumbnailCacheSize:   50,
		ThumbnailCacheTTL:    10 * time.Minute,
		SweepInterval:        30 * time.Second,
		PrefetchWorkers:      workers.ForIO(8),
		PlaceholderPath:      "public/images/placeholder.png",
		Stream:               streaming.DefaultTimeoutWriterConfig(),
	}
}
