// Package cache provides a bounded, expiring, least-recently-used cache.
//
// One generic [Cache] backs the delivery engine's file-handle pool, chunk
// cache and thumbnail cache. Each instance has a fixed capacity and a
// time-to-live; inserting into a full cache evicts the least recently
// accessed entry. Every read-check-evict-insert sequence runs under one
// mutex, so a Cache is safe for concurrent use.
//
// Eviction callbacks run after the lock is released and receive the reason
// the entry left the cache:
//
//	handles := cache.New(cache.Options[string, *os.File]{
//	    Name:     "handles",
//	    Capacity: 30,
//	    TTL:      time.Minute,
//	    Sliding:  true,
//	    OnEvict:  func(_ string, f *os.File, _ cache.Reason) { f.Close() },
//	})
//
// Expired entries are dropped lazily on access and eagerly by [Cache.Sweep],
// which callers run from a background ticker.
package cache
