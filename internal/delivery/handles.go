package delivery

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"skillgoblin/internal/cache"
	"skillgoblin/internal/filesystem"
	"skillgoblin/internal/logging"
)

// handle is an open file shared by concurrent readers through ReadAt.
// It is closed once it has left the pool and its last reader released it.
type handle struct {
	file    *os.File
	size    int64
	modTime time.Time
	refs    int
	evicted bool
	pooled  bool
}

func (h *handle) matches(info os.FileInfo) bool {
	return h.size == info.Size() && h.modTime.Equal(info.ModTime())
}

// handlePool keeps recently used files open, keyed by absolute path.
type handlePool struct {
	mu    sync.Mutex // guards refs and evicted of every handle
	cache *cache.Cache[string, *handle]
	group singleflight.Group
	retry filesystem.RetryConfig
	log   logging.Logger
}

func newHandlePool(size int, ttl time.Duration, retry filesystem.RetryConfig) *handlePool {
	p := &handlePool{retry: retry, log: logging.For("delivery")}
	p.cache = cache.New(cache.Options[string, *handle]{
		Name:     "handles",
		Capacity: size,
		TTL:      ttl,
		Sliding:  true,
		OnEvict:  p.onEvict,
	})
	return p
}

func (p *handlePool) onEvict(path string, h *handle, reason cache.Reason) {
	p.mu.Lock()
	h.evicted = true
	idle := h.refs == 0
	p.mu.Unlock()

	if idle {
		p.close(path, h, string(reason))
	}
}

// acquire returns an open handle for path as described by info. Callers
// must release it. A pooled handle whose file changed on disk is replaced.
func (p *handlePool) acquire(path string, info os.FileInfo) (*handle, error) {
	if h, ok := p.cache.Get(path); ok {
		if h.matches(info) && p.retain(h) {
			return h, nil
		}
		if !h.matches(info) {
			p.cache.Remove(path)
		}
	}

	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		f, err := filesystem.OpenWithRetry(path, p.retry)
		if err != nil {
			return nil, err
		}
		h := &handle{file: f, size: info.Size(), modTime: info.ModTime(), pooled: true}
		p.cache.Set(path, h)
		return h, nil
	})
	if err != nil {
		return nil, err
	}

	if h := v.(*handle); p.retain(h) {
		return h, nil
	}

	// evicted between open and use; read through a private handle
	f, err := filesystem.OpenWithRetry(path, p.retry)
	if err != nil {
		return nil, err
	}
	return &handle{file: f, size: info.Size(), modTime: info.ModTime(), refs: 1}, nil
}

func (p *handlePool) retain(h *handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h.evicted {
		return false
	}
	h.refs++
	return true
}

func (p *handlePool) release(path string, h *handle) {
	p.mu.Lock()
	h.refs--
	done := h.refs == 0 && (h.evicted || !h.pooled)
	p.mu.Unlock()

	if done {
		p.close(path, h, "released")
	}
}

func (p *handlePool) close(path string, h *handle, why string) {
	if err := h.file.Close(); err != nil {
		p.log.Debug("Closing %s (%s): %v", path, why, err)
	}
}

func (p *handlePool) sweep() int {
	return p.cache.Sweep()
}

// closeAll drops every pooled handle; those still being read close on release.
func (p *handlePool) closeAll() {
	p.cache.Purge()
}
