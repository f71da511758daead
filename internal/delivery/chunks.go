package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"skillgoblin/internal/metrics"
)

// chunkKey identifies cached bytes. Size and modification time are part of
// the key so a replaced file never serves stale chunks.
type chunkKey struct {
	path    string
	size    int64
	modTime int64
	start   int64
	end     int64
}

func newChunkKey(path string, info os.FileInfo, r byteRange) chunkKey {
	return chunkKey{
		path:    path,
		size:    info.Size(),
		modTime: info.ModTime().UnixNano(),
		start:   r.start,
		end:     r.end,
	}
}

func (k chunkKey) String() string {
	return fmt.Sprintf("%s|%d|%d|%d-%d", k.path, k.size, k.modTime, k.start, k.end)
}

// readChunk returns the bytes of r, from the chunk cache when possible.
// The second result reports a cache hit.
func (e *Engine) readChunk(path string, info os.FileInfo, r byteRange) ([]byte, bool, error) {
	key := newChunkKey(path, info, r)
	if data, ok := e.chunks.Get(key); ok {
		return data, true, nil
	}

	v, err, _ := e.chunkGroup.Do(key.String(), func() (interface{}, error) {
		h, err := e.handles.acquire(path, info)
		if err != nil {
			return nil, err
		}
		defer e.handles.release(path, h)

		buf := make([]byte, r.length())
		n, err := h.file.ReadAt(buf, r.start)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading %s at %d: %w", path, r.start, err)
		}
		if int64(n) != r.length() {
			return nil, fmt.Errorf("reading %s: short read %d of %d bytes", path, n, r.length())
		}

		if int64(n) <= e.cfg.MaxCachedChunkSize {
			e.chunks.Set(key, buf)
		}
		return buf, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// prefetch loads the chunk following served into the cache in the
// background. It never blocks the caller; busy slots or memory pressure
// simply skip it.
func (e *Engine) prefetch(path string, info os.FileInfo, served byteRange) {
	size := info.Size()
	next := byteRange{start: served.end + 1}
	if next.start >= size || size-next.start < e.cfg.PrefetchMinRemaining {
		return
	}
	next.end = min(next.start+e.cfg.MaxChunkSize-1, size-1)

	if e.monitor != nil && e.monitor.ShouldThrottle() {
		metrics.DeliveryPrefetches.WithLabelValues("skipped").Inc()
		return
	}
	if _, ok := e.chunks.Peek(newChunkKey(path, info, next)); ok {
		return
	}

	select {
	case e.prefetchSlots <- struct{}{}:
	default:
		metrics.DeliveryPrefetches.WithLabelValues("skipped").Inc()
		return
	}

	e.prefetches.Add(1)
	go func() {
		defer e.prefetches.Done()
		defer func() { <-e.prefetchSlots }()

		select {
		case <-e.stopChan:
			return
		default:
		}

		if _, _, err := e.readChunk(path, info, next); err != nil {
			metrics.DeliveryPrefetches.WithLabelValues("error").Inc()
			e.log.Debug("Prefetch of %s bytes %d-%d failed: %v", path, next.start, next.end, err)
			return
		}
		metrics.DeliveryPrefetches.WithLabelValues("fetched").Inc()
	}()
}

// prefetchDone waits for in-flight prefetches; tests use it to observe the cache.
func (e *Engine) prefetchDone(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.prefetches.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
