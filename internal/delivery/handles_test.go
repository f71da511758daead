package delivery

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillgoblin/internal/filesystem"
)

func writeTemp(t *testing.T, dir, name, content string) (string, os.FileInfo) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return path, info
}

func isClosed(h *handle) bool {
	_, err := h.file.Stat()
	if errors.Is(err, os.ErrClosed) {
		return true
	}
	// Older toolchains do not wrap os.ErrClosed from Stat; Read does.
	_, err = h.file.Read(nil)
	return errors.Is(err, os.ErrClosed)
}

func TestHandlePoolReusesOpenFiles(t *testing.T) {
	dir := t.TempDir()
	path, info := writeTemp(t, dir, "a.mp4", "hello")
	p := newHandlePool(4, time.Minute, filesystem.DefaultRetryConfig())
	defer p.closeAll()

	h1, err := p.acquire(path, info)
	require.NoError(t, err)
	h2, err := p.acquire(path, info)
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, 2, h1.refs)

	p.release(path, h1)
	p.release(path, h2)
	assert.False(t, isClosed(h1), "pooled handles stay open while cached")
}

func TestHandlePoolEvictionWaitsForReaders(t *testing.T) {
	dir := t.TempDir()
	a, aInfo := writeTemp(t, dir, "a.mp4", "aaaa")
	b, bInfo := writeTemp(t, dir, "b.mp4", "bbbb")
	p := newHandlePool(1, time.Minute, filesystem.DefaultRetryConfig())
	defer p.closeAll()

	ha, err := p.acquire(a, aInfo)
	require.NoError(t, err)

	hb, err := p.acquire(b, bInfo)
	require.NoError(t, err)
	assert.True(t, ha.evicted)
	assert.False(t, isClosed(ha), "evicted handle still in use must stay open")

	buf := make([]byte, 4)
	_, err = ha.file.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", string(buf))

	p.release(a, ha)
	assert.True(t, isClosed(ha))

	p.release(b, hb)
	assert.False(t, isClosed(hb))
}

func TestHandlePoolReplacesChangedFile(t *testing.T) {
	dir := t.TempDir()
	path, info := writeTemp(t, dir, "a.mp4", "short")
	p := newHandlePool(4, time.Minute, filesystem.DefaultRetryConfig())
	defer p.closeAll()

	old, err := p.acquire(path, info)
	require.NoError(t, err)
	p.release(path, old)

	_, newInfo := writeTemp(t, dir, "a.mp4", "a much longer body")
	fresh, err := p.acquire(path, newInfo)
	require.NoError(t, err)
	defer p.release(path, fresh)

	assert.NotSame(t, old, fresh)
	assert.True(t, isClosed(old))
	assert.Equal(t, newInfo.Size(), fresh.size)
}

func TestHandlePoolExpiryClosesIdleHandles(t *testing.T) {
	dir := t.TempDir()
	path, info := writeTemp(t, dir, "a.mp4", "x")
	p := newHandlePool(4, time.Millisecond, filesystem.DefaultRetryConfig())

	h, err := p.acquire(path, info)
	require.NoError(t, err)
	p.release(path, h)

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, p.sweep())
	assert.True(t, isClosed(h))
}

func TestHandlePoolMissingFile(t *testing.T) {
	dir := t.TempDir()
	path, info := writeTemp(t, dir, "a.mp4", "x")
	require.NoError(t, os.Remove(path))

	p := newHandlePool(4, time.Minute, filesystem.DefaultRetryConfig())
	_, err := p.acquire(path, info)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, p.cache.Len())
}
