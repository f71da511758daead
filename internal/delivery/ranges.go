package delivery

import (
	"fmt"
	"strconv"
	"strings"
)

// byteRange is an inclusive range of a file.
type byteRange struct {
	start, end int64
}

func (r byteRange) length() int64 {
	return r.end - r.start + 1
}

func (r byteRange) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, size)
}

// parseRange reads a "bytes=" Range header against a file of size bytes.
// Only the first range of a list is honoured. An omitted end means end of
// file, "-n" means the last n bytes, and the result never spans more than
// maxChunk bytes.
func parseRange(header string, size, maxChunk int64) (byteRange, error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return byteRange{}, fmt.Errorf("%w: unsupported range unit %q", ErrInvalidInput, header)
	}
	if first, _, multi := strings.Cut(spec, ","); multi {
		spec = first
	}

	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return byteRange{}, fmt.Errorf("%w: malformed range %q", ErrInvalidInput, header)
	}

	var r byteRange
	switch {
	case startStr == "":
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n < 0 {
			return byteRange{}, fmt.Errorf("%w: malformed range %q", ErrInvalidInput, header)
		}
		if n == 0 || size == 0 {
			return byteRange{}, ErrRangeNotSatisfiable
		}
		r.start = max(size-n, 0)
		r.end = size - 1
	default:
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || start < 0 {
			return byteRange{}, fmt.Errorf("%w: malformed range %q", ErrInvalidInput, header)
		}
		r.start = start
		r.end = size - 1
		if endStr != "" {
			end, err := strconv.ParseInt(endStr, 10, 64)
			if err != nil || end < 0 {
				return byteRange{}, fmt.Errorf("%w: malformed range %q", ErrInvalidInput, header)
			}
			r.end = min(end, size-1)
			if end < start {
				return byteRange{}, ErrRangeNotSatisfiable
			}
		}
	}

	if r.start >= size {
		return byteRange{}, ErrRangeNotSatisfiable
	}
	if maxChunk > 0 && r.length() > maxChunk {
		r.end = r.start + maxChunk - 1
	}
	return r, nil
}
