package course

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const vttHeader = "WEBVTT\n\n"

// VTTName returns the WebVTT sidecar name for a subtitle file.
func VTTName(name string) string {
	return stem(name) + ".vtt"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ConvertSRT converts SubRip subtitle bytes to WebVTT. Cue counters are
// removed, timecode commas become periods and the WEBVTT header is prepended.
func ConvertSRT(src []byte) []byte {
	text := string(bytes.TrimPrefix(src, []byte("\xef\xbb\xbf")))
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isDigits(trimmed) && i+1 < len(lines) && strings.Contains(lines[i+1], "-->") {
			continue
		}
		if strings.Contains(line, "-->") {
			line = strings.ReplaceAll(line, ",", ".")
		}
		out = append(out, line)
	}

	body := strings.TrimLeft(strings.Join(out, "\n"), "\n")
	return []byte(vttHeader + body)
}

// NeedsVTT reports whether the WebVTT sidecar for srtPath is still missing.
func NeedsVTT(srtPath string) (bool, error) {
	_, err := os.Stat(filepath.Join(filepath.Dir(srtPath), VTTName(filepath.Base(srtPath))))
	if err == nil {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, err
}

// EnsureVTT converts srtPath to its sidecar if the sidecar does not exist yet.
// It returns the sidecar file name and whether a conversion took place.
func EnsureVTT(srtPath string) (string, bool, error) {
	name := VTTName(filepath.Base(srtPath))

	needed, err := NeedsVTT(srtPath)
	if err != nil || !needed {
		return name, false, err
	}

	src, err := os.ReadFile(srtPath)
	if err != nil {
		return "", false, fmt.Errorf("reading subtitle %s: %w", srtPath, err)
	}

	if err := writeFileAtomic(filepath.Join(filepath.Dir(srtPath), name), ConvertSRT(src)); err != nil {
		return "", false, err
	}
	return name, true, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place so readers never observe a partial sidecar.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
