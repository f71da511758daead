package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the role a file plays inside a course folder.
type FileType string

const (
	// FileTypeVideo is a playable lesson video.
	FileTypeVideo FileType = "video"
	// FileTypeSubtitle is a subtitle track (WebVTT or legacy SRT).
	FileTypeSubtitle FileType = "subtitle"
	// FileTypeReadme is a lesson readme.
	FileTypeReadme FileType = "readme"
	// FileTypeOther is any other course material (pdf, zip, source files...).
	FileTypeOther FileType = "other"
)

// DefaultContentType is served for extensions missing from ContentTypes.
const DefaultContentType = "application/octet-stream"

// VideoExtensions lists the extensions the scanner treats as lesson videos.
var VideoExtensions = map[string]bool{
	".mp4": true,
}

// SubtitleExtensions lists subtitle formats paired with videos.
var SubtitleExtensions = map[string]bool{
	".vtt": true,
	".srt": true,
}

// ContentTypes is the fixed extension map used by the delivery engine.
var ContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".js":   "application/javascript",
	".css":  "text/css",
	".html": "text/html",
	".json": "application/json",
	".svg":  "image/svg+xml",
	".vtt":  "text/vtt",
	".srt":  "text/plain",
	".md":   "text/markdown",
	".txt":  "text/plain",
}

// compressiblePrefixes are content types worth gzipping.
var compressiblePrefixes = []string{
	"text/",
	"application/javascript",
	"application/json",
	"application/xml",
	"image/svg+xml",
}

// precompressed types are never gzipped again.
var precompressed = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"video/mp4":  true,
	"audio/mp3":  true,
	"audio/mpeg": true,
}

// Ext returns the lowercased extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// ContentType returns the content type for a file name.
func ContentType(name string) string {
	if ct, ok := ContentTypes[Ext(name)]; ok {
		return ct
	}
	return DefaultContentType
}

// IsVideo reports whether name is a lesson video.
func IsVideo(name string) bool {
	return VideoExtensions[Ext(name)]
}

// IsSubtitle reports whether name is a subtitle track.
func IsSubtitle(name string) bool {
	return SubtitleExtensions[Ext(name)]
}

// IsImage reports whether name is one of the raster formats served with long-lived caching.
func IsImage(name string) bool {
	switch Ext(name) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// IsCompressible reports whether a response of contentType should be gzipped.
func IsCompressible(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if precompressed[mediaType] {
		return false
	}
	for _, prefix := range compressiblePrefixes {
		if strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	return false
}

// Classify returns the FileType of a course file.
func Classify(name string) FileType {
	switch {
	case IsVideo(name):
		return FileTypeVideo
	case IsSubtitle(name):
		return FileTypeSubtitle
	case IsReadme(name):
		return FileTypeReadme
	default:
		return FileTypeOther
	}
}

// IsReadme reports whether name is a lesson readme (readme.md or readme.txt, any case).
func IsReadme(name string) bool {
	switch strings.ToLower(name) {
	case "readme.md", "readme.txt":
		return true
	}
	return false
}
