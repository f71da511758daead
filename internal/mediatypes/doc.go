// Package mediatypes provides shared file-type definitions for course content.
//
// This package exists as a dependency-free foundation that can be imported by the
// scanner, the delivery engine and the handlers without creating import cycles.
//
// # Classification
//
//	mediatypes.Classify("01_intro.mp4")    // FileTypeVideo
//	mediatypes.Classify("01_intro.en.srt") // FileTypeSubtitle
//	mediatypes.Classify("README.md")       // FileTypeReadme
//
// # Content Types
//
// [ContentType] resolves a response content type from a small fixed table and
// falls back to application/octet-stream. [IsCompressible] decides whether a
// response body is worth gzipping; already-compressed media is never recompressed.
package mediatypes
