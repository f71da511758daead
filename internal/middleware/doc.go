// Package middleware provides HTTP middleware for the course server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - gzip compression of API responses (range and pre-encoded responses pass through)
//   - Prometheus request metrics, timing content streams to first byte
//
// Every response wrapper implements Unwrap so handlers can still set write
// deadlines through http.ResponseController.
package middleware
