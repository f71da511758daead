package mediatypes

import (
	"strconv"
	"strings"
)

// AcceptsGzip reports whether an Accept-Encoding header value allows a gzip
// response. An explicit gzip entry wins over "*"; q=0 refuses.
func AcceptsGzip(acceptEncoding string) bool {
	wildcard := false
	for _, part := range strings.Split(acceptEncoding, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.TrimSpace(coding)
		switch {
		case strings.EqualFold(coding, "gzip"):
			return qValue(params) > 0
		case coding == "*":
			wildcard = qValue(params) > 0
		}
	}
	return wildcard
}

// qValue returns the q parameter of an Accept-Encoding entry, 1 when absent
// and 0 when malformed.
func qValue(params string) float64 {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return q
	}
	return 1
}
