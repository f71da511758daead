package course

import (
	"regexp"
	"strings"
)

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugHyphens    = regexp.MustCompile(`-+`)
)

// DeriveID returns the canonical course id for a folder name.
//
// The name is lowercased, characters outside [a-z0-9], whitespace and '-'
// are dropped, whitespace runs become a single hyphen and hyphen runs are
// collapsed. Leading and trailing hyphens are trimmed so ids never start or
// end with a separator. The result may be empty for names made only of
// punctuation.
func DeriveID(name string) string {
	id := strings.ToLower(name)
	id = slugDisallowed.ReplaceAllString(id, "")
	id = slugWhitespace.ReplaceAllString(id, "-")
	id = slugHyphens.ReplaceAllString(id, "-")
	return strings.Trim(id, "-")
}
