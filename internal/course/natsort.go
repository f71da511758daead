package course

import (
	"sort"
	"strings"
)

// leadingDigits returns the run of ASCII digits at the start of s.
func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

// compareDigits compares two digit runs by numeric value without parsing,
// so arbitrarily long prefixes never overflow.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// NaturalCompare orders a and b numerically when both start with digits and
// lexically (case-insensitive, then byte order) otherwise or on a numeric tie.
func NaturalCompare(a, b string) int {
	da, db := leadingDigits(a), leadingDigits(b)
	if da != "" && db != "" {
		if c := compareDigits(da, db); c != 0 {
			return c
		}
	}

	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// NaturalLess reports whether a sorts before b.
func NaturalLess(a, b string) bool {
	return NaturalCompare(a, b) < 0
}

// SortVideos orders videos by title.
func SortVideos(videos []Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		return NaturalLess(videos[i].Title, videos[j].Title)
	})
}

// SortLessons orders lessons by title, the root lesson included.
func SortLessons(lessons []Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		return NaturalLess(lessons[i].Title, lessons[j].Title)
	})
}

// SortStrings orders plain names, used for folder listings.
func SortStrings(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return NaturalLess(names[i], names[j])
	})
}
