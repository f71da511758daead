package course

import (
	"path/filepath"
	"strings"

	"skillgoblin/internal/mediatypes"
)

// DefaultSubtitleLang is assumed when a subtitle name carries no language code.
const DefaultSubtitleLang = "en"

const (
	KindSubtitles = "subtitles"
	KindCaptions  = "captions"
)

// languageNames maps supported ISO 639-1 codes to display names.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
	"ar": "Arabic",
	"hi": "Hindi",
	"nl": "Dutch",
	"pl": "Polish",
	"sv": "Swedish",
	"tr": "Turkish",
}

// LanguageName returns the display name for code, English when unknown.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return "English"
}

func isSubtitleSeparator(r rune) bool {
	switch r {
	case '.', '_', '-', ' ':
		return true
	}
	return false
}

// detectLanguage returns the first two-letter token of suffix, skipping the
// captions marker, or DefaultSubtitleLang when there is none.
func detectLanguage(suffix string) string {
	for _, token := range strings.FieldsFunc(strings.ToLower(suffix), isSubtitleSeparator) {
		if len(token) != 2 || token == "cc" {
			continue
		}
		if token[0] < 'a' || token[0] > 'z' || token[1] < 'a' || token[1] > 'z' {
			continue
		}
		return token
	}
	return DefaultSubtitleLang
}

// describeSubtitle builds the track for a subtitle whose stem extends the
// video base name with suffix. src is the WebVTT file name to reference.
// Only the suffix is searched for the captions marker, so a video named
// "Accounting" does not turn its subtitles into captions.
func describeSubtitle(suffix, src string) Subtitle {
	lang := detectLanguage(suffix)
	kind, kindLabel := KindSubtitles, "Subtitles"
	if strings.Contains(strings.ToLower(suffix), "cc") {
		kind, kindLabel = KindCaptions, "Captions"
	}
	return Subtitle{
		Label:   LanguageName(lang) + " " + kindLabel,
		Kind:    kind,
		SrcLang: lang,
		Src:     src,
	}
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// matchSubtitles assigns every subtitle file to the video with the longest
// base name it starts with. The result is keyed by video file name and holds
// subtitle file names in input order.
func matchSubtitles(videos, subtitles []string) map[string][]string {
	matched := make(map[string][]string, len(videos))
	for _, sub := range subtitles {
		lowerSub := strings.ToLower(stem(sub))
		best, bestLen := "", -1
		for _, video := range videos {
			base := strings.ToLower(stem(video))
			if strings.HasPrefix(lowerSub, base) && len(base) > bestLen {
				best, bestLen = video, len(base)
			}
		}
		if best != "" {
			matched[best] = append(matched[best], sub)
		}
	}
	return matched
}

// subtitleFiles filters names down to subtitle tracks. An SRT file whose
// WebVTT sibling is also present is dropped in favour of the sibling.
func subtitleFiles(names []string) []string {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[strings.ToLower(name)] = true
	}

	var subs []string
	for _, name := range names {
		if !mediatypes.IsSubtitle(name) {
			continue
		}
		if mediatypes.Ext(name) == ".srt" && present[strings.ToLower(VTTName(name))] {
			continue
		}
		subs = append(subs, name)
	}
	return subs
}
