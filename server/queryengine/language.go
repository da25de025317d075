package queryengine

import (
	"strings"
	"unicode"
)

// NormalizeQueryText collapses runs of whitespace and trims the result.
func NormalizeQueryText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// normalizeFreeText prepares text for keyword matching: unicode dashes
// folded to "-", whitespace collapsed, lowercased.
func normalizeFreeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= '‐' && r <= '―' {
			b.WriteRune('-')
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(NormalizeQueryText(b.String()))
}

// LooksNonEnglish reports whether the query needs translation. CJK, Kana
// or Hangul means almost certainly non-English; any other non-ASCII code
// point (accented letters and so on) is treated as potentially
// non-English. Pure-ASCII queries skip the translation call entirely.
func LooksNonEnglish(query string) bool {
	for _, r := range query {
		if isCJK(r) {
			return true
		}
		if r > unicode.MaxASCII {
			return true
		}
	}
	return false
}

// isCJK covers the unified ideographs, Kana, and Hangul ranges.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // CJK Extension A
		return true
	case r >= 0x3040 && r <= 0x30FF: // Hiragana + Katakana
		return true
	case r >= 0xAC00 && r <= 0xD7AF: // Hangul Syllables
		return true
	}
	return false
}

// NormalizeLanguageCode maps language codes and OMDb-style language names
// onto a small set of two-letter codes. Unknown values normalize to "".
func NormalizeLanguageCode(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return ""
	}

	codes := []string{"ja", "ko", "en", "fr", "es", "de", "zh"}
	for _, code := range codes {
		if v == code || strings.HasPrefix(v, code+"-") {
			return code
		}
	}

	names := map[string]string{
		"japanese": "ja",
		"korean":   "ko",
		"english":  "en",
		"french":   "fr",
		"spanish":  "es",
		"german":   "de",
		"mandarin": "zh",
		"chinese":  "zh",
	}
	for name, code := range names {
		if strings.Contains(v, name) {
			return code
		}
	}

	return ""
}
