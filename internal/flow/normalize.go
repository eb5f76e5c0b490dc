package flow

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const tatweel = 'ـ'

// Normalize prepares raw user text for keyword matching: NFC composition, lower case,
// Arabic-Indic digits folded to ASCII, hamzated alefs folded to bare alef, ta marbuta
// folded to ha, tatweel removed, whitespace collapsed.
func Normalize(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r == 'أ', r == 'إ', r == 'آ', r == 'ٱ':
			return 'ا'
		case r == 'ة':
			return 'ه'
		case r == tatweel:
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// bare strips surrounding punctuation so quick replies like "صارم!" match exactly.
func bare(s string) string {
	return strings.Trim(s, " ?؟!.،,")
}

// ContainsAny reports whether normalized text s contains any keyword. Keywords are
// normalized the same way, so "إصابة" matches "اصابه".
func ContainsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, Normalize(k)) {
			return true
		}
	}
	return false
}

// HasWord reports whether normalized text s contains any of words as a whole
// whitespace-separated token.
func HasWord(s string, words ...string) bool {
	for _, f := range strings.Fields(s) {
		f = bare(f)
		for _, w := range words {
			if f == Normalize(w) {
				return true
			}
		}
	}
	return false
}

// firstInt extracts the first run of ASCII digits in s.
func firstInt(s string) (int, bool) {
	start := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
