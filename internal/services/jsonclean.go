// internal/services/jsonclean.go
package services

import (
	"strings"
	"unicode"
)

// stripControlChars removes zero-width and control characters that some
// models leak into tool-call arguments, keeping newlines and tabs.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// balancedObjectAt returns the end index (exclusive) of the brace-balanced
// object starting at start, or -1 when unterminated. String literals and
// escapes are respected.
func balancedObjectAt(s string, start int) int {
	balance := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			balance++
		case '}':
			balance--
			if balance == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// firstJSONObject extracts the first balanced {…} substring, or "".
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	end := balancedObjectAt(s, start)
	if end == -1 {
		return ""
	}
	return s[start:end]
}

// largestJSONObject extracts the longest balanced {…} substring, or "".
// Model replies sometimes wrap the payload in prose containing smaller
// brace pairs; the largest candidate is the intended document.
func largestJSONObject(s string) string {
	best := ""
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end := balancedObjectAt(s, i)
		if end == -1 {
			continue
		}
		if end-i > len(best) {
			best = s[i:end]
		}
		i = end - 1
	}
	return best
}

// truncateRunes silently cuts s to max runes, no ellipsis.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
