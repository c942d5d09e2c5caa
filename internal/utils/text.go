package utils

import "strings"

// Preview returns at most max runes of s, with "..." appended when s was cut.
func Preview(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// AllowedExtension reports whether ext (with leading dot, any case) is in allowed.
func AllowedExtension(ext string, allowed []string) bool {
	ext = strings.ToLower(ext)
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
