package filename

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLength is the longest name Clean returns, in bytes. Most filesystems
// reject longer path components, shorter names are left untouched.
const MaxLength = 255

// Empty is the name used when nothing usable is left.
const Empty = "sem_nome"

var (
	forbidden   = regexp.MustCompile(`[<>:"/\\|?*\n\r]`)
	underscores = regexp.MustCompile(`_{2,}`)
)

// Clean makes s usable as a single path component on every common filesystem.
func Clean(s string) string {
	s = forbidden.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")

	if len(s) > MaxLength {
		s = strings.TrimRight(Truncate(s, MaxLength), "_")
	}

	if s == "" {
		return Empty
	}

	return s
}

// Truncate cuts s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}

	return s
}
