package validation

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxKeyLength bounds lookup keys and prefix fragments.
const MaxKeyLength = 64

// KeyPattern defines the valid key format: letters, digits, dots, hyphens, underscores.
var KeyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// NormalizeKey trims surrounding whitespace from a lookup key.
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}

// ValidateKey checks a normalized key and returns a user-facing message when invalid.
func ValidateKey(key string) (bool, string) {
	if key == "" {
		return false, "Identification number is required"
	}
	if utf8.RuneCountInString(key) > MaxKeyLength {
		return false, "Identification number is too long"
	}
	if !KeyPattern.MatchString(key) {
		return false, "Identification number may only contain letters, digits, '.', '-' and '_'"
	}
	return true, ""
}

// NormalizeFragment trims a prefix fragment and caps its length.
func NormalizeFragment(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if utf8.RuneCountInString(fragment) > MaxKeyLength {
		fragment = string([]rune(fragment)[:MaxKeyLength])
	}
	return fragment
}

// ParseLimit parses a result limit from a query parameter. Empty or invalid
// input yields fallback; the result is clamped to [1, maxLimit].
func ParseLimit(raw string, fallback, maxLimit int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		n = fallback
	}
	if n > maxLimit {
		n = maxLimit
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}
