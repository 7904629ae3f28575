// Package urlnorm turns provider-supplied apply links into absolute http(s)
// URLs suitable as a dedup key, or rejects them.
package urlnorm

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

// Normalize returns the canonical form of raw and true, or "" and false when
// raw cannot be turned into an absolute http(s) URL. The result is stable:
// Normalize of an accepted value returns the same value.
func Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	switch {
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return absolute(s)
	// protocol-relative must be checked before the root-relative rule
	case strings.HasPrefix(s, "//"):
		return absolute("https:" + s)
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "./"), strings.HasPrefix(s, "../"):
		return "", false
	case strings.Contains(s, ".") && !strings.ContainsFunc(s, unicode.IsSpace):
		return absolute("https://" + s)
	}

	return "", false
}

// ValidateAndNormalize is the nil-in, nil-out form the orchestrator applies
// before a record reaches the sink. A nil result means the record is skipped.
func ValidateAndNormalize(raw *string) *string {
	if raw == nil {
		return nil
	}
	out, ok := Normalize(*raw)
	if !ok {
		return nil
	}
	return &out
}

func absolute(s string) (string, bool) {
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" || u.Hostname() == "" {
		return "", false
	}
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err != nil || n > 65535 {
			return "", false
		}
	}
	return s, true
}
