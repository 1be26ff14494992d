// Package keys builds the Redis keys used by the response cache and the
// session history.
package keys

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	responsePrefix = "resp"
	historyPrefix  = "hist"
	maxTextLen     = 120
)

// Response keys a cached search response. Payloads that differ only in
// parameter order or surrounding whitespace map to the same key.
func Response(pageView, payload string) string {
	norm := normalizePayload(payload)
	safe := sanitize(norm, true)
	if len(safe) > maxTextLen {
		safe = safe[:maxTextLen]
	}
	sum := xxhash.Sum64String(norm)
	return fmt.Sprintf("%s:%s:q=%s:h=%016x", responsePrefix, sanitize(strings.TrimSpace(pageView), false), safe, sum)
}

// History keys the history list of a session.
func History(sessionID string) string {
	return historyPrefix + ":" + sanitize(strings.TrimSpace(sessionID), false)
}

func normalizePayload(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "?")
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "&")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	slices.Sort(out)
	return strings.Join(out, "&")
}

func sanitize(s string, allowEq bool) string {
	if s == "" {
		return ""
	}
	if u, err := url.QueryUnescape(s); err == nil {
		s = u
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '&' || r == ',' || r == '.':
			out = r
		case allowEq && r == '=':
			out = r
		default:
			// Any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
