package params

import (
	"net/url"
	"strings"
)

var componentUnescape = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
	"%7E", "~",
)

// EncodeComponent escapes s the way encodeURIComponent does.
func EncodeComponent(s string) string {
	return componentUnescape.Replace(url.QueryEscape(s))
}

// DecodeComponent reverses EncodeComponent. '+' is kept literally.
func DecodeComponent(s string) (string, bool) {
	out, err := url.PathUnescape(s)
	if err != nil {
		return "", false
	}
	return out, true
}
