package llm

import (
	"strings"
)

var placeholders = map[string]struct{}{
	"":          {},
	"{}":        {},
	"[]":        {},
	"null":      {},
	"none":      {},
	"n/a":       {},
	"...":       {},
	"\"\"":      {},
	"undefined": {},
}

// IsPlaceholder reports whether content carries no payload at all.
func IsPlaceholder(content string) bool {
	c := strings.ToLower(strings.TrimSpace(stripFences(content)))
	_, ok := placeholders[c]
	return ok
}

// ExtractJSONObject strips markdown fences and any prose around the outermost
// JSON object. ok is false when no object delimiters are found.
func ExtractJSONObject(content string) (string, bool) {
	c := strings.TrimSpace(stripFences(content))
	start := strings.Index(c, "{")
	end := strings.LastIndex(c, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return c[start : end+1], true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop an optional language tag on the opening fence line
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSuffix(s, "```")
}
