package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPlaceholder(t *testing.T) {
	for _, c := range []string{"", " ", "{}", "[]", "null", "N/A", "\"\"", "```\n{}\n```"} {
		assert.True(t, IsPlaceholder(c), c)
	}
	assert.False(t, IsPlaceholder(`{"profile": {}}`))
}

func TestExtractJSONObject(t *testing.T) {
	obj, ok := ExtractJSONObject("Here you go:\n```json\n{\"a\": {\"b\": 1}}\n```")
	assert.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, obj)

	_, ok = ExtractJSONObject("no braces here")
	assert.False(t, ok)
}

func TestBuildUserPrompt(t *testing.T) {
	p := BuildUserPrompt(strings.Repeat("x", 50), true, 10)
	assert.Contains(t, p, "xxxxxxxxxx\n…(truncated)")
	assert.Contains(t, p, "page images show the same document")

	p = BuildUserPrompt("", true, 10)
	assert.NotContains(t, p, "Document text:")
	assert.Contains(t, p, "attached as page images")
}
