package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"My First Post", "my-first-post"},
		{"Hello, World!", "hello-world"},
		{"  spaces   everywhere  ", "spaces-everywhere"},
		{"Ünïcode Tïtle", "n-code-t-tle"},
		{"!!!", "post"},
		{"already-slugged", "already-slugged"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.title), "slugify(%q)", tt.title)
	}
}

func TestSlugifyTruncatesLongTitles(t *testing.T) {
	slug := slugify(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len(slug), 80)
	assert.False(t, strings.HasSuffix(slug, "-"))
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, "go,testing", normalizeTags([]string{"Go", " Testing "}))
	assert.Equal(t, "go", normalizeTags([]string{"go", "GO", "Go"}))
	assert.Equal(t, "", normalizeTags([]string{"", "  "}))
	assert.Equal(t, "", normalizeTags(nil))
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"go", "testing"}, splitTags("go,testing"))
	assert.Nil(t, splitTags(""))
}
