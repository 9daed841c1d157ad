package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSnippetContainsQueryWord(t *testing.T) {
	content := "the quick brown fox jumps over the lazy dog near the riverbank"
	snippet := extractSnippet(content, "fox")
	assert.Contains(t, snippet, "fox")
}

func TestExtractSnippetNoMatchFallsBackToPrefix(t *testing.T) {
	content := strings.Repeat("unrelated content here. ", 200)
	snippet := extractSnippet(content, "zzznomatch")
	assert.True(t, strings.HasPrefix(content, strings.TrimSuffix(snippet, "...")))
}

func TestExtractSnippetDistinctWordCountNotOccurrenceCount(t *testing.T) {
	repeated := strings.Repeat("apple ", 60)
	mixed := strings.Repeat("apple banana cherry date elderberry fig grape honeydew ", 10)

	repeatedScore := distinctMatchCount(strings.Fields(repeated)[:50], []string{"apple", "banana"})
	mixedScore := distinctMatchCount(strings.Fields(mixed)[:50], []string{"apple", "banana"})

	assert.Equal(t, 1, repeatedScore)
	assert.Equal(t, 2, mixedScore)
}

func TestExtractSnippetTruncationMarkers(t *testing.T) {
	content := strings.Repeat("word ", 1000) + "NEEDLE " + strings.Repeat("word ", 1000)
	snippet := extractSnippet(content, "needle")
	assert.True(t, strings.HasPrefix(snippet, "..."))
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.Contains(t, strings.ToLower(snippet), "needle")
}

func TestExtractSnippetShortContentNoTruncation(t *testing.T) {
	content := "short content with fox in it"
	snippet := extractSnippet(content, "fox")
	assert.NotContains(t, snippet, "...")
}

func TestExtractSnippetEmptyQueryFallsBack(t *testing.T) {
	content := "some content"
	snippet := extractSnippet(content, "")
	assert.Equal(t, "some content", snippet)
}
