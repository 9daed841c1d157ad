package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokensNonEmpty(t *testing.T) {
	assert.Greater(t, CountTokens("the quick brown fox"), 0)
}

func TestCountTokensEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
}

func TestCountTokensGrowsWithLongerInput(t *testing.T) {
	short := CountTokens("hello world")
	long := CountTokens(strings.Repeat("hello world ", 50))
	assert.Greater(t, long, short)
}

func TestChunkTextEmptyInput(t *testing.T) {
	assert.Nil(t, ChunkText("  \n\t "))
}

func TestChunkHeaderFormat(t *testing.T) {
	header := ChunkHeader("notes.pdf", 0, 3, "Algorithms")
	assert.Equal(t, "### DOC: notes.pdf (Part 1/3)\nCourse: Algorithms\n\n", header)
}
