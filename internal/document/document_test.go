package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFillsNilMetadata(t *testing.T) {
	d := New("id1", "content", []float32{1, 0}, "user", nil)
	assert.NotNil(t, d.Metadata)
	assert.Empty(t, d.Metadata)
}

func TestNewPreservesGivenMetadata(t *testing.T) {
	meta := map[string]string{MetaType: TypePDF}
	d := New("id1", "content", []float32{1, 0}, "user", meta)
	assert.Equal(t, TypePDF, d.Metadata[MetaType])
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "subj1/notes.pdf#2", ChunkID("subj1", "notes.pdf", 2))
}

func TestChunkSentinelID(t *testing.T) {
	assert.Equal(t, "subj1/notes.pdf#0", ChunkSentinelID("subj1", "notes.pdf"))
	assert.Equal(t, ChunkID("subj1", "notes.pdf", 0), ChunkSentinelID("subj1", "notes.pdf"))
}
