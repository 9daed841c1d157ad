package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xbiel/polirag/internal/document"
	"github.com/0xbiel/polirag/internal/embedding"
	"github.com/0xbiel/polirag/internal/logging"
	"github.com/0xbiel/polirag/internal/rag"
	"github.com/0xbiel/polirag/internal/resourceproc"
	"github.com/0xbiel/polirag/internal/vectorstore"
)

func newTestOrchestrator(t *testing.T, scrapedDataDir string) *Orchestrator {
	t.Helper()
	store, err := vectorstore.NewLinearStore("")
	require.NoError(t, err)
	system := rag.NewSystem(embedding.NewMockEmbedder(16), store, vectorstore.BackendLinear, "mock")
	return &Orchestrator{
		system:         system,
		scrapedDataDir: scrapedDataDir,
		logger:         logging.Named("ingestion-test"),
	}
}

func TestRecoverSubjectIDFromSummaryURL(t *testing.T) {
	dir := t.TempDir()
	summary := "Subject: Algebra\nURL: https://poliformat.upv.es/portal/site/GRA_11673_2025\n\nbody text"
	require.NoError(t, os.WriteFile(filepath.Join(dir, summaryFileName), []byte(summary), 0o600))

	got := recoverSubjectID(dir, "Algebra")
	assert.Equal(t, "GRA_11673_2025", got)
}

func TestRecoverSubjectIDFallsBackToDirNameWithoutSummary(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "Algebra", recoverSubjectID(dir, "Algebra"))
}

func TestRecoverSubjectIDFallsBackToDirNameWithoutURLLine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, summaryFileName), []byte("no url here"), 0o600))
	assert.Equal(t, "Algebra", recoverSubjectID(dir, "Algebra"))
}

func TestIndexChunksWithIDsWritesOneChunkPerPiece(t *testing.T) {
	o := newTestOrchestrator(t, t.TempDir())
	ctx := context.Background()

	var long string
	for i := 0; i < 400; i++ {
		long += "palabra "
	}
	doc := resourceproc.ExtractedDocument{RelPath: "tema1.pdf", Text: long}

	ids, err := o.indexChunksWithIDs(ctx, "GRA_1", "Algebra", doc)
	require.NoError(t, err)
	assert.Greater(t, len(ids), 1)

	has, err := o.system.Has(ctx, document.ChunkSentinelID("GRA_1", "tema1.pdf"))
	require.NoError(t, err)
	assert.True(t, has)
}

func TestIndexExtractedDocumentSkipsAlreadyIndexedChunk0(t *testing.T) {
	o := newTestOrchestrator(t, t.TempDir())
	ctx := context.Background()

	doc := resourceproc.ExtractedDocument{RelPath: "syllabus.pdf", Text: "short syllabus text"}
	require.NoError(t, o.indexExtractedDocument(ctx, "GRA_2", "Calculus", doc, o.logger))

	has, err := o.system.Has(ctx, document.ChunkSentinelID("GRA_2", "syllabus.pdf"))
	require.NoError(t, err)
	require.True(t, has)

	// Re-running must not error and must not duplicate indexing work.
	require.NoError(t, o.indexExtractedDocument(ctx, "GRA_2", "Calculus", doc, o.logger))
}

func TestIndexExtractedDocumentRemovesLegacyUnchunkedEntry(t *testing.T) {
	o := newTestOrchestrator(t, t.TempDir())
	ctx := context.Background()

	legacyID := "GRA_3/notes.pdf"
	require.NoError(t, o.system.AddDocument(ctx, legacyID, "legacy unchunked content", document.DefaultUserID, nil))

	doc := resourceproc.ExtractedDocument{RelPath: "notes.pdf", Text: "fresh chunked content"}
	require.NoError(t, o.indexExtractedDocument(ctx, "GRA_3", "Physics", doc, o.logger))

	stillThere, err := o.system.Has(ctx, legacyID)
	require.NoError(t, err)
	assert.False(t, stillThere)

	chunked, err := o.system.Has(ctx, document.ChunkSentinelID("GRA_3", "notes.pdf"))
	require.NoError(t, err)
	assert.True(t, chunked)
}

func TestScanLocalSkipsHiddenAndEmptyDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hidden"), 0o700))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "SubjectA"), 0o700))

	o := newTestOrchestrator(t, dir)
	added, err := o.ScanLocal(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestScanLocalReportsNoDataDirectory(t *testing.T) {
	o := newTestOrchestrator(t, filepath.Join(t.TempDir(), "missing"))

	var messages []string
	added, err := o.ScanLocal(context.Background(), func(msg string) { messages = append(messages, msg) })
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.NotEmpty(t, messages)
}
