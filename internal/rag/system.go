// Package rag is the orchestration facade tying the embedder and the
// vector store together: document ingestion, similarity search, snippet
// extraction for prompt assembly, and full re-embedding.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/0xbiel/polirag/internal/document"
	"github.com/0xbiel/polirag/internal/embedding"
	"github.com/0xbiel/polirag/internal/logging"
	"github.com/0xbiel/polirag/internal/vectorstore"
)

const snippetMinThreshold = 0.3

// SearchHit pairs a document with its similarity score.
type SearchHit struct {
	Document document.Document
	Score    float32
}

// Snippet is a scored, source-labeled excerpt ready to drop into a prompt.
type Snippet struct {
	SourceLabel string
	Text        string
	Score       float32
}

// Stats augments the store's own counters with embedder/store identity,
// returned by GetStats for the CLI's `stats` output and for diagnostics.
type Stats struct {
	DocumentCount       int
	Backend             vectorstore.Backend
	EmbeddingModel      string
	EmbeddingDimensions int
}

// ProgressCallback reports re-embedding progress: current/total documents
// processed, and the id/metadata of the document just processed.
type ProgressCallback func(current, total int, id string, metadata map[string]string)

// System is the RAG facade. It owns no lifecycle beyond what its embedder
// and store already manage; Close releases both.
type System struct {
	embedder  embedding.Embedder
	store     vectorstore.Store
	backend   vectorstore.Backend
	modelName string
	logger    *slog.Logger
}

// NewSystem wires an embedder and a store into a ready-to-use facade.
func NewSystem(embedder embedding.Embedder, store vectorstore.Store, backend vectorstore.Backend, modelName string) *System {
	return &System{
		embedder:  embedder,
		store:     store,
		backend:   backend,
		modelName: modelName,
		logger:    logging.Named("rag"),
	}
}

// AddDocument embeds content and upserts it into the store under id. The
// raw content is stored verbatim; snippet extraction happens at query time,
// never at ingestion time, so re-scoring a stored document against a new
// query never requires re-reading source files.
func (s *System) AddDocument(ctx context.Context, id, content, userID string, metadata map[string]string) error {
	if content == "" {
		return fmt.Errorf("rag: add_document: content must not be empty")
	}

	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("rag: embed document %s: %w", id, err)
	}

	doc := document.New(id, content, vec, userID, metadata)
	if err := s.store.Add(ctx, []document.Document{doc}); err != nil {
		return fmt.Errorf("rag: store document %s: %w", id, err)
	}
	return nil
}

// Search embeds query and delegates to the store with no similarity floor.
func (s *System) Search(ctx context.Context, query, userID string, topK int) ([]SearchHit, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	results, err := s.store.Query(ctx, vec, topK, 0)
	if err != nil {
		return nil, fmt.Errorf("rag: query store: %w", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		if r.Document.UserID != userID {
			continue
		}
		hits = append(hits, SearchHit{Document: r.Document, Score: r.Score})
	}
	return hits, nil
}

// SearchSnippets fetches up to 2*topK candidates above a 0.3 similarity
// floor, extracts a scored snippet from each, and returns the top topK.
func (s *System) SearchSnippets(ctx context.Context, query, userID string, topK int) ([]Snippet, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	candidateK := topK * 2
	results, err := s.store.Query(ctx, vec, candidateK, snippetMinThreshold)
	if err != nil {
		return nil, fmt.Errorf("rag: query store: %w", err)
	}

	snippets := make([]Snippet, 0, len(results))
	for _, r := range results {
		if r.Document.UserID != userID {
			continue
		}
		snippets = append(snippets, Snippet{
			SourceLabel: sourceLabel(r.Document),
			Text:        extractSnippet(r.Document.Content, query),
			Score:       r.Score,
		})
		if len(snippets) >= topK {
			break
		}
	}
	return snippets, nil
}

// sourceLabel prefers the document id for subject summaries, otherwise the
// filename metadata if present, falling back to the id.
func sourceLabel(d document.Document) string {
	if d.Metadata[document.MetaType] == document.TypeSubject {
		return d.ID
	}
	if fn, ok := d.Metadata[document.MetaFilename]; ok && fn != "" {
		return fn
	}
	return d.ID
}

// ReembedAll recomputes the embedding of every stored document and
// persists once at the end. It snapshots the document list once up front
// so the store's read path isn't held for the whole operation, then
// iterates and re-inserts outside any long-lived lock. Per-document
// failures are logged and skipped, never fatal to the run.
func (s *System) ReembedAll(ctx context.Context, progress ProgressCallback) error {
	enumerable, ok := s.store.(enumerableStore)
	if !ok {
		return fmt.Errorf("rag: reembed: store does not support enumeration")
	}
	docs, err := enumerable.All()
	if err != nil {
		return fmt.Errorf("rag: snapshot documents for reembed: %w", err)
	}

	total := len(docs)
	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		vec, embedErr := s.embedder.Embed(ctx, d.Content)
		if embedErr != nil {
			s.logger.Warn("reembed failed, skipping", "id", d.ID, "error", embedErr)
			if progress != nil {
				progress(i+1, total, d.ID, d.Metadata)
			}
			continue
		}
		d.Embedding = vec

		if addErr := s.store.Add(ctx, []document.Document{d}); addErr != nil {
			s.logger.Warn("reembed upsert failed, skipping", "id", d.ID, "error", addErr)
		}
		if progress != nil {
			progress(i+1, total, d.ID, d.Metadata)
		}
	}

	if persister, ok := s.store.(interface{ Save() error }); ok {
		if err := persister.Save(); err != nil {
			return fmt.Errorf("rag: persist after reembed: %w", err)
		}
	}
	return nil
}

// enumerableStore is implemented by both vector store backends, letting
// ReembedAll and Clear work across either without a concrete type switch.
type enumerableStore interface {
	All() ([]document.Document, error)
}

// Clear removes every stored document whose backend supports it.
func (s *System) Clear(ctx context.Context) error {
	remover, ok := s.store.(enumerableStore)
	if !ok {
		return fmt.Errorf("rag: clear: store does not support enumeration")
	}
	docs, err := remover.All()
	if err != nil {
		return fmt.Errorf("rag: clear: %w", err)
	}
	for _, d := range docs {
		if err := s.store.Delete(ctx, d.ID); err != nil {
			return fmt.Errorf("rag: clear: delete %s: %w", d.ID, err)
		}
	}
	return nil
}

// Save persists the store to disk if its backend supports it. Backends that
// don't (the in-memory-only paths used in tests) report no error.
func (s *System) Save() error {
	persister, ok := s.store.(interface{ Save() error })
	if !ok {
		return nil
	}
	if err := persister.Save(); err != nil {
		return fmt.Errorf("rag: save: %w", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *System) Count() int {
	return s.store.Count()
}

// GetStats reports the store's document count augmented with backend and
// embedding model identity.
func (s *System) GetStats() Stats {
	return Stats{
		DocumentCount:       s.store.Count(),
		Backend:             s.backend,
		EmbeddingModel:      s.modelName,
		EmbeddingDimensions: s.embedder.Dimensions(),
	}
}

// Has reports whether a document id already exists in the store, used by
// the ingestion orchestrator's sentinel checks.
func (s *System) Has(ctx context.Context, id string) (bool, error) {
	return s.store.Has(ctx, id)
}

// Delete removes a single document by id.
func (s *System) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
