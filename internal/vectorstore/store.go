// Package vectorstore holds the two interchangeable index backends: an
// exact linear scan backed by chromem-go, and a hand-rolled approximate
// HNSW graph for larger corpora. Both satisfy the same Store interface so
// the RAG system can migrate between them without touching callers.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/0xbiel/polirag/internal/document"
)

// ErrDimensionMismatch is returned when a vector's length doesn't match the
// store's configured dimensionality.
var ErrDimensionMismatch = errors.New("vectorstore: embedding dimension mismatch")

// ScoredDocument pairs a stored document with its similarity score against
// the most recent query.
type ScoredDocument struct {
	Document document.Document
	Score    float32
}

// Store is satisfied by every backend. Add is idempotent on id: storing a
// document whose id already exists overwrites it in place.
type Store interface {
	Add(ctx context.Context, docs []document.Document) error
	Query(ctx context.Context, embedding []float32, topK int, threshold float32) ([]ScoredDocument, error)
	Delete(ctx context.Context, id string) error
	Has(ctx context.Context, id string) (bool, error)
	Count() int
	Close() error
}

// Backend selects which Store implementation a configuration resolves to.
type Backend string

const (
	BackendLinear Backend = "linear"
	BackendHNSW   Backend = "hnsw"
)

// MigrateLinearToHNSW rebuilds an HNSW index from every document currently
// held by a linear store, leaving the linear store's on-disk artifact
// untouched so it can serve as a fallback if the migration or the new
// index turns out to be unusable. It is meant to run once at startup when
// a documents blob exists but no HNSW graph file does yet; failure here is
// non-fatal to the caller, which should fall back to the linear backend.
func MigrateLinearToHNSW(ctx context.Context, linear *LinearStore, hnsw *HNSWStore) (int, error) {
	docs, err := linear.All()
	if err != nil {
		return 0, fmt.Errorf("migrate: read linear documents: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if err := hnsw.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("migrate: populate hnsw: %w", err)
	}
	if err := hnsw.Save(); err != nil {
		return 0, fmt.Errorf("migrate: persist hnsw: %w", err)
	}
	return len(docs), nil
}

// NeedsMigration reports whether a documents blob is present at dataPath
// but no HNSW graph artifact exists yet at graphPath.
func NeedsMigration(dataPath, graphPath string) bool {
	if _, err := os.Stat(dataPath); err != nil {
		return false
	}
	_, err := os.Stat(graphPath)
	return os.IsNotExist(err)
}
