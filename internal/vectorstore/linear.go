package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/0xbiel/polirag/internal/document"
)

const collectionName = "polirag"

// LinearStore is the exact-search backend: every query does a full scan
// over stored vectors. It wraps chromem-go, with embeddings supplied
// explicitly by the caller rather than computed by chromem's own embedding
// function hook, since polirag always embeds locally before calling Add.
//
// chromem-go's collection snapshot has no per-id lookup or delete-by-id
// primitive beyond AddDocuments/QueryEmbedding/Count, so LinearStore keeps
// its own id→Document mirror alongside the chromem collection to serve
// Has/All/Delete without re-querying chromem for every id.
type LinearStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	docs       map[string]document.Document
}

// NewLinearStore opens (or creates) a persistent chromem-go database at
// persistPath. An empty persistPath yields an in-memory-only store, used in
// tests.
func NewLinearStore(persistPath string) (*LinearStore, error) {
	var db *chromem.DB
	var err error
	if persistPath != "" {
		db, err = chromem.NewPersistentDB(persistPath, false)
	} else {
		db = chromem.NewDB()
	}
	if err != nil {
		return nil, fmt.Errorf("open chromem store at %s: %w", persistPath, err)
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get or create chromem collection: %w", err)
	}

	return &LinearStore{
		db:         db,
		collection: collection,
		docs:       make(map[string]document.Document),
	}, nil
}

// Add inserts or overwrites documents by id.
func (s *LinearStore) Add(ctx context.Context, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		meta := make(map[string]string, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			meta[k] = v
		}
		meta["user_id"] = d.UserID
		chromemDocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  meta,
			Embedding: d.Embedding,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents to chromem collection: %w", err)
	}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return nil
}

// Query returns the topK documents most similar to embedding, filtered to a
// minimum cosine similarity of threshold.
func (s *LinearStore) Query(ctx context.Context, embedding []float32, topK int, threshold float32) ([]ScoredDocument, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.collection.Count()
	if n == 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}

	res, err := s.collection.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query chromem collection: %w", err)
	}

	out := make([]ScoredDocument, 0, len(res))
	for _, r := range res {
		if r.Similarity < threshold {
			continue
		}
		out = append(out, ScoredDocument{
			Document: chromemResultToDocument(r),
			Score:    r.Similarity,
		})
	}
	return out, nil
}

// Delete removes a document by id from both the chromem collection and the
// local mirror.
func (s *LinearStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	delete(s.docs, id)
	return nil
}

// Has reports whether a document with the given id is present.
func (s *LinearStore) Has(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id]
	return ok, nil
}

// Count returns the number of stored documents.
func (s *LinearStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count()
}

// All returns every stored document, used by the HNSW migration path.
func (s *LinearStore) All() ([]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]document.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	return docs, nil
}

// Close is a no-op: chromem-go persists synchronously on write and exposes
// no explicit handle to release.
func (s *LinearStore) Close() error {
	return nil
}

func chromemResultToDocument(r chromem.Result) document.Document {
	meta := make(map[string]string, len(r.Metadata))
	userID := document.DefaultUserID
	for k, v := range r.Metadata {
		if k == "user_id" {
			userID = v
			continue
		}
		meta[k] = v
	}
	return document.New(r.ID, r.Content, r.Embedding, userID, meta)
}
