package vectorstore

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xbiel/polirag/internal/document"
)

func docWithVector(id string, v []float32) document.Document {
	return document.New(id, "content for "+id, v, document.DefaultUserID, nil)
}

func TestNewHNSWStoreDefaultsConfig(t *testing.T) {
	h := NewHNSWStore(4, HNSWConfig{}, "")
	assert.Equal(t, 24, h.config.M)
	assert.Equal(t, 10000, h.config.EfConstruction)
	assert.Equal(t, 16, h.config.MaxLayers)
}

func TestHNSWStoreAddAndSize(t *testing.T) {
	h := NewHNSWStore(4, DefaultHNSWConfig(), "")
	ctx := context.Background()

	require.NoError(t, h.Add(ctx, []document.Document{
		docWithVector("vec1", []float32{1, 0, 0, 0}),
		docWithVector("vec2", []float32{0, 1, 0, 0}),
	}))
	assert.Equal(t, 2, h.Size())
}

func TestHNSWStoreRejectsDimensionMismatch(t *testing.T) {
	h := NewHNSWStore(4, DefaultHNSWConfig(), "")
	err := h.Add(context.Background(), []document.Document{
		docWithVector("vec1", []float32{1, 0, 0}),
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestHNSWStoreQueryFindsExactMatch(t *testing.T) {
	h := NewHNSWStore(4, DefaultHNSWConfig(), "")
	ctx := context.Background()
	require.NoError(t, h.Add(ctx, []document.Document{
		docWithVector("vec1", []float32{1, 0, 0, 0}),
		docWithVector("vec2", []float32{0, 1, 0, 0}),
		docWithVector("vec3", []float32{0, 0, 1, 0}),
	}))

	results, err := h.Query(ctx, []float32{1, 0, 0, 0}, 1, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vec1", results[0].Document.ID)
	assert.InDelta(t, 1.0, results[0].Score, 0.01)
}

func TestHNSWStoreQueryZeroTopKReturnsEmpty(t *testing.T) {
	h := NewHNSWStore(4, DefaultHNSWConfig(), "")
	ctx := context.Background()
	require.NoError(t, h.Add(ctx, []document.Document{
		docWithVector("vec1", []float32{1, 0, 0, 0}),
	}))

	results, err := h.Query(ctx, []float32{1, 0, 0, 0}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStoreQueryRespectsThreshold(t *testing.T) {
	h := NewHNSWStore(4, DefaultHNSWConfig(), "")
	ctx := context.Background()
	require.NoError(t, h.Add(ctx, []document.Document{
		docWithVector("vec1", []float32{1, 0, 0, 0}),
		docWithVector("vec2", []float32{0, 1, 0, 0}),
	}))

	results, err := h.Query(ctx, []float32{1, 0, 0, 0}, 10, 0.9)
	require.NoError(t, err)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, float32(0.9))
	}
}

func TestHNSWStoreQueryEmptyIndex(t *testing.T) {
	h := NewHNSWStore(4, DefaultHNSWConfig(), "")
	results, err := h.Query(context.Background(), []float32{1, 0, 0, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStoreQueryRejectsDimensionMismatch(t *testing.T) {
	h := NewHNSWStore(4, DefaultHNSWConfig(), "")
	require.NoError(t, h.Add(context.Background(), []document.Document{docWithVector("vec1", []float32{1, 0, 0, 0})}))

	_, err := h.Query(context.Background(), []float32{1, 0}, 5, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestHNSWStoreDeleteUpdatesEntryPoint(t *testing.T) {
	h := NewHNSWStore(4, DefaultHNSWConfig(), "")
	ctx := context.Background()
	require.NoError(t, h.Add(ctx, []document.Document{docWithVector("vec1", []float32{1, 0, 0, 0})}))
	require.NoError(t, h.Delete(ctx, "vec1"))
	assert.Equal(t, 0, h.Size())
	assert.Empty(t, h.entryPoint)
}

func TestHNSWStoreResultsSortedDescending(t *testing.T) {
	h := NewHNSWStore(4, DefaultHNSWConfig(), "")
	ctx := context.Background()
	require.NoError(t, h.Add(ctx, []document.Document{
		docWithVector("close", []float32{0.99, 0.1, 0, 0}),
		docWithVector("medium", []float32{0.7, 0.7, 0, 0}),
		docWithVector("far", []float32{0.1, 0.99, 0, 0}),
	}))

	results, err := h.Query(ctx, []float32{1, 0, 0, 0}, 3, 0)
	require.NoError(t, err)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestHNSWStoreSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := NewHNSWStore(4, DefaultHNSWConfig(), dir)
	ctx := context.Background()
	require.NoError(t, h.Add(ctx, []document.Document{
		docWithVector("vec1", []float32{1, 0, 0, 0}),
		docWithVector("vec2", []float32{0, 1, 0, 0}),
	}))
	require.NoError(t, h.Save())

	assert.FileExists(t, filepath.Join(dir, hnswGraphFileName))

	loaded, ok, err := LoadHNSWStore(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, loaded.Size())

	results, err := loaded.Query(ctx, []float32{1, 0, 0, 0}, 1, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vec1", results[0].Document.ID)
	assert.Equal(t, "content for vec1", results[0].Document.Content)
}

func TestLoadHNSWStoreMissingFile(t *testing.T) {
	_, ok, err := LoadHNSWStore(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHNSWStoreRecallAgainstBruteForce(t *testing.T) {
	rand.Seed(1)
	dims := 32
	n := 200
	k := 10

	h := NewHNSWStore(dims, DefaultHNSWConfig(), "")
	ctx := context.Background()

	vectors := make(map[string][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dims)
		for j := range v {
			v[j] = rand.Float32()
		}
		id := document.ChunkID("subj", "doc", i)
		vectors[id] = v
		require.NoError(t, h.Add(ctx, []document.Document{docWithVector(id, v)}))
	}

	query := make([]float32, dims)
	for j := range query {
		query[j] = rand.Float32()
	}

	bruteBest := bruteForceTopK(query, vectors, k)
	hnswResults, err := h.Query(ctx, query, k, 0)
	require.NoError(t, err)

	hits := 0
	bruteSet := make(map[string]bool, len(bruteBest))
	for _, id := range bruteBest {
		bruteSet[id] = true
	}
	for _, r := range hnswResults {
		if bruteSet[r.Document.ID] {
			hits++
		}
	}
	recall := float64(hits) / float64(len(bruteBest))
	assert.GreaterOrEqual(t, recall, 0.5, "HNSW recall should be reasonably close to brute force")
}

func bruteForceTopK(query []float32, vectors map[string][]float32, k int) []string {
	type scored struct {
		id    string
		score float32
	}
	scoredList := make([]scored, 0, len(vectors))
	for id, v := range vectors {
		scoredList = append(scoredList, scored{id: id, score: cosineSimilarity(v, query)})
	}
	for i := 0; i < len(scoredList); i++ {
		maxIdx := i
		for j := i + 1; j < len(scoredList); j++ {
			if scoredList[j].score > scoredList[maxIdx].score {
				maxIdx = j
			}
		}
		scoredList[i], scoredList[maxIdx] = scoredList[maxIdx], scoredList[i]
	}
	if k > len(scoredList) {
		k = len(scoredList)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = scoredList[i].id
	}
	return out
}
