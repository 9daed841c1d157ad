package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRemoteEmbedder(t *testing.T, dims int, handler http.HandlerFunc) *RemoteEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL
	client := openai.NewClientWithConfig(cfg)
	return NewRemoteEmbedderWithClient(client, "test-embedding-model", dims)
}

func fakeEmbeddingVector(dims int, seed float32) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = seed + float32(i)*0.01
	}
	return v
}

func TestRemoteEmbedderReturnsUnitNormVector(t *testing.T) {
	e := newTestRemoteEmbedder(t, 8, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: fakeEmbeddingVector(8, 1.0)}},
		})
	})

	v, err := e.Embed(context.Background(), "what is the capital of France")
	require.NoError(t, err)
	assert.Len(t, v, 8)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
}

func TestRemoteEmbedderEmptyInputFails(t *testing.T) {
	e := newTestRemoteEmbedder(t, 4, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not call the API for empty input")
	})
	_, err := e.Embed(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRemoteEmbedderWrapsAPIFailure(t *testing.T) {
	e := newTestRemoteEmbedder(t, 4, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := e.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, ErrEmbedderFailure)
}

func TestRemoteEmbedderChunksLongInput(t *testing.T) {
	var calls int
	e := newTestRemoteEmbedder(t, 4, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: fakeEmbeddingVector(4, float32(calls))}},
		})
	})

	long := ""
	for i := 0; i < 400; i++ {
		long += "palabra "
	}
	v, err := e.Embed(context.Background(), long)
	require.NoError(t, err)
	assert.Greater(t, calls, 1)
	assert.Len(t, v, 4)
}
