package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/0xbiel/polirag/internal/logging"
)

// RemoteEmbedder satisfies Embedder by calling an OpenAI-compatible
// embeddings endpoint instead of the bundled local GGUF model. It exists for
// environments where the native llama.cpp bindings can't load (missing
// shared library, unsupported CPU) and the operator would rather point at a
// hosted embeddings API than not run at all; LocalEmbedder remains the
// default. Chunk-and-average follows the same policy as LocalEmbedder so
// callers can swap one for the other without changing RAG semantics.
type RemoteEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

// NewRemoteEmbedder builds a RemoteEmbedder against an OpenAI-compatible
// embeddings endpoint. dims must match the configured model's native output
// width, since the provider's response carries no dimensionality metadata
// polirag can otherwise cross-check.
func NewRemoteEmbedder(apiKey, model string, dims int) *RemoteEmbedder {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &RemoteEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
		dims:   dims,
	}
}

// NewRemoteEmbedderWithClient builds a RemoteEmbedder around an
// already-configured client, e.g. one pointed at a self-hosted
// OpenAI-compatible embeddings server via openai.ClientConfig.BaseURL.
func NewRemoteEmbedderWithClient(client *openai.Client, model string, dims int) *RemoteEmbedder {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &RemoteEmbedder{client: client, model: openai.EmbeddingModel(model), dims: dims}
}

func (r *RemoteEmbedder) Dimensions() int { return r.dims }

// Embed mirrors LocalEmbedder.Embed's chunk-and-average policy but sources
// each window's vector from the remote API instead of local inference.
func (r *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding: %w", ErrInvalidInput)
	}

	windows := splitForEmbedding(text, chunkCharLimit)
	if len(windows) == 1 {
		return r.embedOne(ctx, windows[0])
	}

	sum := make([]float64, r.dims)
	var anyOK bool
	for _, w := range windows {
		v, err := r.embedOne(ctx, w)
		if err != nil {
			return nil, err
		}
		anyOK = true
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	if !anyOK {
		return make([]float32, r.dims), nil
	}
	avg := make([]float32, r.dims)
	for i, x := range sum {
		avg[i] = float32(x / float64(len(windows)))
	}
	normalizeInPlace(avg)
	return avg, nil
}

func (r *RemoteEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	resp, err := r.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: r.model,
	})
	if err != nil {
		logging.Named("embedding").Warn("remote embedding call failed", "error", err)
		return nil, fmt.Errorf("embedding: %w: %v", ErrEmbedderFailure, err)
	}
	if len(resp.Data) == 0 {
		return make([]float32, r.dims), nil
	}

	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	copy(out, raw)
	normalizeInPlace(out)
	return out, nil
}
