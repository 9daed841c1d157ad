// Package embedding produces unit-norm vector representations of text using
// a local GGUF model loaded once per process, never calling out to a remote
// embedding API.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"
)

// ErrInvalidInput is returned when embed is called with empty text.
var ErrInvalidInput = errors.New("embedding: invalid input")

// ErrEmbedderFailure wraps an underlying inference or API error. Callers
// (the RAG system's AddDocument/ReembedAll) decide whether to skip the
// document or abort per spec's per-item-failure-never-fatal philosophy.
var ErrEmbedderFailure = errors.New("embedding: inference failed")

// Embedder generates a single embedding vector per call. Implementations
// normalize the output to unit L2 norm, or return the zero vector of the
// correct dimensionality if inference fails.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// chunkCharLimit is the rough cutoff (in characters) past which a single
// text is split into multiple inference windows and the resulting vectors
// averaged, mirroring the model's ~512-token practical ceiling.
const chunkCharLimit = 1024

// LocalEmbedder wraps a llama.cpp embedding model loaded via the purego-based
// yzma bindings. Inference is serialized behind a single mutex: llama.cpp
// contexts are not safe for concurrent decode calls, and polirag only ever
// needs one embedding at a time on the ingestion or query path.
type LocalEmbedder struct {
	mu    sync.Mutex
	model llama.Model
	vocab llama.Vocab
	dims  int
	nCtx  int32
}

// NewLocalEmbedder loads the GGUF model found at modelPath. The caller is
// expected to have written the embedded model bytes (see ModelBytes) to a
// temp file first, since llama.cpp's loader takes a filesystem path.
func NewLocalEmbedder(modelPath string) (*LocalEmbedder, error) {
	params := llama.ModelDefaultParams()
	params.NGpuLayers = 0 // CPU-only: this is a personal assistant, not a GPU service.

	model, err := llama.ModelLoadFromFile(modelPath, params)
	if err != nil {
		return nil, fmt.Errorf("load embedding model %s: %w", modelPath, err)
	}

	e := &LocalEmbedder{
		model: model,
		vocab: llama.ModelGetVocab(model),
		dims:  int(llama.ModelNEmbd(model)),
		nCtx:  2048,
	}
	return e, nil
}

// Dimensions returns the model's native embedding width.
func (e *LocalEmbedder) Dimensions() int {
	return e.dims
}

// Close releases the underlying model.
func (e *LocalEmbedder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != 0 {
		llama.ModelFree(e.model)
		e.model = 0
	}
}

// Embed produces a unit-norm embedding for text. Inputs longer than
// chunkCharLimit are split on whitespace into roughly equal windows, each
// embedded independently, then averaged and renormalized so long documents
// don't silently truncate to their first paragraph. On inference failure the
// zero vector of the model's dimensionality is returned, never an error that
// would abort an entire ingestion batch over one bad chunk.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrInvalidInput
	}

	windows := splitForEmbedding(text, chunkCharLimit)
	if len(windows) == 1 {
		return e.embedOne(windows[0])
	}

	sum := make([]float64, e.dims)
	var nonZero int
	for _, w := range windows {
		v, err := e.embedOne(w)
		if err != nil {
			return nil, err
		}
		if !isZero(v) {
			nonZero++
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	if nonZero == 0 {
		return make([]float32, e.dims), nil
	}

	avg := make([]float32, e.dims)
	for i, x := range sum {
		avg[i] = float32(x / float64(len(windows)))
	}
	normalizeInPlace(avg)
	return avg, nil
}

// embedOne runs inference for a single window using a fresh context, which
// avoids KV-cache state leaking between unrelated calls.
func (e *LocalEmbedder) embedOne(text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model == 0 {
		return nil, fmt.Errorf("embed: model is closed")
	}

	ctxParams := llama.ContextDefaultParams()
	ctxParams.Embeddings = 1
	ctxParams.NCtx = e.nCtx
	ctxParams.NBatch = uint32(e.nCtx)
	ctxParams.NUbatch = uint32(e.nCtx)
	ctxParams.NThreads = 4

	lctx, err := llama.InitFromModel(e.model, ctxParams)
	if err != nil {
		return make([]float32, e.dims), nil
	}
	defer llama.Free(lctx)

	llama.SetEmbeddings(lctx, true)

	tokens := llama.Tokenize(e.vocab, text, true, false)
	if len(tokens) == 0 {
		return make([]float32, e.dims), nil
	}
	if maxTokens := int(e.nCtx) - 1; len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}

	batch := llama.BatchGetOne(tokens)
	batch.SetLogit(int32(len(tokens)-1), true)

	if _, err := llama.Decode(lctx, batch); err != nil {
		return make([]float32, e.dims), nil
	}

	raw, err := llama.GetEmbeddingsSeq(lctx, 0, int32(e.dims))
	if err != nil {
		return make([]float32, e.dims), nil
	}

	out := make([]float32, len(raw))
	copy(out, raw)
	normalizeInPlace(out)
	return out, nil
}

// splitForEmbedding divides text into whitespace-aligned windows no longer
// than limit characters each, returning the whole text as a single window
// when it already fits.
func splitForEmbedding(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	var windows []string
	var b strings.Builder
	for _, w := range words {
		if b.Len()+len(w)+1 > limit && b.Len() > 0 {
			windows = append(windows, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	if b.Len() > 0 {
		windows = append(windows, b.String())
	}
	if len(windows) == 0 {
		return []string{text}
	}
	return windows
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
