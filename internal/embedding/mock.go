package embedding

import "context"

// MockEmbedder is a deterministic, dependency-free Embedder for tests. It
// hashes the input text into a fixed-size vector rather than returning a
// canned constant, so distinct inputs route to distinct store buckets the
// way a real embedder would.
type MockEmbedder struct {
	dims int
	// Err, when set, is returned by every call.
	Err error
}

// NewMockEmbedder creates a mock of the given dimensionality.
func NewMockEmbedder(dims int) *MockEmbedder {
	return &MockEmbedder{dims: dims}
}

func (m *MockEmbedder) Dimensions() int {
	return m.dims
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := make([]float32, m.dims)
	if text == "" {
		return v, nil
	}
	var h uint32 = 2166136261
	for i := 0; i < len(v); i++ {
		for _, b := range []byte(text) {
			h ^= uint32(b)
			h *= 16777619
		}
		v[i] = float32(int32(h)%1000) / 1000.0
	}
	normalizeInPlace(v)
	return v, nil
}
