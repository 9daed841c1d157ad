package embedding

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

// modelBytes holds the GGUF embedding model weights, compiled into the
// binary so polirag never needs a network fetch or separate model install
// step at first run.
//
//go:embed models/embedding.gguf
var modelBytes []byte

// ExtractModel writes the embedded model to a stable path under dir and
// returns that path, skipping the write if a file of the expected size is
// already there. llama.cpp's loader requires a filesystem path, so this is
// the bridge between go:embed and ModelLoadFromFile.
func ExtractModel(dir string) (string, error) {
	path := filepath.Join(dir, "embedding.gguf")

	if info, err := os.Stat(path); err == nil && info.Size() == int64(len(modelBytes)) {
		return path, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create model dir %s: %w", dir, err)
	}
	if err := os.WriteFile(path, modelBytes, 0o600); err != nil {
		return "", fmt.Errorf("write embedded model to %s: %w", path, err)
	}
	return path, nil
}

// NewDefaultEmbedder extracts the embedded model to dir and loads it.
func NewDefaultEmbedder(dir string) (*LocalEmbedder, error) {
	path, err := ExtractModel(dir)
	if err != nil {
		return nil, err
	}
	return NewLocalEmbedder(path)
}
