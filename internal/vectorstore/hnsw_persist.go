package vectorstore

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xbiel/polirag/internal/document"
)

const hnswGraphFileName = "polirag.index.hnsw.graph"

// hnswSnapshot is the gob-serializable form of an HNSWStore, since the
// unexported hnswNode type (and its sync.RWMutex sibling fields) can't be
// gob-encoded directly.
type hnswSnapshot struct {
	Dimensions int
	Config     HNSWConfig
	EntryPoint string
	Nodes      []hnswNodeSnapshot
	Docs       map[string]document.Document
}

type hnswNodeSnapshot struct {
	ID        string
	Vector    []float32
	Level     int
	Neighbors [][]string
}

// GraphPath returns the path Save/Load use under dir.
func GraphPath(dir string) string {
	return filepath.Join(dir, hnswGraphFileName)
}

// Save persists the graph to persistDir/polirag.index.hnsw.graph as
// gob-encoded data. A failed save is logged by the caller and never blocks
// ingestion: the in-memory graph remains usable for the rest of the process.
func (h *HNSWStore) Save() error {
	if h.persistDir == "" {
		return nil
	}

	h.mu.RLock()
	snap := hnswSnapshot{
		Dimensions: h.dimensions,
		Config:     h.config,
		EntryPoint: h.entryPoint,
		Nodes:      make([]hnswNodeSnapshot, 0, len(h.nodes)),
		Docs:       h.docs,
	}
	for _, n := range h.nodes {
		snap.Nodes = append(snap.Nodes, hnswNodeSnapshot{
			ID:        n.id,
			Vector:    n.vector,
			Level:     n.level,
			Neighbors: n.neighbors,
		})
	}
	h.mu.RUnlock()

	if err := os.MkdirAll(h.persistDir, 0o700); err != nil {
		return fmt.Errorf("create hnsw persist dir %s: %w", h.persistDir, err)
	}

	path := GraphPath(h.persistDir)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create hnsw graph file %s: %w", tmp, err)
	}
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode hnsw graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close hnsw graph file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize hnsw graph file: %w", err)
	}
	return nil
}

// LoadHNSWStore reads a previously saved graph from persistDir. Missing
// file is reported as (nil, false, nil) so callers can fall back to
// building an empty or migrated index instead of treating it as fatal.
func LoadHNSWStore(persistDir string) (*HNSWStore, bool, error) {
	path := GraphPath(persistDir)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open hnsw graph file %s: %w", path, err)
	}
	defer f.Close()

	var snap hnswSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, false, fmt.Errorf("decode hnsw graph: %w", err)
	}

	h := &HNSWStore{
		dimensions: snap.Dimensions,
		config:     snap.Config,
		entryPoint: snap.EntryPoint,
		nodes:      make(map[string]*hnswNode, len(snap.Nodes)),
		docs:       snap.Docs,
		persistDir: persistDir,
	}
	if h.docs == nil {
		h.docs = make(map[string]document.Document)
	}
	for _, n := range snap.Nodes {
		h.nodes[n.ID] = &hnswNode{
			id:        n.ID,
			vector:    n.Vector,
			level:     n.Level,
			neighbors: n.Neighbors,
		}
	}
	return h, true, nil
}
