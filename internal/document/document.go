// Package document defines the indexed unit shared by the embedder, the
// vector store, and the RAG system, along with the transient Subject type
// produced during portal ingestion.
package document

import "fmt"

// Recognized metadata keys.
const (
	MetaType     = "type"
	MetaFilename = "filename"
	MetaName     = "name"
)

// Recognized values for the "type" metadata key.
const (
	TypeSubject = "subject"
	TypePDF     = "pdf"
)

// DefaultUserID is the single tenant tag every sync-written document carries.
const DefaultUserID = "user"

// Document is the indexed unit. id is unique within a store: inserting a
// document with an existing id replaces the prior record. embedding must be
// unit-norm, or the zero vector if the embedder failed upstream (in which
// case the caller is expected to discard the document rather than store it).
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata"`
	UserID    string            `json:"user_id"`
}

// New builds a Document with a non-nil metadata map.
func New(id, content string, embedding []float32, userID string, metadata map[string]string) Document {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return Document{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
		UserID:    userID,
	}
}

// ChunkID builds the hierarchical chunk identifier "<subjectID>/<relPath>#<index>".
func ChunkID(subjectID, relPath string, index int) string {
	return fmt.Sprintf("%s/%s#%d", subjectID, relPath, index)
}

// ChunkSentinelID is the id of the first chunk of a document, used to probe
// whether a chunked document has already been indexed.
func ChunkSentinelID(subjectID, relPath string) string {
	return ChunkID(subjectID, relPath, 0)
}

// Subject is the transient per-course record produced while enumerating the
// portal. It is not persisted in the index beyond appearing as a subject
// summary Document.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}
