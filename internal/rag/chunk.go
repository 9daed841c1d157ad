package rag

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/pkoukk/tiktoken-go"
)

// chunkTargetTokens is the cl100k_base token budget a chunk is built up to
// before being closed off. Keeping chunk boundaries token-aware (rather than
// character-aware) keeps every chunk within the embedder's own token budget
// regardless of how dense the source text's vocabulary is.
const chunkTargetTokens = 250

//go:embed data/english.json
var sentenceTrainingData []byte

var sentenceTokenizer *sentences.DefaultSentenceTokenizer

func init() {
	if storage, err := sentences.LoadTraining(sentenceTrainingData); err == nil {
		sentenceTokenizer = sentences.NewSentenceTokenizer(storage)
	}
}

var tikTokenEncoding *tiktoken.Tiktoken

func init() {
	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		tikTokenEncoding = enc
	}
}

// CountTokens estimates the token count of s using the cl100k_base
// encoding, falling back to a word-count approximation if the encoder
// failed to initialize. ChunkText uses this to decide chunk boundaries, so
// a failed encoder degrades chunking to a word-count budget rather than
// breaking it.
func CountTokens(s string) int {
	if tikTokenEncoding != nil {
		return len(tikTokenEncoding.Encode(s, nil, nil))
	}
	return len(strings.Fields(s))
}

// ChunkText splits extracted PDF text into chunks of roughly
// chunkTargetTokens cl100k_base tokens on sentence boundaries where
// possible, falling back to word boundaries within an over-long sentence.
// It never splits mid-word.
func ChunkText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	units := splitUnits(text)

	var chunks []string
	var b strings.Builder
	tokenCount := 0
	for _, u := range units {
		uTokens := CountTokens(u)
		if b.Len() > 0 && tokenCount+uTokens > chunkTargetTokens {
			chunks = append(chunks, strings.TrimSpace(b.String()))
			b.Reset()
			tokenCount = 0
		}
		if uTokens > chunkTargetTokens {
			for _, w := range strings.Fields(u) {
				wTokens := CountTokens(w)
				if tokenCount+wTokens > chunkTargetTokens && b.Len() > 0 {
					chunks = append(chunks, strings.TrimSpace(b.String()))
					b.Reset()
					tokenCount = 0
				}
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(w)
				tokenCount += wTokens
			}
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(u)
		tokenCount += uTokens
	}
	if b.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(b.String()))
	}
	return chunks
}

// splitUnits breaks text into sentences when the bundled tokenizer trained
// correctly, otherwise falls back to a naive period split.
func splitUnits(text string) []string {
	if sentenceTokenizer != nil {
		sents := sentenceTokenizer.Tokenize(text)
		if len(sents) > 0 {
			out := make([]string, len(sents))
			for i, s := range sents {
				out[i] = strings.TrimSpace(s.Text)
			}
			return out
		}
	}
	return strings.Split(text, ". ")
}

// ChunkHeader builds the provenance header prefixed to every chunk before
// it is indexed: "### DOC: <filename> (Part i/N)\nCourse: <subject>\n\n".
func ChunkHeader(filename string, partIndex, total int, subject string) string {
	return fmt.Sprintf("### DOC: %s (Part %d/%d)\nCourse: %s\n\n", filename, partIndex+1, total, subject)
}
