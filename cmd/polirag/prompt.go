package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xbiel/polirag/internal/document"
	"github.com/0xbiel/polirag/internal/llm"
	"github.com/0xbiel/polirag/internal/rag"
)

const systemPromptPreamble = "You are a helpful assistant answering questions about a student's " +
	"university courses. Answer using only the context below when it is relevant; say so plainly " +
	"when it isn't, instead of guessing."

// buildMessages retrieves up to topK snippets for question, assembles a
// system prompt grounding the assistant in them, and appends any prior
// conversation turns plus the new question.
func buildMessages(ctx context.Context, system *rag.System, topK int, history []llm.Message, question string) ([]llm.Message, int, error) {
	snippets, err := system.SearchSnippets(ctx, question, document.DefaultUserID, topK)
	if err != nil {
		return nil, 0, fmt.Errorf("search snippets: %w", err)
	}

	var b strings.Builder
	b.WriteString(systemPromptPreamble)
	if len(snippets) > 0 {
		b.WriteString("\n\nContext:\n")
		for _, s := range snippets {
			fmt.Fprintf(&b, "\n[%s] (score %.2f)\n%s\n", s.SourceLabel, s.Score, s.Text)
		}
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: b.String()})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})
	return messages, len(snippets), nil
}
