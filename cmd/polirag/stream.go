package main

import (
	"context"
	"fmt"

	"github.com/0xbiel/polirag/internal/llm"
)

// streamAndPrint drives a ChatStream to completion, printing each content
// delta as it arrives, and returns the full assistant reply so callers (chat
// mode) can append it to conversation history.
func streamAndPrint(ctx context.Context, client *llm.Client, messages []llm.Message) (string, error) {
	events, err := client.ChatStream(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("start stream: %w", err)
	}

	var reply string
	for ev := range events {
		switch ev.Kind {
		case llm.StreamEventContent:
			fmt.Print(ev.Content)
			reply += ev.Content
		case llm.StreamEventUsage:
			// Token accounting isn't surfaced to the terminal; the server-side
			// stream has already completed by the time this event arrives.
		}
	}
	fmt.Println()
	return reply, nil
}
