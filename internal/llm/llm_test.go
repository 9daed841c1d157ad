package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatReturnsContentAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, float32(0.7), req.Temperature)

		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: Message{Role: RoleAssistant, Content: "hello there"}}},
			Usage:   &Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-model")
	content, usage, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello there", content)
	require.NotNil(t, usage)
	assert.Equal(t, 5, usage.TotalTokens)
}

func TestChatPropagatesBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{{Message: Message{Content: "ok"}}}})
	}))
	defer srv.Close()

	c := New(srv.URL, "m", WithAPIKey("secret-key"))
	_, _, err := c.Chat(context.Background(), nil)
	require.NoError(t, err)
}

func TestChatSetsOpenRouterHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("HTTP-Referer"))
		assert.NotEmpty(t, r.Header.Get("X-Title"))
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{{Message: Message{Content: "ok"}}}})
	}))
	defer srv.Close()

	c := New(srv.URL, "m", WithAPIKey("k"), WithOpenRouterHeaders())
	_, _, err := c.Chat(context.Background(), nil)
	require.NoError(t, err)
}

func TestChatErrorsOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL, "m")
	_, _, err := c.Chat(context.Background(), nil)
	assert.Error(t, err)
}

func writeSSE(w http.ResponseWriter, lines ...string) {
	fw := bufio.NewWriter(w)
	for _, l := range lines {
		fmt.Fprintf(fw, "data: %s\n", l)
	}
	fw.Flush()
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func TestChatStreamDeliversContentThenUsageThenDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk1, _ := json.Marshal(streamChunk{Choices: []streamChoice{{Delta: streamDelta{Content: "Hel"}}}})
		chunk2, _ := json.Marshal(streamChunk{Choices: []streamChoice{{Delta: streamDelta{Content: "lo"}}}})
		chunk3, _ := json.Marshal(streamChunk{Usage: &Usage{TotalTokens: 9}})
		writeSSE(w, string(chunk1), string(chunk2), string(chunk3), doneSentinel)
	}))
	defer srv.Close()

	c := New(srv.URL, "m")
	events, err := c.ChatStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	var content string
	var sawUsage bool
	for ev := range events {
		switch ev.Kind {
		case StreamEventContent:
			content += ev.Content
		case StreamEventUsage:
			sawUsage = true
			assert.Equal(t, 9, ev.Usage.TotalTokens)
		}
	}
	assert.Equal(t, "Hello", content)
	assert.True(t, sawUsage)
}

func TestChatStreamStopsOnCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 1000; i++ {
			chunk, _ := json.Marshal(streamChunk{Choices: []streamChoice{{Delta: streamDelta{Content: "x"}}}})
			writeSSE(w, string(chunk))
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(srv.URL, "m")
	events, err := c.ChatStream(ctx, nil)
	require.NoError(t, err)

	<-events
	cancel()
	for range events {
		// drain until the goroutine observes cancellation and closes the channel
	}
}

func TestListModelsParsesContextLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_ = json.NewEncoder(w).Encode(modelListResponse{Data: []rawModelInfo{
			{ID: "model-a", ContextLength: intPtr(8192)},
			{ID: "model-b"},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, "model-a")
	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, 8192, models[0].ContextLength)
}

func TestContextWindowForFallsBackWhenUnreported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(modelListResponse{Data: []rawModelInfo{{ID: "model-b"}}})
	}))
	defer srv.Close()

	c := New(srv.URL, "model-b")
	assert.Equal(t, fallbackContextWindow, c.ContextWindowFor(context.Background(), "model-b"))
	assert.Equal(t, fallbackContextWindow, c.ContextWindowFor(context.Background(), "unknown-model"))
}

func TestContextWindowForReturnsReportedValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(modelListResponse{Data: []rawModelInfo{{ID: "model-c", ContextLength: intPtr(128000)}}})
	}))
	defer srv.Close()

	c := New(srv.URL, "model-c")
	assert.Equal(t, 128000, c.ContextWindowFor(context.Background(), "model-c"))
}

func intPtr(i int) *int { return &i }
