package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/0xbiel/polirag/internal/config"
	"github.com/0xbiel/polirag/internal/embedding"
	"github.com/0xbiel/polirag/internal/ingestion"
	"github.com/0xbiel/polirag/internal/llm"
	"github.com/0xbiel/polirag/internal/logging"
	"github.com/0xbiel/polirag/internal/portal"
	"github.com/0xbiel/polirag/internal/rag"
	"github.com/0xbiel/polirag/internal/vectorstore"
)

// app bundles every wired component a subcommand needs. It is built once per
// invocation in root.go's PersistentPreRunE and torn down in
// PersistentPostRunE.
type app struct {
	cfg          *config.Config
	system       *rag.System
	store        vectorstore.Store
	embedder     embedding.Embedder
	portalClient *portal.Client
	orchestrator *ingestion.Orchestrator
	llm          *llm.Client
	logger       *slog.Logger
}

// newApp loads configuration, picks an embedder, opens (or migrates) the
// vector store, and wires the RAG system, portal client, and ingestion
// orchestrator around them. providerOverride/modelOverride come from the
// --provider/--model flags and take precedence over the persisted config.
func newApp(ctx context.Context, providerOverride, modelOverride string) (*app, error) {
	logger := logging.Named("cli")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if providerOverride != "" {
		cfg.LlmProvider = config.LlmProvider(providerOverride)
	}
	if modelOverride != "" {
		cfg.OpenRouterModel = modelOverride
	}

	embedder, err := buildEmbedder(logger)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	store, backend, err := buildStore(ctx, embedder.Dimensions(), logger)
	if err != nil {
		return nil, fmt.Errorf("build vector store: %w", err)
	}

	modelName := "local-gguf"
	if _, ok := embedder.(*embedding.RemoteEmbedder); ok {
		modelName = "remote-embedding"
	}
	system := rag.NewSystem(embedder, store, backend, modelName)

	portalClient, err := portal.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("start portal client: %w", err)
	}

	orchestrator, err := ingestion.New(system, portalClient, cfg)
	if err != nil {
		portalClient.Close()
		return nil, fmt.Errorf("build ingestion orchestrator: %w", err)
	}

	return &app{
		cfg:          cfg,
		system:       system,
		store:        store,
		embedder:     embedder,
		portalClient: portalClient,
		orchestrator: orchestrator,
		llm:          buildLLMClient(cfg),
		logger:       logger,
	}, nil
}

// Close releases the browser process and the underlying vector store/model.
func (a *app) Close() {
	if a.portalClient != nil {
		a.portalClient.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close vector store", "error", err)
		}
	}
	if local, ok := a.embedder.(*embedding.LocalEmbedder); ok {
		local.Close()
	}
}

// buildEmbedder extracts and loads the bundled local GGUF model, falling
// back to a hosted OpenAI-compatible embeddings endpoint only when the
// native llama.cpp bindings can't be loaded at all (missing shared library,
// unsupported CPU) and an API key is available to reach one.
func buildEmbedder(logger *slog.Logger) (embedding.Embedder, error) {
	dir, err := config.AppDataDir()
	if err != nil {
		return nil, err
	}

	local, err := embedding.NewDefaultEmbedder(dir)
	if err == nil {
		return local, nil
	}
	logger.Warn("local embedding model unavailable, falling back to remote", "error", err)

	apiKey := firstNonEmptyEnv("POLIRAG_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("no local embedder and no remote API key configured: %w", err)
	}
	return embedding.NewRemoteEmbedder(apiKey, "", remoteEmbeddingDimensions), nil
}

// remoteEmbeddingDimensions is the width of the hosted fallback model
// (OpenAI's text-embedding-3-small), used only when the local GGUF model
// can't be loaded at all.
const remoteEmbeddingDimensions = 1536

// buildStore picks between the linear and approximate backends: it migrates
// a linear documents blob to an HNSW graph the first time one is found
// without a graph artifact alongside it, loads an existing graph if one is
// already there, and otherwise opens (or creates) the linear store.
func buildStore(ctx context.Context, dims int, logger *slog.Logger) (vectorstore.Store, vectorstore.Backend, error) {
	dataDir, err := config.AppDataDir()
	if err != nil {
		return nil, "", err
	}
	indexPath, err := config.IndexPath()
	if err != nil {
		return nil, "", err
	}
	graphPath := vectorstore.GraphPath(dataDir)

	if vectorstore.NeedsMigration(indexPath, graphPath) {
		logger.Info("documents blob found without an hnsw graph, migrating")
		linear, err := vectorstore.NewLinearStore(indexPath)
		if err != nil {
			return nil, "", err
		}
		hnsw := vectorstore.NewHNSWStore(dims, vectorstore.DefaultHNSWConfig(), dataDir)
		n, err := vectorstore.MigrateLinearToHNSW(ctx, linear, hnsw)
		if err != nil {
			logger.Warn("migration to hnsw failed, staying on linear backend", "error", err)
			return linear, vectorstore.BackendLinear, nil
		}
		logger.Info("migrated to hnsw", "documents", n)
		return hnsw, vectorstore.BackendHNSW, nil
	}

	if hnsw, ok, err := vectorstore.LoadHNSWStore(dataDir); err != nil {
		logger.Warn("failed to load existing hnsw graph, starting empty", "error", err)
	} else if ok {
		return hnsw, vectorstore.BackendHNSW, nil
	}

	linear, err := vectorstore.NewLinearStore(indexPath)
	if err != nil {
		return nil, "", err
	}
	return linear, vectorstore.BackendLinear, nil
}

// buildLLMClient configures an OpenAI-compatible chat client for the
// provider currently selected in cfg, defaulting to a local LM Studio server.
func buildLLMClient(cfg *config.Config) *llm.Client {
	provider := cfg.LlmProvider
	if provider == "" {
		provider = config.LlmProviderLmStudio
	}

	model := cfg.OpenRouterModel
	if model == "" {
		model = cfg.GetLastModel()
	}
	if model == "" {
		model = defaultModelFor(provider)
	}

	var opts []llm.Option
	switch provider {
	case config.LlmProviderOpenRouter:
		key := cfg.OpenRouterAPIKey
		if key == "" {
			key = firstNonEmptyEnv("OPENROUTER_API_KEY")
		}
		opts = append(opts, llm.WithAPIKey(key), llm.WithOpenRouterHeaders())
	default:
		if key := firstNonEmptyEnv("POLIRAG_LLM_API_KEY"); key != "" {
			opts = append(opts, llm.WithAPIKey(key))
		}
	}

	return llm.New(provider.BaseURL(), model, opts...)
}

func defaultModelFor(provider config.LlmProvider) string {
	if provider == config.LlmProviderOpenRouter {
		return "openai/gpt-4o-mini"
	}
	return "local-model"
}

func firstNonEmptyEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
