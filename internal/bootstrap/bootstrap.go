// Package bootstrap turns a validated configuration into the running pipeline and its front-end services.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/chat"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/customHttpClient"
	"github.com/akolanti/docqa/internal/data/redisStore"
	"github.com/akolanti/docqa/internal/data/store"
	"github.com/akolanti/docqa/internal/domain/chatModel"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/handlers"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/docqa/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/internal/rag/llm/gemini"
	"github.com/akolanti/docqa/internal/rag/llm/openaiLLM"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/internal/rag/vectorDB/localDB"
	"github.com/akolanti/docqa/internal/rag/vectorDB/pgvectorDB"
	"github.com/akolanti/docqa/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/docqa/pkg/logger_i"
)

var logger = logger_i.NewLogger("bootstrap")

type App struct {
	Config *config.Config
	Handle *rag.Handle
	Store  vectorDB.Store
}

// NewApp checks the credential first, then wires providers and the vector store. The index is not touched.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	embedder, generator, err := NewProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	vectorStore, err := NewVectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	handle, err := rag.NewHandle(cfg, rag.Deps{Embedder: embedder, Generator: generator, Store: vectorStore})
	if err != nil {
		_ = vectorStore.Close()
		return nil, err
	}
	logger.Info("pipeline wired", "provider", cfg.Provider.Name, "backend", cfg.Index.Backend, "collection", cfg.Index.Collection)
	return &App{Config: cfg, Handle: handle, Store: vectorStore}, nil
}

func NewProviders(ctx context.Context, cfg *config.Config) (embedding.Embedder, llm.Provider, error) {
	key, err := cfg.APIKey()
	if err != nil {
		return nil, nil, err
	}
	p := cfg.Provider
	httpClient := customHttpClient.Shared(p.Timeout)

	switch p.Name {
	case config.ProviderOpenAI:
		embedder := openaiEmbedding.NewOpenAIEmbedder(openaiEmbedding.Options{
			APIKey:     key,
			BaseURL:    p.BaseURL,
			Model:      p.EmbeddingModel,
			Dimension:  p.EmbeddingDimension,
			BatchSize:  p.EmbeddingBatchSize,
			MaxRetries: p.MaxRetries,
			HTTPClient: httpClient,
		})
		generator := openaiLLM.NewOpenAIClient(openaiLLM.Options{
			APIKey:      key,
			BaseURL:     p.BaseURL,
			Model:       p.GenerationModel,
			Temperature: p.Temperature,
			HTTPClient:  httpClient,
		})
		return embedder, generator, nil

	case config.ProviderGoogle:
		embedder, err := googleEmbedding.GetGoogleEmbeddingClient(ctx, googleEmbedding.Options{
			APIKey:            key,
			BaseURL:           p.BaseURL,
			Model:             p.EmbeddingModel,
			Dimension:         p.EmbeddingDimension,
			BatchSize:         p.EmbeddingBatchSize,
			Concurrency:       p.EmbeddingConcurrency,
			RequestsPerSecond: p.RequestsPerSecond,
			MaxRetries:        p.MaxRetries,
			HTTPClient:        httpClient,
		})
		if err != nil {
			return nil, nil, ragErrors.Config("embedding client", err)
		}
		generator, err := gemini.GetGeminiClient(ctx, gemini.Options{
			APIKey:      key,
			BaseURL:     p.BaseURL,
			Model:       p.GenerationModel,
			Temperature: p.Temperature,
			HTTPClient:  httpClient,
		})
		if err != nil {
			return nil, nil, ragErrors.Config("generation client", err)
		}
		return embedder, generator, nil
	}
	return nil, nil, ragErrors.Config("providers", fmt.Errorf("unknown provider %q", p.Name))
}

func NewVectorStore(ctx context.Context, cfg *config.Config) (vectorDB.Store, error) {
	switch cfg.Index.Backend {
	case config.BackendLocal:
		return localDB.NewLocalStore(), nil
	case config.BackendQdrant:
		q := cfg.Index.Qdrant
		s, err := qdrantDB.GetQdrantStore(ctx, qdrantDB.Options{
			Host:     q.Host,
			Port:     q.Port,
			UseTLS:   q.UseTLS,
			PoolSize: uint(max(q.PoolSize, 1)),
			APIKey:   strings.TrimSpace(os.Getenv(q.APIKeyEnv)),
		})
		if err != nil {
			return nil, ragErrors.Index("connect qdrant", err)
		}
		return s, nil
	case config.BackendPgvector:
		s, err := pgvectorDB.GetPgvectorStore(ctx, cfg.Index.Location)
		if err != nil {
			return nil, ragErrors.Index("connect postgres", err)
		}
		return s, nil
	}
	return nil, ragErrors.Config("vector store", fmt.Errorf("unknown backend %q", cfg.Index.Backend))
}

// IndexState reports whether the configured collection is published. It needs no credential
// and dials only the vector store.
func IndexState(ctx context.Context, cfg *config.Config) (rag.State, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	vectorStore, err := NewVectorStore(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer vectorStore.Close()

	exists, err := vectorStore.Exists(ctx, vectorDB.CollectionSpec{
		Name:           cfg.Index.Collection,
		Location:       cfg.Index.Location,
		Dimension:      cfg.Provider.EmbeddingDimension,
		Metric:         cfg.Index.Metric,
		EmbeddingModel: cfg.Provider.EmbeddingModel,
	})
	if err != nil {
		return "", ragErrors.Index("check index", err)
	}
	if exists {
		return rag.StateBuilt, nil
	}
	return rag.StateNotBuilt, nil
}

// NewSessionStore picks the in-memory store unless Redis is configured.
func NewSessionStore(ctx context.Context, cfg *config.Config) (chatModel.SessionStore, error) {
	if cfg.Sessions.Store != config.SessionStoreRedis {
		return store.InitInMemorySessionStore(), nil
	}
	s, err := store.GetRedisSessionStore(ctx, redisStore.Options{
		Addr: cfg.Sessions.RedisAddr,
		DB:   cfg.Sessions.RedisDB,
	}, cfg.Sessions.TTL)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	return s, nil
}

// ChatService answers through p and keeps turns in the configured session store.
func (a *App) ChatService(ctx context.Context, p rag.Pipeline) (*chat.Service, error) {
	sessions, err := NewSessionStore(ctx, a.Config)
	if err != nil {
		return nil, err
	}
	return chat.InitChatService(chat.ServiceConfig{
		Pipeline:     p,
		Store:        sessions,
		HistoryLimit: a.Config.Sessions.HistoryLimit,
	}), nil
}

// Readiness reports BUILT only after the pipeline has been obtained.
func (a *App) Readiness(p rag.Pipeline) handlers.ReadinessFunc {
	return func(ctx context.Context) (api.HealthResponse, error) {
		state, err := a.Handle.State(ctx)
		if err != nil {
			return api.HealthResponse{}, err
		}
		if state != rag.StateBuilt || p == nil {
			return api.HealthResponse{}, ragErrors.Index("readiness", ragErrors.ErrNotBuilt)
		}
		return api.HealthResponse{
			Status:     "ok",
			IndexState: string(state),
			Collection: a.Config.Index.Collection,
			Chunks:     p.Manifest().Count,
		}, nil
	}
}

func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	if err := a.Store.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
