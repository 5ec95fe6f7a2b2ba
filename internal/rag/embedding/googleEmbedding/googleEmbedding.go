package googleEmbedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/pkg/logger_i"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

var logger = logger_i.NewLogger("google_embedding")

// embedAPI is the slice of genai.Models this package calls.
type embedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Options struct {
	APIKey            string
	BaseURL           string
	Model             string
	Dimension         int
	BatchSize         int
	Concurrency       int
	RequestsPerSecond float64
	MaxRetries        int
	HTTPClient        *http.Client
}

type client struct {
	api         embedAPI
	model       string
	dimension   int32
	batchSize   int
	concurrency int
	maxRetries  int
	backoff     time.Duration
	limiter     *rate.Limiter
}

func GetGoogleEmbeddingClient(ctx context.Context, opts Options) (embedding.Embedder, error) {
	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		logger.Error("Error creating Google Embedding client", "error", err)
		return nil, fmt.Errorf("google embedding client: %w", err)
	}
	logger.Info("Google Embedding client created", "model", opts.Model, "dimension", opts.Dimension)
	return newClient(c.Models, opts), nil
}

func newClient(api embedAPI, opts Options) *client {
	if opts.BatchSize <= 0 {
		opts.BatchSize = config.EmbeddingBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &client{
		api:         api,
		model:       opts.Model,
		dimension:   int32(opts.Dimension),
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		maxRetries:  opts.MaxRetries,
		backoff:     time.Second,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

func (c *client) ModelName() string { return c.model }

func (c *client) Dimension() int { return int(c.dimension) }

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	vectors, err := c.embedBatch(ctx, []string{query}, taskQuery)
	if err != nil {
		log.Error("Error getting query embedding from Google", "error", err)
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "chunks", len(chunks))
	log.Debug("starting batch embedding", "batchSize", c.batchSize, "concurrency", c.concurrency)

	vectors, err := c.embedAll(ctx, chunks)
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err)
		return nil, err
	}
	return vectors, nil
}

func (c *client) doCall(ctx context.Context, content []*genai.Content, task string) (*genai.EmbedContentResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	cfg := &genai.EmbedContentConfig{TaskType: task}
	if c.dimension > 0 {
		cfg.OutputDimensionality = genai.Ptr(c.dimension)
	}
	return c.api.EmbedContent(ctx, c.model, content, cfg)
}
