// Package openaiEmbedding embeds text through any OpenAI compatible /embeddings endpoint.
package openaiEmbedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var logger = logger_i.NewLogger("openai_embedding")

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimension  int
	BatchSize  int
	MaxRetries int
	HTTPClient *http.Client
}

type client struct {
	api       openai.Client
	model     string
	dimension int
	batchSize int
}

func NewOpenAIEmbedder(opts Options) embedding.Embedder {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = config.EmbeddingBatchSize
	}

	logger.Info("OpenAI embedding client created", "model", opts.Model, "dimension", opts.Dimension)
	return &client{
		api:       openai.NewClient(reqOpts...),
		model:     opts.Model,
		dimension: opts.Dimension,
		batchSize: opts.BatchSize,
	}
}

func (c *client) ModelName() string { return c.model }

func (c *client) Dimension() int { return c.dimension }

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "chunks", len(chunks))
	results := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += c.batchSize {
		end := min(start+c.batchSize, len(chunks))
		vectors, err := c.embed(ctx, chunks[start:end])
		if err != nil {
			log.Error("Error getting Embeddings from OpenAI", "batchStart", start, "error", err)
			return nil, fmt.Errorf("batch [%d:%d]: %w", start, end, err)
		}
		results = append(results, vectors...)
	}
	return results, nil
}

func (c *client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          c.model,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if c.dimension > 0 {
		params.Dimensions = openai.Int(int64(c.dimension))
	}

	res, err := c.api.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(res.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(res.Data))
	}

	// the API reports each vector's input position, do not trust response order
	vectors := make([][]float32, len(texts))
	for _, d := range res.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if c.dimension > 0 && len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("%w: want %d, got %d", ragErrors.ErrDimensionMismatch, c.dimension, len(d.Embedding))
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vectors[d.Index] = v
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return vectors, nil
}
