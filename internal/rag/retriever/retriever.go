package retriever

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
)

// Retriever embeds a question and returns the k closest chunks. Nothing is cached between calls.
type Retriever struct {
	embedder embedding.Embedder
	index    vectorDB.Index
	k        int
	logger   *logger_i.Logger
}

func New(embedder embedding.Embedder, index vectorDB.Index, k int) (*Retriever, error) {
	if k < 1 {
		return nil, ragErrors.Config("retriever", fmt.Errorf("k must be at least 1, got %d", k))
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		k:        k,
		logger:   logger_i.NewLogger("Retriever"),
	}, nil
}

func (r *Retriever) Retrieve(ctx context.Context, query string) ([]commonModels.Match, error) {
	loggr := r.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	vector, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, ragErrors.Embedding("embed query", err)
	}

	matches, err := r.search(ctx, vector)
	if err != nil {
		return nil, ragErrors.Index("query index", err)
	}
	loggr.Debug("retrieved chunks", "requested", r.k, "found", len(matches))
	return matches, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	return r.embedder.GetEmbedding(ctx, query)
}

func (r *Retriever) search(ctx context.Context, vector []float32) ([]commonModels.Match, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	return r.index.Query(ctx, vector, r.k)
}
