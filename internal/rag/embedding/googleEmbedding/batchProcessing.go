package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/metrics"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))

	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

// doRetry reports whether err is the provider telling us to slow down.
func doRetry(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code == http.StatusServiceUnavailable
	}
	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.ResourceExhausted || s.Code() == codes.Unavailable
	}
	return false
}

// embedAll splits chunks into provider sized batches and embeds them concurrently.
// Each goroutine writes only its own slot range so the output keeps input order.
func (c *client) embedAll(ctx context.Context, chunks []string) ([][]float32, error) {
	results := make([][]float32, len(chunks))
	if len(chunks) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for start := 0; start < len(chunks); start += c.batchSize {
		end := min(start+c.batchSize, len(chunks))
		g.Go(func() error {
			vectors, err := c.embedBatch(gctx, chunks[start:end], taskDocument)
			if err != nil {
				return fmt.Errorf("batch [%d:%d]: %w", start, end, err)
			}
			copy(results[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *client) embedBatch(ctx context.Context, texts []string, task string) ([][]float32, error) {
	content := getContent(texts)

	var res *genai.EmbedContentResponse
	var err error
	for attempt := 0; ; attempt++ {
		res, err = c.doCall(ctx, content, task)
		if err == nil || attempt >= c.maxRetries || !doRetry(err) {
			break
		}
		wait := c.backoff << attempt
		logger.Warn("Rate limit hit, retrying", "attempt", attempt+1, "wait", wait, "error", err)
		metrics.IncrementProviderRetries("google_embedding")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Embeddings) != len(texts) {
		got := 0
		if res != nil {
			got = len(res.Embeddings)
		}
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), got)
	}

	vectors := make([][]float32, 0, len(texts))
	for i, e := range res.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		if c.dimension > 0 && len(e.Values) != int(c.dimension) {
			return nil, fmt.Errorf("%w: want %d, got %d", ragErrors.ErrDimensionMismatch, c.dimension, len(e.Values))
		}
		vectors = append(vectors, e.Values)
	}
	return vectors, nil
}
