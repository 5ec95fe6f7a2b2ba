package googleEmbedding

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"google.golang.org/genai"
)

type fakeEmbedAPI struct {
	OnEmbedContent func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

func (f *fakeEmbedAPI) EmbedContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	return f.OnEmbedContent(ctx, model, contents, cfg)
}

// vector encodes the text length so tests can check ordering
func echoResponse(contents []*genai.Content, dim int) *genai.EmbedContentResponse {
	res := &genai.EmbedContentResponse{}
	for _, c := range contents {
		v := make([]float32, dim)
		v[0] = float32(len(c.Parts[0].Text))
		res.Embeddings = append(res.Embeddings, &genai.ContentEmbedding{Values: v})
	}
	return res
}

func testClient(api embedAPI, batchSize, concurrency int) *client {
	c := newClient(api, Options{Model: "gemini-embedding-001", Dimension: 4, BatchSize: batchSize, Concurrency: concurrency, MaxRetries: 2})
	c.backoff = time.Millisecond
	return c
}

func TestBatchEmbedding_KeepsOrderAcrossBatches(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var tasks []string
	api := &fakeEmbedAPI{OnEmbedContent: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		calls.Add(1)
		mu.Lock()
		tasks = append(tasks, cfg.TaskType)
		mu.Unlock()
		if len(contents) > 3 {
			t.Errorf("batch of %d exceeds batch size", len(contents))
		}
		if cfg.OutputDimensionality == nil || *cfg.OutputDimensionality != 4 {
			t.Errorf("dimension not forwarded")
		}
		return echoResponse(contents, 4), nil
	}}

	var texts []string
	for i := 1; i <= 10; i++ {
		texts = append(texts, strings.Repeat("x", i))
	}

	vectors, err := testClient(api, 3, 4).BatchEmbedding(context.Background(), texts)
	if err != nil {
		t.Fatalf("BatchEmbedding failed: %v", err)
	}
	if len(vectors) != 10 {
		t.Fatalf("expected 10 vectors, got %d", len(vectors))
	}
	for i, v := range vectors {
		if int(v[0]) != i+1 {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
	if calls.Load() != 4 {
		t.Errorf("expected 4 calls (3+3+3+1), got %d", calls.Load())
	}
	for _, task := range tasks {
		if task != taskDocument {
			t.Errorf("chunks must use %s, got %s", taskDocument, task)
		}
	}
}

func TestGetEmbedding_UsesQueryTask(t *testing.T) {
	api := &fakeEmbedAPI{OnEmbedContent: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		if cfg.TaskType != taskQuery {
			t.Errorf("expected %s, got %s", taskQuery, cfg.TaskType)
		}
		if model != "gemini-embedding-001" {
			t.Errorf("unexpected model %s", model)
		}
		return echoResponse(contents, 4), nil
	}}

	v, err := testClient(api, 10, 1).GetEmbedding(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetEmbedding failed: %v", err)
	}
	if len(v) != 4 || v[0] != 3 {
		t.Errorf("unexpected vector %v", v)
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	api := &fakeEmbedAPI{OnEmbedContent: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		if calls.Add(1) < 3 {
			return nil, genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}
		}
		return echoResponse(contents, 4), nil
	}}

	if _, err := testClient(api, 10, 1).GetEmbedding(context.Background(), "q"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	api := &fakeEmbedAPI{OnEmbedContent: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		calls.Add(1)
		return nil, genai.APIError{Code: http.StatusTooManyRequests}
	}}

	_, err := testClient(api, 10, 1).GetEmbedding(context.Background(), "q")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 1 call + 2 retries, got %d", calls.Load())
	}
}

func TestNoRetryOnOtherErrors(t *testing.T) {
	var calls atomic.Int32
	api := &fakeEmbedAPI{OnEmbedContent: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		calls.Add(1)
		return nil, genai.APIError{Code: http.StatusBadRequest}
	}}

	_, err := testClient(api, 10, 1).BatchEmbedding(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("bad requests must not be retried, got %d calls", calls.Load())
	}
}

func TestDimensionAndCountChecks(t *testing.T) {
	short := &fakeEmbedAPI{OnEmbedContent: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		return echoResponse(contents, 2), nil
	}}
	_, err := testClient(short, 10, 1).BatchEmbedding(context.Background(), []string{"a"})
	if !errors.Is(err, ragErrors.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}

	missing := &fakeEmbedAPI{OnEmbedContent: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		return echoResponse(contents[:1], 4), nil
	}}
	if _, err := testClient(missing, 10, 1).BatchEmbedding(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestEmptyBatch(t *testing.T) {
	api := &fakeEmbedAPI{OnEmbedContent: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		t.Error("no call expected")
		return nil, nil
	}}
	vectors, err := testClient(api, 10, 1).BatchEmbedding(context.Background(), nil)
	if err != nil || len(vectors) != 0 {
		t.Errorf("got %v, %v", vectors, err)
	}
}
