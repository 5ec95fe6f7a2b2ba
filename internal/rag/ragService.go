package rag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/internal/rag/ingest"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/internal/rag/prompt"
	"github.com/akolanti/docqa/internal/rag/retriever"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
	"golang.org/x/sync/singleflight"
)

/*
Handle is the once-initialised entry point of the pipeline.

  - NewHandle validates configuration only. Nothing is read, embedded or dialled.
  - Get decides between the two index states. NOT_BUILT ingests, splits, embeds and
    builds; BUILT opens the persisted collection without touching the document.
  - Concurrent first calls share one build through singleflight. A failed build is
    not remembered, the next Get tries again.
  - Pipeline is the opaque contract the front ends use; the private struct behind it
    holds the retriever, the prompt renderer and the generator.
*/

type State string

const (
	StateNotBuilt State = "NOT_BUILT"
	StateBuilt    State = "BUILT"
)

// Loader reads the source document into pages. ingest.Load is the default.
type Loader func(ctx context.Context, path string) (commonModels.Document, []commonModels.PageUnit, error)

type Deps struct {
	Embedder  embedding.Embedder
	Generator llm.Provider
	Store     vectorDB.Store
	Loader    Loader
}

type Answer struct {
	Text    string
	Sources []commonModels.Match
}

// Pipeline answers questions against a built or opened index.
type Pipeline interface {
	Answer(ctx context.Context, question string) (string, error)
	Ask(ctx context.Context, question string) (Answer, error)
	Refusal() string
	Manifest() vectorDB.Manifest
}

type Handle struct {
	document string
	spec     vectorDB.CollectionSpec
	split    ingest.SplitOptions
	k        int
	timeout  time.Duration
	renderer *prompt.Renderer
	deps     Deps

	group    singleflight.Group
	mu       sync.Mutex
	pipeline Pipeline
	logger   *logger_i.Logger
}

func NewHandle(cfg *config.Config, deps Deps) (*Handle, error) {
	if cfg == nil {
		return nil, ragErrors.Config("new handle", errors.New("configuration is required"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Embedder == nil || deps.Generator == nil || deps.Store == nil {
		return nil, ragErrors.Config("new handle", errors.New("embedder, generator and store are required"))
	}
	if deps.Loader == nil {
		deps.Loader = ingest.Load
	}
	if dim := deps.Embedder.Dimension(); dim != cfg.Provider.EmbeddingDimension {
		return nil, ragErrors.Config("new handle", fmt.Errorf("%w: embedder produces %d, provider.embedding_dimension is %d",
			ragErrors.ErrDimensionMismatch, dim, cfg.Provider.EmbeddingDimension))
	}

	renderer, err := prompt.New(cfg.Prompt.Template, cfg.Prompt.Refusal)
	if err != nil {
		return nil, ragErrors.Config("prompt", err)
	}

	return &Handle{
		document: cfg.Document.Path,
		spec: vectorDB.CollectionSpec{
			Name:           cfg.Index.Collection,
			Location:       cfg.Index.Location,
			Dimension:      deps.Embedder.Dimension(),
			Metric:         cfg.Index.Metric,
			EmbeddingModel: deps.Embedder.ModelName(),
		},
		split: ingest.SplitOptions{
			Strategy:       cfg.Splitter.Strategy,
			ChunkSize:      cfg.Splitter.ChunkSize,
			Overlap:        cfg.Splitter.ChunkOverlap,
			EmbeddingModel: deps.Embedder.ModelName(),
		},
		k:        cfg.Retrieval.K,
		timeout:  cfg.Provider.Timeout,
		renderer: renderer,
		deps:     deps,
		logger:   logger_i.NewLogger("RAG Service"),
	}, nil
}

func (h *Handle) Spec() vectorDB.CollectionSpec {
	return h.spec
}

// State reports whether the collection is already published at the configured location.
func (h *Handle) State(ctx context.Context) (State, error) {
	exists, err := h.deps.Store.Exists(ctx, h.spec)
	if err != nil {
		return "", ragErrors.Index("check index", err)
	}
	if exists {
		return StateBuilt, nil
	}
	return StateNotBuilt, nil
}

func (h *Handle) current() Pipeline {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pipeline
}

// Get returns the pipeline, building or opening the index on the first successful call.
func (h *Handle) Get(ctx context.Context) (Pipeline, error) {
	if p := h.current(); p != nil {
		return p, nil
	}

	v, err, _ := h.group.Do(h.spec.Location+"|"+h.spec.Name, func() (any, error) {
		if p := h.current(); p != nil {
			return p, nil
		}
		p, err := h.buildOrOpen(ctx)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.pipeline = p
		h.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Pipeline), nil
}

func (h *Handle) buildOrOpen(ctx context.Context) (Pipeline, error) {
	loggr := h.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "collection", h.spec.Name)

	state, err := h.State(ctx)
	if err != nil {
		return nil, err
	}
	loggr.Info("index state", "state", state, "location", h.spec.Location)

	var index vectorDB.Index
	if state == StateBuilt {
		index, err = h.deps.Store.Open(ctx, h.spec)
		if err != nil {
			return nil, ragErrors.Index("open index", err)
		}
	} else {
		index, err = h.build(ctx, loggr)
		if err != nil {
			return nil, err
		}
	}
	metrics.SetIndexBuilt(h.spec.Name, index.Manifest().Count)

	r, err := retriever.New(h.deps.Embedder, index, h.k)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		retriever: r,
		renderer:  h.renderer,
		generator: h.deps.Generator,
		manifest:  index.Manifest(),
		timeout:   h.timeout,
		logger:    h.logger,
	}, nil
}

func (h *Handle) build(ctx context.Context, loggr *logger_i.Logger) (vectorDB.Index, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("index_build", time.Since(start)) }()

	if _, err := os.Stat(h.document); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ragErrors.ErrDocumentNotFound, h.document)
		}
		return nil, ragErrors.Config("document", err)
	}

	chunks, err := h.executeIngestStep(ctx, loggr)
	if err != nil {
		return nil, err
	}

	vectors, err := h.executeEmbeddingStep(ctx, loggr, chunks)
	if err != nil {
		return nil, ragErrors.Embedding("embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return nil, ragErrors.Embedding("embed chunks", fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	records := make([]commonModels.IndexRecord, len(chunks))
	for i := range chunks {
		records[i] = commonModels.IndexRecord{Chunk: chunks[i], Vector: vectors[i]}
	}

	index, err := h.executeStoreStep(ctx, loggr, records)
	if errors.Is(err, ragErrors.ErrAlreadyBuilt) {
		loggr.Info("collection was published by another builder, opening it")
		index, err = h.deps.Store.Open(ctx, h.spec)
	}
	if err != nil {
		return nil, ragErrors.Index("build index", err)
	}
	return index, nil
}

type pipeline struct {
	retriever *retriever.Retriever
	renderer  *prompt.Renderer
	generator llm.Provider
	manifest  vectorDB.Manifest
	timeout   time.Duration
	logger    *logger_i.Logger
}

func (p *pipeline) Manifest() vectorDB.Manifest {
	return p.manifest
}

func (p *pipeline) Refusal() string {
	return p.renderer.Refusal()
}

// Answer returns the generator's raw text.
func (p *pipeline) Answer(ctx context.Context, question string) (string, error) {
	a, err := p.Ask(ctx, question)
	if err != nil {
		return "", err
	}
	return a.Text, nil
}

// Ask runs retrieve, render and generate. Provider errors keep their kind; there is no fallback answer.
func (p *pipeline) Ask(ctx context.Context, question string) (Answer, error) {
	start := time.Now()
	status := "error"
	defer func() { metrics.CaptureAnswerMetrics(status, time.Since(start)) }()

	if strings.TrimSpace(question) == "" {
		status = "rejected"
		return Answer{}, ragErrors.ErrEmptyQuestion
	}
	loggr := p.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	matches, err := p.executeRetrievalStep(ctx, loggr, question)
	if err != nil {
		return Answer{}, err
	}

	rendered, err := p.renderer.Render(matches, question)
	if err != nil {
		return Answer{}, ragErrors.Config("render prompt", err)
	}

	text, err := p.executeLLMStep(ctx, loggr, rendered)
	if err != nil {
		return Answer{}, ragErrors.Generation("generate answer", err)
	}

	status = "ok"
	if text == p.renderer.Refusal() {
		status = "refused"
	}
	return Answer{Text: text, Sources: matches}, nil
}
