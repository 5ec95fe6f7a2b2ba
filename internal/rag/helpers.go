package rag

import (
	"context"
	"errors"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/ingest"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
)

func (h *Handle) executeIngestStep(ctx context.Context, log *logger_i.Logger) ([]commonModels.DocChunk, error) {
	log.Debug("build", "step", "ingest", "document", h.document)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("ingest", time.Since(start)) }()

	doc, pages, err := h.deps.Loader(ctx, h.document)
	if err != nil {
		return nil, ragErrors.Ingest("load document", err)
	}
	chunks, err := ingest.Split(doc, pages, h.split)
	if err != nil {
		return nil, ragErrors.Ingest("split document", err)
	}
	if len(chunks) == 0 {
		return nil, ragErrors.Ingest("split document", errors.New(doc.Name+" produced no chunks"))
	}
	log.Info("document split", "pages", len(pages), "chunks", len(chunks))
	return chunks, nil
}

func (h *Handle) executeEmbeddingStep(ctx context.Context, log *logger_i.Logger, chunks []commonModels.DocChunk) ([][]float32, error) {
	log.Debug("build", "step", "embedding", "chunks", len(chunks))

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding_batch", time.Since(start)) }()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk
	}
	return h.deps.Embedder.BatchEmbedding(ctx, texts)
}

func (h *Handle) executeStoreStep(ctx context.Context, log *logger_i.Logger, records []commonModels.IndexRecord) (vectorDB.Index, error) {
	log.Debug("build", "step", "store", "records", len(records))

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_store_build", time.Since(start)) }()

	return h.deps.Store.Build(ctx, h.spec, records)
}

func (p *pipeline) executeRetrievalStep(ctx context.Context, log *logger_i.Logger, question string) ([]commonModels.Match, error) {
	log.Debug("Answer", "step", "retrieval")
	return p.retriever.Retrieve(ctx, question)
}

func (p *pipeline) executeLLMStep(ctx context.Context, log *logger_i.Logger, rendered string) (string, error) {
	log.Debug("Answer", "step", "llm", "promptChars", len(rendered))

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	return p.generator.Generate(ctx, rendered)
}
