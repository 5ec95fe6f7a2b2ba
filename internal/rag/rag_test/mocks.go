package rag_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
)

var vocabulary = []string{"purchase", "order", "transaction", "abap", "report", "invoice"}

func bagOfWords(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(vocabulary))
	for i, w := range vocabulary {
		v[i] = float32(strings.Count(lower, w))
	}
	return v
}

// MockEmbedder implements embedding.Embedder over a fixed keyword vocabulary.
type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string) ([][]float32, error)

	QueryCalls atomic.Int32
	BatchCalls atomic.Int32
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.QueryCalls.Add(1)
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, text)
	}
	return bagOfWords(text), nil
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	m.BatchCalls.Add(1)
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks)
	}
	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		out[i] = bagOfWords(c)
	}
	return out, nil
}

func (m *MockEmbedder) ModelName() string { return "mock-embed" }
func (m *MockEmbedder) Dimension() int    { return len(vocabulary) }

// MockLLM implements llm.Provider
type MockLLM struct {
	OnGenerate func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	Prompts []string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, prompt)
	}
	return "mocked llm response", nil
}

func (m *MockLLM) ModelName() string { return "mock-llm" }

func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// MockStore implements vectorDB.Store and records every call.
type MockStore struct {
	OnExists func(ctx context.Context, spec vectorDB.CollectionSpec) (bool, error)
	OnBuild  func(ctx context.Context, spec vectorDB.CollectionSpec, records []commonModels.IndexRecord) (vectorDB.Index, error)
	OnOpen   func(ctx context.Context, spec vectorDB.CollectionSpec) (vectorDB.Index, error)

	Calls atomic.Int32
}

func (m *MockStore) Exists(ctx context.Context, spec vectorDB.CollectionSpec) (bool, error) {
	m.Calls.Add(1)
	if m.OnExists != nil {
		return m.OnExists(ctx, spec)
	}
	return false, nil
}

func (m *MockStore) Build(ctx context.Context, spec vectorDB.CollectionSpec, records []commonModels.IndexRecord) (vectorDB.Index, error) {
	m.Calls.Add(1)
	if m.OnBuild != nil {
		return m.OnBuild(ctx, spec, records)
	}
	return &MockIndex{Records: records, Spec: spec}, nil
}

func (m *MockStore) Open(ctx context.Context, spec vectorDB.CollectionSpec) (vectorDB.Index, error) {
	m.Calls.Add(1)
	if m.OnOpen != nil {
		return m.OnOpen(ctx, spec)
	}
	return &MockIndex{Spec: spec}, nil
}

func (m *MockStore) Close() error { return nil }

// MockIndex scores by cosine over whatever records it was built with.
type MockIndex struct {
	Spec    vectorDB.CollectionSpec
	Records []commonModels.IndexRecord
	OnQuery func(ctx context.Context, vector []float32, k int) ([]commonModels.Match, error)
}

func (m *MockIndex) Query(ctx context.Context, vector []float32, k int) ([]commonModels.Match, error) {
	if m.OnQuery != nil {
		return m.OnQuery(ctx, vector, k)
	}
	score, err := vectorDB.Similarity(m.Spec.Metric)
	if err != nil {
		return nil, err
	}
	return vectorDB.TopK(m.Records, vector, k, score), nil
}

func (m *MockIndex) Manifest() vectorDB.Manifest {
	return vectorDB.NewManifest(m.Spec, len(m.Records))
}

// MockLoader returns fixed pages without reading the document.
type MockLoader struct {
	Pages []string
	Err   error
	Calls atomic.Int32
}

func (m *MockLoader) Load(_ context.Context, path string) (commonModels.Document, []commonModels.PageUnit, error) {
	m.Calls.Add(1)
	if m.Err != nil {
		return commonModels.Document{}, nil, m.Err
	}
	pages := make([]commonModels.PageUnit, len(m.Pages))
	for i, p := range m.Pages {
		pages[i] = commonModels.PageUnit{PageNum: i + 1, Text: p}
	}
	doc := commonModels.Document{
		Id:          "doc-1",
		Name:        "notes.pdf",
		Path:        path,
		Checksum:    "0123456789abcdef",
		ContentType: commonModels.PDF,
	}
	return doc, pages, nil
}
