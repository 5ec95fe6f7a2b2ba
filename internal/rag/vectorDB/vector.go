package vectorDB

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
)

// CollectionSpec names a collection and the embedding space it is bound to.
// Location is backend specific: a directory, a host:port or a Postgres DSN.
type CollectionSpec struct {
	Name           string
	Location       string
	Dimension      int
	Metric         string
	EmbeddingModel string
}

// Manifest is what a backend persists next to the vectors.
type Manifest struct {
	Collection     string    `json:"collection"`
	Dimension      int       `json:"dimension"`
	Metric         string    `json:"metric"`
	EmbeddingModel string    `json:"embedding_model"`
	Count          int       `json:"count"`
	CreatedAt      time.Time `json:"created_at"`
}

type Index interface {
	// Query returns up to k matches, highest score first.
	Query(ctx context.Context, vector []float32, k int) ([]commonModels.Match, error)
	Manifest() Manifest
}

// Store builds a collection once and reopens it on later runs.
// Build fails with ragErrors.ErrAlreadyBuilt when the collection is already published.
type Store interface {
	Exists(ctx context.Context, spec CollectionSpec) (bool, error)
	Build(ctx context.Context, spec CollectionSpec, records []commonModels.IndexRecord) (Index, error)
	Open(ctx context.Context, spec CollectionSpec) (Index, error)
	Close() error
}

func NewManifest(spec CollectionSpec, count int) Manifest {
	return Manifest{
		Collection:     spec.Name,
		Dimension:      spec.Dimension,
		Metric:         spec.Metric,
		EmbeddingModel: spec.EmbeddingModel,
		Count:          count,
		CreatedAt:      time.Now().UTC(),
	}
}

// CheckManifest rejects opening a collection with a different embedding space.
func CheckManifest(spec CollectionSpec, m Manifest) error {
	if m.Dimension != spec.Dimension {
		return fmt.Errorf("%w: collection %q stores %d, configured %d", ragErrors.ErrDimensionMismatch, spec.Name, m.Dimension, spec.Dimension)
	}
	if m.Metric != spec.Metric {
		return fmt.Errorf("%w: collection %q uses %s, configured %s", ragErrors.ErrMetricMismatch, spec.Name, m.Metric, spec.Metric)
	}
	if m.EmbeddingModel != "" && spec.EmbeddingModel != "" && m.EmbeddingModel != spec.EmbeddingModel {
		return fmt.Errorf("%w: collection %q was built with %s, configured %s", ragErrors.ErrModelMismatch, spec.Name, m.EmbeddingModel, spec.EmbeddingModel)
	}
	return nil
}

// CheckRecords validates a build payload before anything is written.
func CheckRecords(spec CollectionSpec, records []commonModels.IndexRecord) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("collection %q: dimension must be positive", spec.Name)
	}
	if _, err := Similarity(spec.Metric); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if len(r.Vector) != spec.Dimension {
			return fmt.Errorf("%w: record %d has %d, collection expects %d", ragErrors.ErrDimensionMismatch, i, len(r.Vector), spec.Dimension)
		}
		if _, dup := seen[r.Chunk.ChunkId]; dup {
			return fmt.Errorf("duplicate chunk id %s", r.Chunk.ChunkId)
		}
		seen[r.Chunk.ChunkId] = struct{}{}
	}
	return nil
}

func CheckQuery(dimension int, vector []float32, k int) error {
	if k <= 0 {
		return fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) != dimension {
		return fmt.Errorf("%w: query has %d, collection expects %d", ragErrors.ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}

// Similarity returns a scoring function where a larger value means closer.
// Euclidean distance is negated to fit that convention.
func Similarity(metric string) (func(a, b []float32) float32, error) {
	switch metric {
	case config.MetricCosine:
		return cosine, nil
	case config.MetricDot:
		return dot, nil
	case config.MetricEuclid:
		return negEuclid, nil
	default:
		return nil, fmt.Errorf("unknown similarity metric %q", metric)
	}
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

func cosine(a, b []float32) float32 {
	var d, na, nb float64
	for i := range a {
		d += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(d / (math.Sqrt(na) * math.Sqrt(nb)))
}

func negEuclid(a, b []float32) float32 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return float32(-math.Sqrt(sum))
}

// SortMatches orders by descending score, ties by ascending global chunk order.
func SortMatches(matches []commonModels.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.GlobalOrder < matches[j].Chunk.GlobalOrder
	})
}

// TopK scores every record and keeps the best k.
func TopK(records []commonModels.IndexRecord, vector []float32, k int, score func(a, b []float32) float32) []commonModels.Match {
	matches := make([]commonModels.Match, 0, len(records))
	for _, r := range records {
		matches = append(matches, commonModels.Match{Chunk: r.Chunk, Score: score(vector, r.Vector)})
	}
	SortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
