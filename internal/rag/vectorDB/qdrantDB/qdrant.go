package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// qdrantAPI is the slice of *qdrant.Client the store needs.
type qdrantAPI interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	ListAliases(ctx context.Context) ([]*qdrant.AliasDescription, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	CreateAlias(ctx context.Context, aliasName, collectionName string) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

type Options struct {
	Host     string
	Port     int
	UseTLS   bool
	PoolSize uint
	APIKey   string
}

type store struct {
	client    qdrantAPI
	batchSize int
	logger    *logger_i.Logger
}

const maxRecvMsgSize = 32 << 20

// GetQdrantStore connects over gRPC and checks the server answers before returning.
func GetQdrantStore(ctx context.Context, opts Options) (vectorDB.Store, error) {
	logger := logger_i.NewLogger("Qdrant")

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:          opts.Host,
		Port:          opts.Port,
		APIKey:        opts.APIKey,
		UseTLS:        opts.UseTLS,
		PoolSize:      opts.PoolSize,
		KeepAliveTime: int(config.QdrantKeepAliveTimeout / time.Second),
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	healthCtx, cancel := context.WithTimeout(ctx, config.QdrantConnectionTimeout)
	defer cancel()
	reply, err := client.HealthCheck(healthCtx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant at %s:%d is not reachable: %w", opts.Host, opts.Port, err)
	}
	logger.Info("connected to qdrant", "host", opts.Host, "port", opts.Port, "version", reply.GetVersion())

	return newStore(client, logger), nil
}

func newStore(client qdrantAPI, logger *logger_i.Logger) *store {
	return &store{
		client:    client,
		batchSize: config.VectorUpsertBatchSize,
		logger:    logger,
	}
}

func (s *store) Close() error {
	s.logger.Info("Shutting down Qdrant")
	return s.client.Close()
}

// resolve returns the collection currently published under the alias.
func (s *store) resolve(ctx context.Context, alias string) (string, bool, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", false, fmt.Errorf("list aliases: %w", err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == alias {
			return a.GetCollectionName(), true, nil
		}
	}
	return "", false, nil
}

func (s *store) Exists(ctx context.Context, spec vectorDB.CollectionSpec) (bool, error) {
	_, ok, err := s.resolve(ctx, spec.Name)
	return ok, err
}

// Build fills a staging collection and publishes it by creating the alias.
// Alias creation fails if another builder published first.
func (s *store) Build(ctx context.Context, spec vectorDB.CollectionSpec, records []commonModels.IndexRecord) (vectorDB.Index, error) {
	loggr := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "collection", spec.Name)

	if err := vectorDB.CheckRecords(spec, records); err != nil {
		return nil, err
	}
	distance, err := toDistance(spec.Metric)
	if err != nil {
		return nil, err
	}
	if exists, err := s.Exists(ctx, spec); err != nil {
		return nil, err
	} else if exists {
		return nil, ragErrors.ErrAlreadyBuilt
	}

	staging := spec.Name + "-" + randomSuffix()
	manifest := vectorDB.NewManifest(spec, len(records))

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: staging,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(spec.Dimension),
			Distance: distance,
		}),
		Metadata: manifestToValues(manifest),
	})
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", staging, err)
	}

	published := false
	defer func() {
		if published {
			return
		}
		// ctx may already be cancelled here
		cleanupCtx, cancel := context.WithTimeout(context.Background(), config.QdrantConnectionTimeout)
		defer cancel()
		if err := s.client.DeleteCollection(cleanupCtx, staging); err != nil {
			loggr.Warn("could not delete staging collection", "staging", staging, "error", err)
		}
	}()

	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))
		if err := s.upsert(ctx, staging, records[start:end]); err != nil {
			return nil, err
		}
		loggr.Debug("upserted batch", "from", start, "to", end)
	}

	if err := s.client.CreateAlias(ctx, spec.Name, staging); err != nil {
		if exists, _ := s.Exists(ctx, spec); exists {
			return nil, ragErrors.ErrAlreadyBuilt
		}
		return nil, fmt.Errorf("publish alias %s: %w", spec.Name, err)
	}
	published = true
	loggr.Info("collection built", "staging", staging, "records", len(records))

	return &index{client: s.client, collection: staging, manifest: manifest}, nil
}

func (s *store) upsert(ctx context.Context, collection string, records []commonModels.IndexRecord) error {
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		payload, err := qdrant.TryValueMap(map[string]any{
			"content":         r.Chunk.Chunk,
			"page_num":        r.Chunk.PageNum,
			"source_doc_id":   r.Chunk.DocId,
			"doc_name":        r.Chunk.DocName,
			"chunk_order":     r.Chunk.ChunkPageOrder,
			"global_order":    r.Chunk.GlobalOrder,
			"rune_offset":     r.Chunk.Offset,
			"chunk_id":        r.Chunk.ChunkId,
			"embedding_model": r.Chunk.EmbeddingModel,
		})
		if err != nil {
			return fmt.Errorf("payload for chunk %s: %w", r.Chunk.ChunkId, err)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(r.Chunk.ChunkId),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (s *store) Open(ctx context.Context, spec vectorDB.CollectionSpec) (vectorDB.Index, error) {
	collection, ok, err := s.resolve(ctx, spec.Name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("open %q: %w", spec.Name, ragErrors.ErrNotBuilt)
	}

	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("alias %q points at a missing collection: %w", spec.Name, ragErrors.ErrNotBuilt)
		}
		return nil, fmt.Errorf("collection info %s: %w", collection, err)
	}

	manifest := manifestFromValues(info.GetConfig().GetMetadata())
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	// collections created outside docqa carry no manifest; fall back to the vector params
	if manifest.Dimension == 0 {
		manifest.Dimension = int(params.GetSize())
	}
	if manifest.Metric == "" {
		manifest.Metric = fromDistance(params.GetDistance())
	}
	if manifest.Collection == "" {
		manifest.Collection = spec.Name
		manifest.Count = int(info.GetPointsCount())
	}
	if err := vectorDB.CheckManifest(spec, manifest); err != nil {
		return nil, err
	}

	return &index{client: s.client, collection: collection, manifest: manifest}, nil
}

type index struct {
	client     qdrantAPI
	collection string
	manifest   vectorDB.Manifest
}

func (i *index) Manifest() vectorDB.Manifest {
	return i.manifest
}

func (i *index) Query(ctx context.Context, vector []float32, k int) ([]commonModels.Match, error) {
	if err := vectorDB.CheckQuery(i.manifest.Dimension, vector, k); err != nil {
		return nil, err
	}

	result, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	matches := make([]commonModels.Match, 0, len(result))
	for _, hit := range result {
		p := hit.GetPayload()
		score := hit.GetScore()
		// qdrant reports euclidean distance, lower is closer
		if i.manifest.Metric == config.MetricEuclid {
			score = -score
		}
		matches = append(matches, commonModels.Match{
			Chunk: commonModels.DocChunk{
				ChunkId:        p["chunk_id"].GetStringValue(),
				DocId:          p["source_doc_id"].GetStringValue(),
				DocName:        p["doc_name"].GetStringValue(),
				Chunk:          p["content"].GetStringValue(),
				PageNum:        int(p["page_num"].GetIntegerValue()),
				ChunkPageOrder: int(p["chunk_order"].GetIntegerValue()),
				GlobalOrder:    int(p["global_order"].GetIntegerValue()),
				Offset:         int(p["rune_offset"].GetIntegerValue()),
				EmbeddingModel: p["embedding_model"].GetStringValue(),
			},
			Score: score,
		})
	}
	vectorDB.SortMatches(matches)
	return matches, nil
}

func toDistance(metric string) (qdrant.Distance, error) {
	switch metric {
	case config.MetricCosine:
		return qdrant.Distance_Cosine, nil
	case config.MetricDot:
		return qdrant.Distance_Dot, nil
	case config.MetricEuclid:
		return qdrant.Distance_Euclid, nil
	default:
		return qdrant.Distance_UnknownDistance, errors.New("unsupported metric " + metric)
	}
}

func fromDistance(d qdrant.Distance) string {
	switch d {
	case qdrant.Distance_Cosine:
		return config.MetricCosine
	case qdrant.Distance_Dot:
		return config.MetricDot
	case qdrant.Distance_Euclid:
		return config.MetricEuclid
	default:
		return d.String()
	}
}

func manifestToValues(m vectorDB.Manifest) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"docqa_collection": qdrant.NewValueString(m.Collection),
		"dimension":        qdrant.NewValueInt(int64(m.Dimension)),
		"metric":           qdrant.NewValueString(m.Metric),
		"embedding_model":  qdrant.NewValueString(m.EmbeddingModel),
		"count":            qdrant.NewValueInt(int64(m.Count)),
		"created_at":       qdrant.NewValueString(m.CreatedAt.Format(time.RFC3339)),
	}
}

func manifestFromValues(v map[string]*qdrant.Value) vectorDB.Manifest {
	created, _ := time.Parse(time.RFC3339, v["created_at"].GetStringValue())
	return vectorDB.Manifest{
		Collection:     v["docqa_collection"].GetStringValue(),
		Dimension:      int(v["dimension"].GetIntegerValue()),
		Metric:         v["metric"].GetStringValue(),
		EmbeddingModel: v["embedding_model"].GetStringValue(),
		Count:          int(v["count"].GetIntegerValue()),
		CreatedAt:      created,
	}
}

func randomSuffix() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}
