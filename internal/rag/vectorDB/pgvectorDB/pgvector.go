// Package pgvectorDB stores a collection as one Postgres table using the pgvector extension.
// The table is created, filled and described inside one transaction, so it appears atomically.
package pgvectorDB

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// pool is satisfied by *pgxpool.Pool and pgxmock.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

const (
	pgDuplicateTable  = "42P07"
	pgUniqueViolation = "23505"
)

type store struct {
	db     pool
	logger *logger_i.Logger
}

func GetPgvectorStore(ctx context.Context, dsn string) (vectorDB.Store, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("pgvector: ping: %w", err)
	}
	return newStore(p), nil
}

func newStore(db pool) *store {
	return &store{db: db, logger: logger_i.NewLogger("PgvectorDB")}
}

func (s *store) Close() error {
	s.db.Close()
	return nil
}

func tableIdent(spec vectorDB.CollectionSpec) string {
	return pgx.Identifier{spec.Name}.Sanitize()
}

func (s *store) Exists(ctx context.Context, spec vectorDB.CollectionSpec) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", tableIdent(spec)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgvector: check table: %w", err)
	}
	return exists, nil
}

func (s *store) Build(ctx context.Context, spec vectorDB.CollectionSpec, records []commonModels.IndexRecord) (vectorDB.Index, error) {
	loggr := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "collection", spec.Name)

	if err := vectorDB.CheckRecords(spec, records); err != nil {
		return nil, err
	}
	table := tableIdent(spec)
	manifest := vectorDB.NewManifest(spec, len(records))
	comment, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("pgvector: encode manifest: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgvector: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			loggr.Warn("rollback failed", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, fmt.Errorf("pgvector: enable extension: %w", err)
	}
	createTable := fmt.Sprintf(`CREATE TABLE %s (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		doc_name TEXT NOT NULL,
		content TEXT NOT NULL,
		page_num INTEGER NOT NULL,
		chunk_order INTEGER NOT NULL,
		global_order INTEGER NOT NULL,
		rune_offset INTEGER NOT NULL,
		embedding_model TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	)`, table, spec.Dimension)
	if _, err := tx.Exec(ctx, createTable); err != nil {
		if isAlreadyBuilt(err) {
			return nil, ragErrors.ErrAlreadyBuilt
		}
		return nil, fmt.Errorf("pgvector: create table: %w", err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s
		(id, doc_id, doc_name, content, page_num, chunk_order, global_order, rune_offset, embedding_model, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, table)
	for _, r := range records {
		c := r.Chunk
		_, err := tx.Exec(ctx, insert,
			c.ChunkId, c.DocId, c.DocName, cleanText(c.Chunk),
			c.PageNum, c.ChunkPageOrder, c.GlobalOrder, c.Offset, c.EmbeddingModel,
			pgvector.NewVector(r.Vector))
		if err != nil {
			return nil, fmt.Errorf("pgvector: insert %s: %w", c.ChunkId, err)
		}
	}

	// COMMENT takes no bind parameters
	describe := fmt.Sprintf("COMMENT ON TABLE %s IS '%s'", table, strings.ReplaceAll(string(comment), "'", "''"))
	if _, err := tx.Exec(ctx, describe); err != nil {
		return nil, fmt.Errorf("pgvector: write manifest: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isAlreadyBuilt(err) {
			return nil, ragErrors.ErrAlreadyBuilt
		}
		return nil, fmt.Errorf("pgvector: commit: %w", err)
	}
	committed = true
	loggr.Info("collection built", "records", len(records))

	return &index{db: s.db, table: table, manifest: manifest}, nil
}

// cleanText drops what a Postgres text column refuses: NUL bytes and invalid UTF-8.
func cleanText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
}

func isAlreadyBuilt(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDuplicateTable || pgErr.Code == pgUniqueViolation
	}
	return false
}

func (s *store) Open(ctx context.Context, spec vectorDB.CollectionSpec) (vectorDB.Index, error) {
	exists, err := s.Exists(ctx, spec)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("open %q: %w", spec.Name, ragErrors.ErrNotBuilt)
	}

	var raw string
	err = s.db.QueryRow(ctx, "SELECT COALESCE(obj_description(to_regclass($1), 'pg_class'), '')", tableIdent(spec)).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("pgvector: read manifest: %w", err)
	}
	if raw == "" {
		return nil, fmt.Errorf("table %s has no manifest", spec.Name)
	}
	var manifest vectorDB.Manifest
	if err := json.Unmarshal([]byte(raw), &manifest); err != nil {
		return nil, fmt.Errorf("pgvector: decode manifest: %w", err)
	}
	if err := vectorDB.CheckManifest(spec, manifest); err != nil {
		return nil, err
	}

	return &index{db: s.db, table: tableIdent(spec), manifest: manifest}, nil
}

type index struct {
	db       pool
	table    string
	manifest vectorDB.Manifest
}

func (i *index) Manifest() vectorDB.Manifest {
	return i.manifest
}

// scoreExpr turns the pgvector distance operator into a higher-is-closer score.
func scoreExpr(metric string) (string, string, error) {
	switch metric {
	case config.MetricCosine:
		return "1 - (embedding <=> $1)", "embedding <=> $1", nil
	case config.MetricDot:
		return "(embedding <#> $1) * -1", "embedding <#> $1", nil
	case config.MetricEuclid:
		return "-(embedding <-> $1)", "embedding <-> $1", nil
	default:
		return "", "", fmt.Errorf("unsupported metric %s", metric)
	}
}

func (i *index) Query(ctx context.Context, vector []float32, k int) ([]commonModels.Match, error) {
	if err := vectorDB.CheckQuery(i.manifest.Dimension, vector, k); err != nil {
		return nil, err
	}
	score, distance, err := scoreExpr(i.manifest.Metric)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`SELECT id, doc_id, doc_name, content, page_num, chunk_order, global_order, rune_offset, embedding_model, %s AS score
		FROM %s ORDER BY %s ASC, global_order ASC LIMIT $2`, score, i.table, distance)
	rows, err := i.db.Query(ctx, sql, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()

	matches := make([]commonModels.Match, 0, k)
	for rows.Next() {
		var (
			c     commonModels.DocChunk
			value float64
		)
		if err := rows.Scan(&c.ChunkId, &c.DocId, &c.DocName, &c.Chunk, &c.PageNum, &c.ChunkPageOrder,
			&c.GlobalOrder, &c.Offset, &c.EmbeddingModel, &value); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		matches = append(matches, commonModels.Match{Chunk: c, Score: float32(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: search rows: %w", err)
	}
	vectorDB.SortMatches(matches)
	return matches, nil
}
