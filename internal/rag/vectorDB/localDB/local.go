// Package localDB keeps a collection as two JSON files under a directory and searches it by brute force.
//
// Layout: <location>/<collection>/manifest.json and records.json. A build is written into a hidden
// sibling directory and published with a single rename, so Exists never sees a partial build.
package localDB

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/gofrs/flock"
)

const (
	manifestFile = "manifest.json"
	recordsFile  = "records.json"
	lockRetry    = 50 * time.Millisecond
)

type store struct {
	lockTimeout time.Duration
	logger      *logger_i.Logger
}

func NewLocalStore() vectorDB.Store {
	return &store{
		lockTimeout: config.LocalLockTimeout,
		logger:      logger_i.NewLogger("LocalDB"),
	}
}

func collectionDir(spec vectorDB.CollectionSpec) string {
	return filepath.Join(spec.Location, spec.Name)
}

func (s *store) Exists(_ context.Context, spec vectorDB.CollectionSpec) (bool, error) {
	_, err := os.Stat(filepath.Join(collectionDir(spec), manifestFile))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat collection %q: %w", spec.Name, err)
}

func (s *store) Build(ctx context.Context, spec vectorDB.CollectionSpec, records []commonModels.IndexRecord) (vectorDB.Index, error) {
	loggr := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "collection", spec.Name)

	if err := vectorDB.CheckRecords(spec, records); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(spec.Location, 0o750); err != nil {
		return nil, fmt.Errorf("create index location: %w", err)
	}

	unlock, err := s.lock(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer unlock()

	exists, err := s.Exists(ctx, spec)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ragErrors.ErrAlreadyBuilt
	}

	tmp, err := os.MkdirTemp(spec.Location, "."+spec.Name+"-build-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	manifest := vectorDB.NewManifest(spec, len(records))
	if err := writeJSON(filepath.Join(tmp, recordsFile), records); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(tmp, manifestFile), manifest); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final := collectionDir(spec)
	// a directory without a manifest is not a published build
	if err := os.RemoveAll(final); err != nil {
		return nil, fmt.Errorf("clear collection directory: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return nil, fmt.Errorf("publish collection: %w", err)
	}
	committed = true
	loggr.Info("collection built", "records", len(records), "path", final)

	return newIndex(manifest, records)
}

func (s *store) Open(ctx context.Context, spec vectorDB.CollectionSpec) (vectorDB.Index, error) {
	loggr := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "collection", spec.Name)
	dir := collectionDir(spec)

	var manifest vectorDB.Manifest
	if err := readJSON(filepath.Join(dir, manifestFile), &manifest); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %q: %w", spec.Name, ragErrors.ErrNotBuilt)
		}
		return nil, err
	}
	if err := vectorDB.CheckManifest(spec, manifest); err != nil {
		return nil, err
	}

	var records []commonModels.IndexRecord
	if err := readJSON(filepath.Join(dir, recordsFile), &records); err != nil {
		return nil, err
	}
	if len(records) != manifest.Count {
		return nil, fmt.Errorf("collection %q is corrupt: manifest lists %d records, found %d", spec.Name, manifest.Count, len(records))
	}
	for i, r := range records {
		if len(r.Vector) != manifest.Dimension {
			return nil, fmt.Errorf("%w: stored record %d has %d", ragErrors.ErrDimensionMismatch, i, len(r.Vector))
		}
	}
	loggr.Debug("collection opened", "records", len(records))

	return newIndex(manifest, records)
}

func (s *store) Close() error {
	return nil
}

// lock serialises builders of one collection across processes.
func (s *store) lock(ctx context.Context, spec vectorDB.CollectionSpec) (func(), error) {
	fl := flock.New(filepath.Join(spec.Location, "."+spec.Name+".lock"))

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	ok, err := fl.TryLockContext(lockCtx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("lock collection %q: %w", spec.Name, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock collection %q: held by another process", spec.Name)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("could not release collection lock", "collection", spec.Name, "error", err)
		}
	}, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

type index struct {
	manifest vectorDB.Manifest
	records  []commonModels.IndexRecord
	score    func(a, b []float32) float32
}

func newIndex(manifest vectorDB.Manifest, records []commonModels.IndexRecord) (vectorDB.Index, error) {
	score, err := vectorDB.Similarity(manifest.Metric)
	if err != nil {
		return nil, err
	}
	return &index{manifest: manifest, records: records, score: score}, nil
}

func (i *index) Query(ctx context.Context, vector []float32, k int) ([]commonModels.Match, error) {
	if err := vectorDB.CheckQuery(i.manifest.Dimension, vector, k); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectorDB.TopK(i.records, vector, k, i.score), nil
}

func (i *index) Manifest() vectorDB.Manifest {
	return i.manifest
}
