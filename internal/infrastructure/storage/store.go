// Package storage keeps trained ensembles and training checkpoints in an
// object store. The local backend writes under a directory; the minio
// subpackage provides the S3-compatible backend.
package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/internal/intelligence/pka_gnn"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// ErrObjectNotFound is returned by every backend for a missing key.
var ErrObjectNotFound = errors.New(errors.ErrCodeArtifactNotFound, "object not found")

// ObjectStore is the byte-level contract shared by the backends. Keys are
// slash-separated and relative.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Backend() string
}

// ─────────────────────────────────────────────────────────────────────────────
// Local backend
// ─────────────────────────────────────────────────────────────────────────────

// LocalStore keeps objects as files below a root directory.
type LocalStore struct {
	fs afero.Fs
}

// NewLocalStore roots a store at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "create %s", dir)
	}
	return &LocalStore{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}, nil
}

// NewMemStore is a LocalStore over an in-memory filesystem.
func NewMemStore() *LocalStore {
	return &LocalStore{fs: afero.NewMemMapFs()}
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.TrimSpace(key))
	if k == "/" {
		return "", errors.NewValidationError(errors.ErrCodeBadRequest, "empty object key")
	}
	return k, nil
}

func (s *LocalStore) Backend() string { return "local" }

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(k), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "mkdir for %s", key)
	}
	// Write to a sibling then rename so readers never see a partial object.
	tmp := k + ".tmp"
	f, err := s.fs.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "create %s", key)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
		return errors.Wrapf(err, errors.ErrCodeStorageError, "write %s", key)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "close %s", key)
	}
	if err := s.fs.Rename(tmp, k); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "commit %s", key)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(k)
	if os.IsNotExist(err) {
		return nil, ErrObjectNotFound.WithDetail(key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "open %s", key)
	}
	return f, nil
}

func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	ok, err := afero.Exists(s.fs, k)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrCodeStorageError, "stat %s", key)
	}
	return ok, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(k); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "remove %s", key)
	}
	return nil
}

func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := afero.Walk(s.fs, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		k := strings.TrimPrefix(p, "/")
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "list objects")
	}
	sort.Strings(keys)
	return keys, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Artifact store
// ─────────────────────────────────────────────────────────────────────────────

// Metrics records storage calls. *prometheus.PKAMetrics satisfies it.
type Metrics interface {
	RecordStorageOp(backend, operation string, d time.Duration, err error)
}

type nopMetrics struct{}

func (nopMetrics) RecordStorageOp(string, string, time.Duration, error) {}

// ArtifactStore encodes ensembles into an ObjectStore. It satisfies
// pka_gnn.ArtifactSink.
type ArtifactStore struct {
	store   ObjectStore
	logger  logging.Logger
	metrics Metrics
}

// ArtifactOption configures an ArtifactStore.
type ArtifactOption func(*ArtifactStore)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) ArtifactOption { return func(a *ArtifactStore) { a.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) ArtifactOption {
	return func(a *ArtifactStore) {
		if m != nil {
			a.metrics = m
		}
	}
}

// NewArtifactStore wraps store.
func NewArtifactStore(store ObjectStore, opts ...ArtifactOption) *ArtifactStore {
	a := &ArtifactStore{store: store, metrics: nopMetrics{}}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.OrNop(a.logger).Named("artifacts")
	return a
}

// SaveArtifact encodes a and writes it under key.
func (s *ArtifactStore) SaveArtifact(ctx context.Context, key string, a *pka_gnn.Artifact) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOp(s.store.Backend(), "put", time.Since(start), err) }()

	var buf bytes.Buffer
	if err = pka_gnn.EncodeArtifact(&buf, a); err != nil {
		return err
	}
	size := int64(buf.Len())
	if err = s.store.Put(ctx, key, &buf, size); err != nil {
		return err
	}
	s.logger.Info("artifact saved",
		logging.String("key", key),
		logging.Int("members", len(a.Members)),
		logging.Int64("bytes", size))
	return nil
}

// LoadArtifact reads and decodes the artifact under key.
func (s *ArtifactStore) LoadArtifact(ctx context.Context, key string) (a *pka_gnn.Artifact, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOp(s.store.Backend(), "get", time.Since(start), err) }()

	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return pka_gnn.DecodeArtifact(rc)
}

// LoadEnsemble rebuilds the ensemble stored under key and labels it with
// version.
func (s *ArtifactStore) LoadEnsemble(ctx context.Context, key, version string) (*pka_gnn.Ensemble, error) {
	a, err := s.LoadArtifact(ctx, key)
	if err != nil {
		return nil, err
	}
	e, err := pka_gnn.EnsembleFromArtifact(version, a)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ensemble loaded",
		logging.String("key", key),
		logging.String("version", version),
		logging.Int("members", e.Size()))
	return e, nil
}

// LoadCheckpoint returns the first member and checkpoint stored under key so
// training can resume. A missing key yields ErrObjectNotFound.
func (s *ArtifactStore) LoadCheckpoint(ctx context.Context, key string) (*pka_gnn.Regressor, *pka_gnn.Checkpoint, error) {
	a, err := s.LoadArtifact(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if a.Checkpoint == nil {
		return nil, nil, errors.NewValidationError(errors.ErrCodeAIModelVersionMismatch, "artifact carries no checkpoint")
	}
	r, err := a.Regressor(0)
	if err != nil {
		return nil, nil, err
	}
	return r, a.Checkpoint, nil
}

// Keys lists stored artifacts below prefix.
func (s *ArtifactStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.store.List(ctx, prefix)
}

//Personal.AI order the ending
