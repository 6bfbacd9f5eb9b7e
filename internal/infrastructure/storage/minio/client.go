// Package minio is the S3-compatible backend of the artifact store.
package minio

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/internal/infrastructure/storage"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// ObjectAPI is the part of the minio SDK the store uses. GetObject returns a
// plain reader so tests can fake it.
type ObjectAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

type sdkAPI struct{ *minio.Client }

func (a sdkAPI) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return a.Client.GetObject(ctx, bucket, key, opts)
}

// Config holds connection parameters.
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

func applyDefaults(cfg *Config) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "pkasolver"
	}
}

// Store is a storage.ObjectStore over one bucket.
type Store struct {
	api    ObjectAPI
	bucket string
	region string
	logger logging.Logger
}

// NewStore connects, verifies reachability and creates the bucket if needed.
func NewStore(ctx context.Context, cfg Config, log logging.Logger) (*Store, error) {
	applyDefaults(&cfg)
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create minio client")
	}
	s := newStore(sdkAPI{client}, cfg, log)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("MinIO store connected", logging.String("endpoint", cfg.Endpoint), logging.String("bucket", cfg.Bucket), logging.Bool("ssl", cfg.UseSSL))
	return s, nil
}

func newStore(api ObjectAPI, cfg Config, log logging.Logger) *Store {
	applyDefaults(&cfg)
	return &Store{api: api, bucket: cfg.Bucket, region: cfg.Region, logger: logging.OrNop(log)}
}

// EnsureBucket creates the configured bucket when it is missing.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to reach minio")
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "failed to create bucket %s", s.bucket)
	}
	s.logger.Info("Created bucket", logging.String("bucket", s.bucket))
	return nil
}

// HealthCheck lists buckets as a reachability probe.
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.api.ListBuckets(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio unreachable")
	}
	return nil
}

func (s *Store) Backend() string { return "minio" }

func objectKey(key string) (string, error) {
	k := strings.Trim(strings.TrimSpace(key), "/")
	if k == "" {
		return "", errors.NewValidationError(errors.ErrCodeBadRequest, "empty object key")
	}
	return k, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	k, err := objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.api.PutObject(ctx, s.bucket, k, r, size, minio.PutObjectOptions{ContentType: "application/gzip"})
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "put %s", k)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	k, err := objectKey(key)
	if err != nil {
		return nil, err
	}
	// GetObject is lazy, so a missing key only surfaces on Stat.
	if _, err := s.api.StatObject(ctx, s.bucket, k, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, storage.ErrObjectNotFound.WithDetail(k)
		}
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "stat %s", k)
	}
	rc, err := s.api.GetObject(ctx, s.bucket, k, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "get %s", k)
	}
	return rc, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	k, err := objectKey(key)
	if err != nil {
		return false, err
	}
	_, err = s.api.StatObject(ctx, s.bucket, k, minio.StatObjectOptions{})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, errors.Wrapf(err, errors.ErrCodeStorageError, "stat %s", k)
	}
}

func (s *Store) Delete(ctx context.Context, key string) error {
	k, err := objectKey(key)
	if err != nil {
		return err
	}
	if err := s.api.RemoveObject(ctx, s.bucket, k, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "remove %s", k)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "list objects")
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ storage.ObjectStore = (*Store)(nil)

//Personal.AI order the ending
