package cli

import (
	"context"
	"fmt"

	"github.com/turtacn/pkasolver/internal/application/scoring"
	"github.com/turtacn/pkasolver/internal/config"
	"github.com/turtacn/pkasolver/internal/infrastructure/database/postgres"
	"github.com/turtacn/pkasolver/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/pkasolver/internal/infrastructure/database/redis"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/pkasolver/internal/infrastructure/storage"
	"github.com/turtacn/pkasolver/internal/infrastructure/storage/minio"
	"github.com/turtacn/pkasolver/internal/interfaces/http/handlers"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// components holds everything the long-running commands share. Optional
// backends stay nil when disabled.
type components struct {
	cfg       *config.Config
	logger    logging.Logger
	collector prometheus.MetricsCollector
	metrics   *prometheus.PKAMetrics
	objects   storage.ObjectStore
	artifacts *storage.ArtifactStore
	cache     *redis.ProfileCache
	repo      *repositories.ProfileRepository
	checks    []handlers.HealthChecker
	closers   []func() error
}

type componentOptions struct {
	withBackends bool
}

type componentOption func(*componentOptions)

// withBackends connects the profile cache and repository when enabled.
func withBackends() componentOption {
	return func(o *componentOptions) { o.withBackends = true }
}

func buildComponents(ctx context.Context, cfg *config.Config, log logging.Logger, opts ...componentOption) (*components, error) {
	var o componentOptions
	for _, opt := range opts {
		opt(&o)
	}
	c := &components{cfg: cfg, logger: logging.OrNop(log)}

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
			ConstLabels:          map[string]string{"version": Version},
		}, c.logger)
		if err != nil {
			return nil, err
		}
		c.collector = collector
		c.metrics = prometheus.NewPKAMetrics(collector)
	}

	if err := c.openObjectStore(ctx); err != nil {
		return nil, err
	}

	if o.withBackends {
		if err := c.openBackends(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *components) openObjectStore(ctx context.Context) error {
	switch c.cfg.Storage.Backend {
	case "", "local":
		s, err := storage.NewLocalStore(c.cfg.Storage.LocalDir)
		if err != nil {
			return err
		}
		c.objects = s
	case "minio":
		m := c.cfg.MinIO
		s, err := minio.NewStore(ctx, minio.Config{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			Region:    m.Region,
			UseSSL:    m.UseSSL,
		}, c.logger.Named("minio"))
		if err != nil {
			return err
		}
		c.objects = s
		c.checks = append(c.checks, handlers.NamedCheck("minio", s.HealthCheck))
	default:
		return errors.NewValidationError(errors.ErrCodeBadRequest, fmt.Sprintf("unknown storage backend %q", c.cfg.Storage.Backend))
	}

	opts := []storage.ArtifactOption{storage.WithLogger(c.logger.Named("artifacts"))}
	if c.metrics != nil {
		opts = append(opts, storage.WithMetrics(c.metrics))
	}
	c.artifacts = storage.NewArtifactStore(c.objects, opts...)
	return nil
}

func (c *components) openBackends(ctx context.Context) error {
	if rc := c.cfg.Redis; rc.Enabled {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:         rc.Addr,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
			DialTimeout:  rc.DialTimeout,
			ReadTimeout:  rc.ReadTimeout,
			WriteTimeout: rc.WriteTimeout,
		}, c.logger.Named("redis"))
		if err != nil {
			return err
		}
		c.closers = append(c.closers, client.Close)
		c.checks = append(c.checks, handlers.NamedCheck("redis", client.Ping))
		c.cache = redis.NewProfileCache(client, c.logger.Named("cache"),
			redis.WithPrefix(rc.KeyPrefix), redis.WithTTL(rc.DefaultTTL))
	}

	if pc := c.cfg.Postgres; pc.Enabled {
		conn, err := postgres.NewConnection(ctx, postgres.Config{
			Host:            pc.Host,
			Port:            pc.Port,
			User:            pc.User,
			Password:        pc.Password,
			DBName:          pc.DBName,
			SSLMode:         pc.SSLMode,
			MaxConns:        pc.MaxConns,
			MinConns:        pc.MinConns,
			ConnMaxLifetime: pc.ConnMaxLifetime,
			ConnMaxIdleTime: pc.ConnMaxIdleTime,
		}, c.logger.Named("postgres"))
		if err != nil {
			return err
		}
		c.closers = append(c.closers, conn.Close)
		c.checks = append(c.checks, handlers.NamedCheck("postgres", conn.HealthCheck))
		c.repo = repositories.NewProfileRepository(conn, c.logger.Named("profiles"))
	}
	return nil
}

// scoringService loads the configured ensemble and builds the service over
// whichever backends are open.
func (c *components) scoringService(ctx context.Context) (scoring.Service, error) {
	ens, err := c.artifacts.LoadEnsemble(ctx, c.cfg.Model.ArtifactKey, c.cfg.Model.Version)
	if err != nil {
		return nil, err
	}
	opts := []scoring.Option{
		scoring.WithLogger(c.logger),
		scoring.WithTimeout(c.cfg.Sequencer.Timeout),
	}
	if c.cfg.Sequencer.MaxParallel > 0 {
		opts = append(opts, scoring.WithMaxParallel(c.cfg.Sequencer.MaxParallel))
	}
	if c.metrics != nil {
		opts = append(opts, scoring.WithMetrics(c.metrics))
	}
	if c.cache != nil {
		opts = append(opts, scoring.WithCache(c.cache))
	}
	if c.repo != nil {
		opts = append(opts, scoring.WithRepository(c.repo))
	}
	return scoring.NewService(ens, opts...)
}

// Close releases backends in reverse order of opening.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warn("close failed", logging.Err(err))
		}
	}
	c.closers = nil
}

//Personal.AI order the ending
