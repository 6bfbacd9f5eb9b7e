// Package config defines the configuration structures of the pkasolver
// service. No I/O lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/pkasolver/internal/application/microstate"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/internal/intelligence/pka_gnn"
	"github.com/turtacn/pkasolver/internal/intelligence/sites"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimitRPS is the per-client request rate. Zero disables limiting.
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// Logging converts the section for logging.NewLogger.
func (l LogConfig) Logging() logging.LogConfig {
	out := logging.LogConfig{Level: l.Level, Format: l.Format}
	if l.Output != "" {
		out.OutputPaths = []string{l.Output}
	}
	return out
}

// ModelConfig locates the ensemble artifact served by predict, serve and
// worker.
type ModelConfig struct {
	ArtifactKey string `mapstructure:"artifact_key"`
	Version     string `mapstructure:"version"`
}

// SequencerConfig holds microstate sequencing defaults.
type SequencerConfig struct {
	PH            float64       `mapstructure:"ph"`
	Mode          string        `mapstructure:"mode"` // "rule_filtered" | "exhaustive"
	EnforceWindow bool          `mapstructure:"enforce_window"`
	MinPKa        float64       `mapstructure:"min_pka"`
	MaxPKa        float64       `mapstructure:"max_pka"`
	MaxParallel   int           `mapstructure:"max_parallel"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Options converts the section into sequencer options.
func (s SequencerConfig) Options() (microstate.Options, error) {
	mode, err := sites.ParseMode(s.Mode)
	if err != nil {
		return microstate.Options{}, err
	}
	return microstate.Options{
		PH:            s.PH,
		Mode:          mode,
		EnforceWindow: s.EnforceWindow,
		MinPKa:        s.MinPKa,
		MaxPKa:        s.MaxPKa,
	}, nil
}

// TrainingConfig holds the trainer's hyperparameters and schedule.
type TrainingConfig struct {
	Variant       string   `mapstructure:"variant"`
	Attention     bool     `mapstructure:"attention"`
	NumLayers     int      `mapstructure:"num_layers"`
	EmbeddingDim  int      `mapstructure:"embedding_dim"`
	HeadDim       int      `mapstructure:"head_dim"`
	Dropout       float64  `mapstructure:"dropout"`
	NodeFeatures  []string `mapstructure:"node_features"`
	EdgeFeatures  []string `mapstructure:"edge_features"`
	LearningRate  float64  `mapstructure:"learning_rate"`
	WeightDecay   float64  `mapstructure:"weight_decay"`
	BatchSize     int      `mapstructure:"batch_size"`
	MaxEpochs     int      `mapstructure:"max_epochs"`
	EvalEvery     int      `mapstructure:"eval_every"`
	Seed          int64    `mapstructure:"seed"`
	CheckpointKey string   `mapstructure:"checkpoint_key"`
}

// Hyperparameters converts the section into regressor hyperparameters.
func (t TrainingConfig) Hyperparameters() (pka_gnn.Hyperparameters, error) {
	variant, err := pka_gnn.ParseVariant(t.Variant)
	if err != nil {
		return pka_gnn.Hyperparameters{}, err
	}
	hp := pka_gnn.DefaultHyperparameters()
	hp.Variant = variant
	hp.Attention = t.Attention
	hp.NumLayers = t.NumLayers
	hp.EmbeddingDim = t.EmbeddingDim
	hp.HeadDim = t.HeadDim
	hp.Dropout = t.Dropout
	hp.Seed = t.Seed
	if len(t.NodeFeatures) > 0 {
		hp.NodeFeatures = append([]string(nil), t.NodeFeatures...)
	}
	if len(t.EdgeFeatures) > 0 {
		hp.EdgeFeatures = append([]string(nil), t.EdgeFeatures...)
	}
	return hp, hp.Validate()
}

// AdamW converts the section into optimizer settings.
func (t TrainingConfig) AdamW() pka_gnn.AdamWConfig {
	cfg := pka_gnn.DefaultAdamWConfig()
	cfg.LearningRate = t.LearningRate
	cfg.WeightDecay = t.WeightDecay
	return cfg
}

// StorageConfig selects where artifacts live.
type StorageConfig struct {
	Backend  string `mapstructure:"backend"` // "local" | "minio"
	LocalDir string `mapstructure:"local_dir"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// RedisConfig holds profile-cache connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the profile request worker parameters.
type KafkaConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Brokers        []string      `mapstructure:"brokers"`
	GroupID        string        `mapstructure:"group_id"`
	RequestTopic   string        `mapstructure:"request_topic"`
	ResultTopic    string        `mapstructure:"result_topic"`
	DLQTopic       string        `mapstructure:"dlq_topic"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	Concurrency    int           `mapstructure:"concurrency"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`
}

// PostgresConfig holds profile repository connection parameters.
type PostgresConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns a libpq-style connection URL.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure. Every component reads its
// settings from the relevant sub-struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Model     ModelConfig     `mapstructure:"model"`
	Sequencer SequencerConfig `mapstructure:"sequencer"`
	Training  TrainingConfig  `mapstructure:"training"`
	Storage   StorageConfig   `mapstructure:"storage"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Model.ArtifactKey == "" {
		return fmt.Errorf("config: model.artifact_key is required")
	}

	opts, err := c.Sequencer.Options()
	if err != nil {
		return fmt.Errorf("config: sequencer.mode: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("config: sequencer: %w", err)
	}
	if c.Sequencer.MaxParallel < 1 {
		return fmt.Errorf("config: sequencer.max_parallel must be >= 1, got %d", c.Sequencer.MaxParallel)
	}

	if _, err := c.Training.Hyperparameters(); err != nil {
		return fmt.Errorf("config: training: %w", err)
	}
	if err := c.Training.AdamW().Validate(); err != nil {
		return fmt.Errorf("config: training: %w", err)
	}
	if c.Training.MaxEpochs < 0 {
		return fmt.Errorf("config: training.max_epochs must be >= 0, got %d", c.Training.MaxEpochs)
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("config: storage.local_dir is required for the local backend")
		}
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.endpoint and minio.bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("config: storage.backend %q is invalid; expected local|minio", c.Storage.Backend)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}

	if c.Postgres.Enabled {
		if c.Postgres.Host == "" {
			return fmt.Errorf("config: postgres.host is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("config: postgres.user is required")
		}
		if c.Postgres.DBName == "" {
			return fmt.Errorf("config: postgres.db_name is required")
		}
		if c.Postgres.MaxConns < 1 {
			return fmt.Errorf("config: postgres.max_conns must be >= 1, got %d", c.Postgres.MaxConns)
		}
	}
	return nil
}

//Personal.AI order the ending
