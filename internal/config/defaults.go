package config

import (
	"math"
	"time"

	"github.com/turtacn/pkasolver/internal/application/microstate"
	"github.com/turtacn/pkasolver/internal/intelligence/pka_gnn"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultArtifactKey  = "models/pkasolver-ensemble.json.gz"
	DefaultModelVersion = "dev"

	DefaultSequencerMode = "rule_filtered"

	DefaultBatchSize     = 64
	DefaultMaxEpochs     = 1000
	DefaultCheckpointKey = "checkpoints/pkasolver-train.json.gz"

	DefaultStorageBackend = "local"
	DefaultLocalDir       = "./data"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "pkasolver"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "pkasolver:"
	DefaultRedisTTL       = 24 * time.Hour

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaGroupID      = "pkasolver-worker"
	DefaultKafkaRequestTopic = "pka.profile.request"
	DefaultKafkaResultTopic  = "pka.profile.result"
	DefaultKafkaDLQTopic     = "pka.profile.dlq"

	DefaultPostgresHost     = "localhost"
	DefaultPostgresPort     = 5432
	DefaultPostgresDBName   = "pkasolver"
	DefaultPostgresMaxConns = 10

	DefaultMetricsNamespace = "pkasolver"
	DefaultMetricsPath      = "/metrics"
)

// defaultBools lists boolean keys whose default is true. A zero bool cannot be
// told apart from an explicit false after unmarshalling, so these are seeded
// into viper before the file is read.
var defaultBools = map[string]bool{
	"sequencer.enforce_window": true,
	"metrics.enabled":          true,
}

// defaultFloats lists float keys where zero is a legal explicit value.
var defaultFloats = map[string]float64{
	"training.dropout":      pka_gnn.DefaultHyperparameters().Dropout,
	"training.weight_decay": pka_gnn.DefaultAdamWConfig().WeightDecay,
}

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Fields already set by the caller are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 1 << 20
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = int(math.Ceil(2 * cfg.Server.RateLimitRPS))
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	// ── Model ─────────────────────────────────────────────────────────────────
	if cfg.Model.ArtifactKey == "" {
		cfg.Model.ArtifactKey = DefaultArtifactKey
	}
	if cfg.Model.Version == "" {
		cfg.Model.Version = DefaultModelVersion
	}

	// ── Sequencer ─────────────────────────────────────────────────────────────
	if cfg.Sequencer.PH == 0 {
		cfg.Sequencer.PH = microstate.DefaultOptions().PH
	}
	if cfg.Sequencer.Mode == "" {
		cfg.Sequencer.Mode = DefaultSequencerMode
	}
	if cfg.Sequencer.MinPKa == 0 && cfg.Sequencer.MaxPKa == 0 {
		cfg.Sequencer.MinPKa = microstate.DefaultMinPKa
		cfg.Sequencer.MaxPKa = microstate.DefaultMaxPKa
	}
	if cfg.Sequencer.MaxParallel == 0 {
		cfg.Sequencer.MaxParallel = microstate.DefaultMaxParallel
	}
	if cfg.Sequencer.Timeout == 0 {
		cfg.Sequencer.Timeout = 30 * time.Second
	}

	// ── Training ──────────────────────────────────────────────────────────────
	hp := pka_gnn.DefaultHyperparameters()
	if cfg.Training.Variant == "" {
		cfg.Training.Variant = string(hp.Variant)
	}
	if cfg.Training.NumLayers == 0 {
		cfg.Training.NumLayers = hp.NumLayers
	}
	if cfg.Training.EmbeddingDim == 0 {
		cfg.Training.EmbeddingDim = hp.EmbeddingDim
	}
	if cfg.Training.HeadDim == 0 {
		cfg.Training.HeadDim = hp.HeadDim
	}
	if cfg.Training.Seed == 0 {
		cfg.Training.Seed = hp.Seed
	}
	if cfg.Training.LearningRate == 0 {
		cfg.Training.LearningRate = pka_gnn.DefaultAdamWConfig().LearningRate
	}
	if cfg.Training.BatchSize == 0 {
		cfg.Training.BatchSize = DefaultBatchSize
	}
	if cfg.Training.MaxEpochs == 0 {
		cfg.Training.MaxEpochs = DefaultMaxEpochs
	}
	if cfg.Training.EvalEvery == 0 {
		cfg.Training.EvalEvery = pka_gnn.DefaultEvalEvery
	}
	if cfg.Training.CheckpointKey == "" {
		cfg.Training.CheckpointKey = DefaultCheckpointKey
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = DefaultLocalDir
	}
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = DefaultKafkaRequestTopic
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = DefaultKafkaResultTopic
	}
	if cfg.Kafka.DLQTopic == "" {
		cfg.Kafka.DLQTopic = DefaultKafkaDLQTopic
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Kafka.Concurrency == 0 {
		cfg.Kafka.Concurrency = 4
	}
	if cfg.Kafka.CommitInterval == 0 {
		cfg.Kafka.CommitInterval = time.Second
	}

	// ── Postgres ──────────────────────────────────────────────────────────────
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = DefaultPostgresHost
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Postgres.DBName == "" {
		cfg.Postgres.DBName = DefaultPostgresDBName
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = DefaultPostgresMaxConns
	}
	if cfg.Postgres.ConnMaxLifetime == 0 {
		cfg.Postgres.ConnMaxLifetime = time.Hour
	}
	if cfg.Postgres.ConnMaxIdleTime == 0 {
		cfg.Postgres.ConnMaxIdleTime = 30 * time.Minute
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

// Default returns a Config with every default applied, as used when neither
// a file nor environment variables are present.
func Default() *Config {
	cfg := &Config{}
	cfg.Sequencer.EnforceWindow = defaultBools["sequencer.enforce_window"]
	cfg.Metrics.Enabled = defaultBools["metrics.enabled"]
	cfg.Training.Dropout = defaultFloats["training.dropout"]
	cfg.Training.WeightDecay = defaultFloats["training.weight_decay"]
	ApplyDefaults(cfg)
	return cfg
}

//Personal.AI order the ending
