package config

import (
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/pkasolver/pkg/errors"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "PKASOLVER"

// Sentinel errors returned by Load. They match with errors.Is.
var (
	ErrConfigFileNotFound = errors.New(errors.ErrCodeConfigInvalid, "config file not found")
	ErrConfigParseError   = errors.New(errors.ErrCodeConfigInvalid, "config file could not be parsed")
	ErrConfigValidation   = errors.New(errors.ErrCodeConfigInvalid, "config validation failed")
)

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Get returns the configuration most recently produced by Load, or nil.
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalCfg
}

func setGlobal(cfg *Config) {
	globalMu.Lock()
	globalCfg = cfg
	globalMu.Unlock()
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path        string
	searchPaths []string
	overrides   map[string]interface{}
	requireFile bool
}

// WithConfigPath loads exactly one file; a missing file is an error.
func WithConfigPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
		o.requireFile = true
	}
}

// WithSearchPaths looks for config.yaml in each directory in order. Finding
// none is not an error.
func WithSearchPaths(dirs ...string) LoadOption {
	return func(o *loadOptions) { o.searchPaths = append(o.searchPaths, dirs...) }
}

// WithOverrides sets keys after the file and environment are merged.
func WithOverrides(kv map[string]interface{}) LoadOption {
	return func(o *loadOptions) {
		if o.overrides == nil {
			o.overrides = map[string]interface{}{}
		}
		for k, v := range kv {
			o.overrides[k] = v
		}
	}
}

// newViper builds a Viper instance with YAML file type, the PKASOLVER_ env
// prefix and a "." to "_" key replacer, so that "redis.addr" resolves to
// PKASOLVER_REDIS_ADDR.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for k, b := range defaultBools {
		v.SetDefault(k, b)
	}
	for k, f := range defaultFloats {
		v.SetDefault(k, f)
	}
	bindEnvKeys(v)
	return v
}

// bindEnvKeys registers every known key so that AutomaticEnv can resolve it
// during Unmarshal even when the file does not mention it.
func bindEnvKeys(v *viper.Viper) {
	for _, k := range []string{
		"server.host", "server.port", "server.mode", "server.rate_limit_rps", "server.rate_limit_burst",
		"log.level", "log.format", "log.output",
		"model.artifact_key", "model.version",
		"sequencer.ph", "sequencer.mode", "sequencer.min_pka", "sequencer.max_pka", "sequencer.max_parallel",
		"training.variant", "training.max_epochs", "training.batch_size", "training.learning_rate",
		"storage.backend", "storage.local_dir",
		"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket", "minio.use_ssl",
		"redis.enabled", "redis.addr", "redis.password", "redis.db",
		"kafka.enabled", "kafka.brokers", "kafka.group_id",
		"postgres.enabled", "postgres.host", "postgres.port", "postgres.user", "postgres.password", "postgres.db_name",
		"metrics.namespace",
	} {
		_ = v.BindEnv(k)
	}
}

// Load merges a YAML file (when one is configured or found), PKASOLVER_*
// environment variables and overrides, applies defaults and validates the
// result. The returned Config also becomes the value of Get.
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	v := newViper()
	if err := readFile(v, o); err != nil {
		return nil, err
	}
	for k, val := range o.overrides {
		v.Set(k, val)
	}

	cfg, err := unmarshalAndFinalize(v)
	if err != nil {
		return nil, err
	}
	setGlobal(cfg)
	return cfg, nil
}

func readFile(v *viper.Viper, o *loadOptions) error {
	switch {
	case o.path != "":
		v.SetConfigFile(o.path)
	case len(o.searchPaths) > 0:
		v.SetConfigName("config")
		for _, p := range o.searchPaths {
			v.AddConfigPath(p)
		}
	default:
		return nil
	}

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	switch {
	case errors.As(err, &notFound):
		if o.requireFile {
			return ErrConfigFileNotFound.WithCause(err)
		}
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return ErrConfigFileNotFound.WithCause(err).WithDetail(o.path)
	default:
		return ErrConfigParseError.WithCause(err).WithDetail(o.path)
	}
}

// LoadFromFile is Load(WithConfigPath(path)).
func LoadFromFile(path string) (*Config, error) {
	return Load(WithConfigPath(path))
}

// LoadFromEnv builds a Config from PKASOLVER_* variables and defaults only.
//
//	PKASOLVER_<SECTION>_<FIELD>   e.g.  PKASOLVER_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	return Load()
}

// unmarshalAndFinalize unmarshals viper state into a Config, applies
// defaults and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, ErrConfigParseError.WithCause(err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, ErrConfigValidation.WithCause(err).WithDetail(err.Error())
	}
	return cfg, nil
}

// Watch reloads configPath whenever it changes on disk and calls onChange
// with the new Config. Invalid edits are reported to onError and otherwise
// ignored. Only settings that are safe to swap at runtime, such as the log
// level or sequencer defaults, should be applied by the callback.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return ErrConfigParseError.WithCause(err).WithDetail(configPath)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("config: reload of %s: %w", e.Name, err))
			}
			return
		}
		setGlobal(cfg)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on any error. It is meant for main().
func MustLoad(opts ...LoadOption) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

//Personal.AI order the ending
