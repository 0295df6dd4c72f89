// Package config loads the weft service configuration from a YAML file and WEFT_*
// environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendFile   = "file"
)

// Config is the service configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Dispatch DispatchConfig `yaml:"dispatch" mapstructure:"dispatch"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`

	// Graphs are definition files stored at startup, keyed by file name without extension.
	Graphs []string `yaml:"graphs" mapstructure:"graphs"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type DispatchConfig struct {
	Workers   int           `yaml:"workers" mapstructure:"workers"`
	QueueSize int           `yaml:"queue_size" mapstructure:"queue_size"`
	RateLimit float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int           `yaml:"burst" mapstructure:"burst"`
	LockTTL   time.Duration `yaml:"lock_ttl" mapstructure:"lock_ttl"`
}

type StoreConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Dir is the root of the file backend.
	Dir string `yaml:"dir" mapstructure:"dir"`

	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix" mapstructure:"redis_prefix"`
	RunTTL        time.Duration `yaml:"run_ttl" mapstructure:"run_ttl"`

	// EncryptionKey enables at-rest encryption of run state. Base64, 32 bytes decoded.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`

	// FallbackKeys decrypt runs sealed with earlier keys.
	FallbackKeys []string `yaml:"fallback_keys" mapstructure:"fallback_keys"`

	// RedactKeys are regular expressions; matching data keys are masked before storage.
	RedactKeys []string `yaml:"redact_keys" mapstructure:"redact_keys"`
}

// EncryptionKeys decodes EncryptionKey and FallbackKeys. It returns a nil active key
// when encryption is disabled.
func (s StoreConfig) EncryptionKeys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		if len(s.FallbackKeys) > 0 {
			return nil, nil, errors.New("store.fallback_keys: requires store.encryption_key")
		}
		return nil, nil, nil
	}
	active, err = decodeKey("store.encryption_key", s.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(fmt.Sprintf("store.fallback_keys[%d]", i), k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(field, s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base64: %w", field, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s: must decode to 32 bytes, got %d", field, len(key))
	}
	return key, nil
}

type EngineConfig struct {
	// MaxSteps bounds step executions per run. Zero means unbounded.
	MaxSteps int `yaml:"max_steps" mapstructure:"max_steps"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:  LogConfig{Level: "info", Format: "auto"},
		HTTP: HTTPConfig{Addr: ":8000", ShutdownTimeout: 10 * time.Second},
		Dispatch: DispatchConfig{
			Workers:   4,
			QueueSize: 128,
			Burst:     1,
			LockTTL:   time.Minute,
		},
		Store: StoreConfig{
			Backend:     BackendMemory,
			Dir:         "./weft-data",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "weft:",
			RunTTL:      24 * time.Hour,
		},
	}
}

// envKeys maps environment variables to their position in the configuration tree.
var envKeys = map[string][]string{
	"WEFT_LOG_LEVEL":             {"log", "level"},
	"WEFT_LOG_FORMAT":            {"log", "format"},
	"WEFT_HTTP_ADDR":             {"http", "addr"},
	"WEFT_HTTP_SHUTDOWN_TIMEOUT": {"http", "shutdown_timeout"},
	"WEFT_DISPATCH_WORKERS":      {"dispatch", "workers"},
	"WEFT_DISPATCH_QUEUE_SIZE":   {"dispatch", "queue_size"},
	"WEFT_DISPATCH_RATE_LIMIT":   {"dispatch", "rate_limit"},
	"WEFT_DISPATCH_BURST":        {"dispatch", "burst"},
	"WEFT_DISPATCH_LOCK_TTL":     {"dispatch", "lock_ttl"},
	"WEFT_STORE_BACKEND":         {"store", "backend"},
	"WEFT_STORE_DIR":             {"store", "dir"},
	"WEFT_STORE_REDIS_ADDR":      {"store", "redis_addr"},
	"WEFT_STORE_REDIS_PASSWORD":  {"store", "redis_password"},
	"WEFT_STORE_REDIS_DB":        {"store", "redis_db"},
	"WEFT_STORE_REDIS_PREFIX":    {"store", "redis_prefix"},
	"WEFT_STORE_RUN_TTL":         {"store", "run_ttl"},
	"WEFT_STORE_ENCRYPTION_KEY":  {"store", "encryption_key"},
	"WEFT_STORE_FALLBACK_KEYS":   {"store", "fallback_keys"},
	"WEFT_STORE_REDACT_KEYS":     {"store", "redact_keys"},
	"WEFT_ENGINE_MAX_STEPS":      {"engine", "max_steps"},
	"WEFT_GRAPHS":                {"graphs"},
}

// Load builds the configuration from defaults, the YAML file at path (skipped when
// path is empty or the file does not exist) and WEFT_* environment variables, in
// increasing precedence.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	tree := map[string]any{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &tree); err != nil {
				return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
			}
			if tree == nil {
				tree = map[string]any{}
			}
		}
	}

	for env, keys := range envKeys {
		if v, ok := lookupEnv(env); ok {
			setPath(tree, keys, v)
		}
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(tree); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setPath(tree map[string]any, keys []string, v string) {
	for _, k := range keys[:len(keys)-1] {
		next, ok := tree[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			tree[k] = next
		}
		tree = next
	}
	tree[keys[len(keys)-1]] = v
}

// Validate reports settings no component can start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendMemory, BackendRedis, BackendFile:
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if c.Store.Backend == BackendFile && strings.TrimSpace(c.Store.Dir) == "" {
		errs = append(errs, errors.New("store.dir: required for the file backend"))
	}
	if c.Dispatch.Workers <= 0 {
		errs = append(errs, errors.New("dispatch.workers: must be positive"))
	}
	if c.Dispatch.QueueSize <= 0 {
		errs = append(errs, errors.New("dispatch.queue_size: must be positive"))
	}
	if c.Dispatch.RateLimit < 0 {
		errs = append(errs, errors.New("dispatch.rate_limit: must not be negative"))
	}
	if _, _, err := c.Store.EncryptionKeys(); err != nil {
		errs = append(errs, err)
	}
	if c.Engine.MaxSteps < 0 {
		errs = append(errs, errors.New("engine.max_steps: must not be negative"))
	}
	return errors.Join(errs...)
}
