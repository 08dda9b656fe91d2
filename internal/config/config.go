package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the annosearch API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Records  RecordsConfig  `yaml:"records"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig maps API keys to the users they authenticate. Empty disables auth.
type AuthConfig struct {
	APIKeys map[string]string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Database drivers.
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	DialTimeoutSec   int      `yaml:"dial_timeout_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds HNSW settings of the per-dataset vector fields.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// SearchConfig bounds backend queries.
type SearchConfig struct {
	TimeoutMs   int `yaml:"timeout_ms"`
	Concurrency int `yaml:"concurrency"` // parallel count queries of progress metrics
}

// RecordsConfig holds record write limits.
type RecordsConfig struct {
	MaxBulk int `yaml:"max_bulk"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// ReadTimeout is the server read timeout.
func (h HTTPConfig) ReadTimeout() time.Duration { return seconds(h.ReadTimeoutSec) }

// WriteTimeout is the server write timeout.
func (h HTTPConfig) WriteTimeout() time.Duration { return seconds(h.WriteTimeoutSec) }

// ShutdownTimeout bounds graceful shutdown.
func (h HTTPConfig) ShutdownTimeout() time.Duration { return seconds(h.ShutdownSec) }

// DialTimeout bounds each connection attempt.
func (d DatabaseConfig) DialTimeout() time.Duration { return seconds(d.DialTimeoutSec) }

// ReadyTimeout bounds the wait for the store at startup.
func (d DatabaseConfig) ReadyTimeout() time.Duration { return seconds(d.ReadinessTimeout) }

// Timeout bounds each search engine call.
func (s SearchConfig) Timeout() time.Duration { return time.Duration(s.TimeoutMs) * time.Millisecond }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Load reads config/<env>.yaml, expands ${VAR} references, applies
// defaults and validates the result.
func Load(env string) (Config, error) {
	path := findConfigPath(env)
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns $ENV, or "local" when unset.
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// orDefault sets *v to def when *v is the zero value.
func orDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

// ApplyDefaults fills unset fields. Negative numbers are treated as unset.
func (c *Config) ApplyDefaults() {
	for _, n := range []*int{
		&c.HTTP.ReadTimeoutSec, &c.HTTP.WriteTimeoutSec, &c.HTTP.ShutdownSec,
		&c.Database.DialTimeoutSec, &c.Database.ReadinessTimeout,
		&c.Index.HNSWM, &c.Index.HNSWEFConstruct,
		&c.Search.TimeoutMs, &c.Search.Concurrency, &c.Records.MaxBulk,
	} {
		if *n < 0 {
			*n = 0
		}
	}

	orDefault(&c.HTTP.ReadTimeoutSec, 10)
	orDefault(&c.HTTP.WriteTimeoutSec, 10)
	orDefault(&c.HTTP.ShutdownSec, 10)
	orDefault(&c.Database.Driver, DriverRedis)
	orDefault(&c.Database.DialTimeoutSec, 5)
	orDefault(&c.Database.ReadinessTimeout, 10)
	orDefault(&c.Index.HNSWM, 16)
	orDefault(&c.Index.HNSWEFConstruct, 200)
	orDefault(&c.Search.TimeoutMs, 5000)
	orDefault(&c.Search.Concurrency, 4)
	orDefault(&c.Records.MaxBulk, 1000)
	orDefault(&c.Storage.KeyPrefix, "annosearch:")
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			errs = append(errs, errors.New("database.addrs is required for the redis driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q",
			DriverRedis, DriverMemory, c.Database.Driver))
	}

	for key, user := range c.Auth.APIKeys {
		if key == "" || user == "" {
			errs = append(errs, errors.New("auth.api_keys entries need a key and a user"))
			break
		}
	}
	return errors.Join(errs...)
}

// findConfigPath prefers ./config, then the repository's config directory.
func findConfigPath(env string) string {
	name := filepath.Join("config", env+".yaml")
	if fileExists(name) {
		return name
	}
	_, self, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(self), "..", "..")
	if p := filepath.Join(root, name); fileExists(p) {
		return p
	}
	return name
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// envRef matches ${VAR} and ${VAR:-default}.
var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name, def, hasDef := strings.Cut(string(ref[2:len(ref)-1]), ":-")
		if v := os.Getenv(name); v != "" || !hasDef {
			return []byte(v)
		}
		return []byte(def)
	})
}
