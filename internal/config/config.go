// Package config loads diagramir settings.
//
// Values are layered, later layers winning: built-in defaults, the TOML file,
// a .env file in the working directory, then process environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/diagramir/pkg/errors"
)

const appName = "diagramir"

// Taxonomy source kinds.
const (
	SourceFile     = "file"
	SourceSupabase = "supabase"
	SourcePostgres = "postgres"
	SourceMongo    = "mongo"
	SourceS3       = "s3"
)

// Defaults.
const (
	DefaultRefreshSec     = 3600
	DefaultPageSize       = 1000
	DefaultFuzzyThreshold = 85
	DefaultCacheSize      = 4096
	DefaultAddr           = ":8080"
	DefaultMongoDatabase  = appName
)

// Config is the full application configuration.
type Config struct {
	Taxonomy   TaxonomyConfig   `toml:"taxonomy"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Mongo      MongoConfig      `toml:"mongo"`
	S3         S3Config         `toml:"s3"`
	Redis      RedisConfig      `toml:"redis"`
	Classifier ClassifierConfig `toml:"classifier"`
	Server     ServerConfig     `toml:"server"`
}

// TaxonomyConfig controls the taxonomy store.
type TaxonomyConfig struct {
	Source       string `toml:"source"`
	File         string `toml:"file"`
	RefreshSec   int    `toml:"refresh_sec"`
	CacheDir     string `toml:"cache_dir"`
	ForceRefresh bool   `toml:"force_refresh"`
	PageSize     int    `toml:"page_size"`
	AutoRefresh  bool   `toml:"auto_refresh"`
}

// RefreshInterval returns RefreshSec as a duration. Zero means a loaded
// index never expires and no background refresher runs.
func (t TaxonomyConfig) RefreshInterval() time.Duration {
	return time.Duration(t.RefreshSec) * time.Second
}

// SupabaseConfig points at a Supabase project.
type SupabaseConfig struct {
	URL   string `toml:"url"`
	Key   string `toml:"key"`
	Table string `toml:"table"`
	RPC   string `toml:"rpc"`
}

// PostgresConfig points at a Postgres database.
type PostgresConfig struct {
	DSN     string `toml:"dsn"`
	Table   string `toml:"table"`
	Listen  bool   `toml:"listen"`
	Channel string `toml:"channel"`
}

// MongoConfig points at a MongoDB database.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// S3Config points at an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	UseSSL    bool   `toml:"use_ssl"`
}

// RedisConfig enables the shared snapshot tier when URL is set.
type RedisConfig struct {
	URL string `toml:"url"`
}

// ClassifierConfig tunes the classifier.
type ClassifierConfig struct {
	Rules          string `toml:"rules"`
	FuzzyThreshold int    `toml:"fuzzy_threshold"`
	CacheSize      int    `toml:"cache_size"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Taxonomy: TaxonomyConfig{
			Source:     SourceFile,
			RefreshSec: DefaultRefreshSec,
			CacheDir:   DefaultCacheDir(),
			PageSize:   DefaultPageSize,
		},
		Mongo:      MongoConfig{Database: DefaultMongoDatabase},
		Classifier: ClassifierConfig{FuzzyThreshold: DefaultFuzzyThreshold, CacheSize: DefaultCacheSize},
		Server:     ServerConfig{Addr: DefaultAddr},
	}
}

// DefaultCacheDir returns $XDG_CACHE_HOME/diagramir or ~/.cache/diagramir.
func DefaultCacheDir() string {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(home, ".cache", appName)
}

// DefaultPath returns $XDG_CONFIG_HOME/diagramir/config.toml or
// ~/.config/diagramir/config.toml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.toml")
}

// Load builds the configuration. An explicit path must exist; an empty path
// reads [DefaultPath] when present. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, explicit := path, path != ""
	if !explicit {
		file = DefaultPath()
	}
	if file != "" {
		if _, err := toml.DecodeFile(file, cfg); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", file)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read .env")
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("TAXONOMY_SOURCE", &c.Taxonomy.Source)
	e.str("TAXONOMY_FILE", &c.Taxonomy.File)
	e.int("TAXONOMY_REFRESH_SEC", &c.Taxonomy.RefreshSec)
	e.str("TAXONOMY_CACHE_DIR", &c.Taxonomy.CacheDir)
	e.bool("TAXONOMY_FORCE_REFRESH", &c.Taxonomy.ForceRefresh)
	e.int("TAXONOMY_PAGE_SIZE", &c.Taxonomy.PageSize)

	e.str("SUPABASE_URL", &c.Supabase.URL)
	e.str("SUPABASE_KEY", &c.Supabase.Key)

	e.str("DATABASE_URL", &c.Postgres.DSN)
	e.bool("TAXONOMY_LISTEN", &c.Postgres.Listen)

	e.str("MONGO_URI", &c.Mongo.URI)
	e.str("MONGO_DATABASE", &c.Mongo.Database)

	e.str("S3_ENDPOINT", &c.S3.Endpoint)
	e.str("S3_REGION", &c.S3.Region)
	e.str("S3_ACCESS_KEY", &c.S3.AccessKey)
	e.str("S3_SECRET_KEY", &c.S3.SecretKey)
	e.str("S3_BUCKET", &c.S3.Bucket)
	e.str("S3_PREFIX", &c.S3.Prefix)
	e.bool("S3_USE_SSL", &c.S3.UseSSL)

	e.str("REDIS_URL", &c.Redis.URL)

	e.str("CLASSIFIER_RULES", &c.Classifier.Rules)
	e.int("CLASSIFIER_FUZZY_THRESHOLD", &c.Classifier.FuzzyThreshold)
	e.int("CLASSIFIER_CACHE_SIZE", &c.Classifier.CacheSize)

	e.str("HTTP_ADDR", &c.Server.Addr)

	return e.err
}

// envReader copies set variables into fields and keeps the first parse error.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func (e *envReader) int(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(key, v)
		return
	}
	*dst = n
}

func (e *envReader) bool(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.fail(key, v)
		return
	}
	*dst = b
}

func (e *envReader) fail(key, v string) {
	if e.err == nil {
		e.err = errors.New(errors.ErrCodeInvalidConfig, "invalid value for %s: %q", key, v)
	}
}

// Validate checks that the selected source is fully configured and numeric
// settings are in range.
func (c *Config) Validate() error {
	t := c.Taxonomy
	if t.RefreshSec < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "taxonomy.refresh_sec must not be negative, got %d", t.RefreshSec)
	}
	if t.PageSize <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "taxonomy.page_size must be positive, got %d", t.PageSize)
	}
	if t.CacheDir != "" {
		if err := errors.ValidatePath(t.CacheDir); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "taxonomy.cache_dir")
		}
	}
	if n := c.Classifier.FuzzyThreshold; n < 0 || n > 100 {
		return errors.New(errors.ErrCodeInvalidConfig, "classifier.fuzzy_threshold must be within 0..100, got %d", n)
	}
	if c.Classifier.CacheSize < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "classifier.cache_size cannot be negative")
	}

	switch t.Source {
	case SourceFile:
		if t.File != "" {
			if err := errors.ValidatePath(t.File); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidConfig, err, "taxonomy.file")
			}
		}
	case SourceSupabase:
		if err := errors.ValidateURL(c.Supabase.URL); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "supabase.url")
		}
		if c.Supabase.Key == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "supabase.key is required")
		}
	case SourcePostgres:
		if err := errors.ValidateDSN(c.Postgres.DSN, "postgres", "postgresql"); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "postgres.dsn (DATABASE_URL)")
		}
	case SourceMongo:
		if err := errors.ValidateDSN(c.Mongo.URI, "mongodb", "mongodb+srv"); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "mongo.uri (MONGO_URI)")
		}
	case SourceS3:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "s3.endpoint and s3.bucket are required")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown taxonomy source %q", t.Source)
	}

	if c.Postgres.Listen && c.Postgres.DSN == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "postgres.listen requires postgres.dsn")
	}
	if c.Redis.URL != "" {
		if err := errors.ValidateDSN(c.Redis.URL, "redis", "rediss"); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "redis.url (REDIS_URL)")
		}
	}
	return nil
}
