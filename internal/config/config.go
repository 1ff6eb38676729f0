// Package config loads server configuration from an optional YAML file, a
// .env file, and the process environment, in increasing precedence.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is the development signing secret. It is rejected in production.
const DefaultJWTSecret = "aida-dev-secret-change-me"

// DefaultMaxUploadBytes is the upload ceiling (10 MiB).
const DefaultMaxUploadBytes int64 = 10 << 20

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
	BackendAzure = "azure"
)

// Orphan policies applied when parsing fails after the data source exists.
const (
	OrphanRetain   = "retain"
	OrphanRollback = "rollback"
)

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	IssuerURL string `yaml:"issuer_url"` // OIDC issuer; enables JWKS verification
	Audience  string `yaml:"audience"`
}

// OIDCEnabled returns true when an external identity provider is configured.
func (a AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != ""
}

// S3Config addresses an S3-compatible bucket.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // optional, e.g. MinIO or Hetzner
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
}

// GCSConfig addresses a Google Cloud Storage bucket.
type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"` // empty uses application default credentials
	Prefix          string `yaml:"prefix"`
}

// AzureConfig addresses an Azure Blob Storage container.
type AzureConfig struct {
	AccountName string `yaml:"account_name"`
	AccountKey  string `yaml:"account_key"`
	Container   string `yaml:"container"`
	Endpoint    string `yaml:"endpoint"` // defaults to https://{account}.blob.core.windows.net
	Prefix      string `yaml:"prefix"`
}

// StorageConfig selects and configures the blob backend for uploads.
type StorageConfig struct {
	Backend   string      `yaml:"backend"`
	UploadDir string      `yaml:"upload_dir"`
	S3        S3Config    `yaml:"s3"`
	GCS       GCSConfig   `yaml:"gcs"`
	Azure     AzureConfig `yaml:"azure"`
}

// IngestConfig tunes the upload pipeline.
type IngestConfig struct {
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	OrphanPolicy    string        `yaml:"orphan_policy"`
	JanitorSchedule string        `yaml:"janitor_schedule"` // cron spec; empty disables
	JanitorGrace    time.Duration `yaml:"janitor_grace"`
}

// Config holds the server configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	MetaDBPath string `yaml:"meta_db_path"`
	LogLevel   string `yaml:"log_level"`
	Env        string `yaml:"env"`

	RateLimitRPS       float64  `yaml:"rate_limit_rps"`
	RateLimitBurst     int      `yaml:"rate_limit_burst"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Ingest  IngestConfig  `yaml:"ingest"`

	// Warnings collects non-fatal findings for the caller to log once the
	// logger exists.
	Warnings []string `yaml:"-"`
}

// SlogLevel maps LogLevel to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction reports whether ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load builds the configuration. path names an optional YAML file; an
// empty path falls back to $AIDA_CONFIG. Environment variables override
// file values.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		path = os.Getenv("AIDA_CONFIG")
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv builds the configuration from the environment alone.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func (c *Config) readFile(path string) error {
	raw, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.MetaDBPath, "META_DB_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Env, "ENV")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.IssuerURL, "AUTH_ISSUER_URL")
	setString(&c.Auth.Audience, "AUTH_AUDIENCE")

	s := &c.Storage
	setString(&s.Backend, "STORAGE_BACKEND")
	setString(&s.UploadDir, "UPLOAD_DIR")
	setString(&s.S3.Bucket, "S3_BUCKET")
	setString(&s.S3.Region, "S3_REGION")
	setString(&s.S3.Endpoint, "S3_ENDPOINT")
	setString(&s.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&s.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setString(&s.S3.Prefix, "S3_PREFIX")
	setString(&s.GCS.Bucket, "GCS_BUCKET")
	setString(&s.GCS.CredentialsFile, "GCS_CREDENTIALS_FILE")
	setString(&s.GCS.Prefix, "GCS_PREFIX")
	setString(&s.Azure.AccountName, "AZURE_ACCOUNT_NAME")
	setString(&s.Azure.AccountKey, "AZURE_ACCOUNT_KEY")
	setString(&s.Azure.Container, "AZURE_CONTAINER")
	setString(&s.Azure.Endpoint, "AZURE_ENDPOINT")
	setString(&s.Azure.Prefix, "AZURE_PREFIX")

	setString(&c.Ingest.OrphanPolicy, "AIDA_ORPHAN_POLICY")
	if v, ok := os.LookupEnv("JANITOR_SCHEDULE"); ok {
		c.Ingest.JanitorSchedule = strings.TrimSpace(v)
	}

	if err := setBool(&s.S3.PathStyle, "S3_PATH_STYLE"); err != nil {
		return err
	}
	if err := setInt64(&c.Ingest.MaxUploadBytes, "MAX_UPLOAD_BYTES"); err != nil {
		return err
	}
	if err := setDuration(&c.Ingest.ReadTimeout, "AIDA_UPLOAD_READ_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Ingest.JanitorGrace, "JANITOR_GRACE"); err != nil {
		return err
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimitRPS = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		c.RateLimitBurst = n
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.MetaDBPath == "" {
		c.MetaDBPath = "aida.sqlite"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RateLimitRPS == 0 {
		c.RateLimitRPS = 50
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 100
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "uploads"
	}
	if c.Ingest.MaxUploadBytes == 0 {
		c.Ingest.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Ingest.ReadTimeout == 0 {
		c.Ingest.ReadTimeout = 60 * time.Second
	}
	if c.Ingest.OrphanPolicy == "" {
		c.Ingest.OrphanPolicy = OrphanRetain
	}
	if _, set := os.LookupEnv("JANITOR_SCHEDULE"); !set && c.Ingest.JanitorSchedule == "" {
		c.Ingest.JanitorSchedule = "@every 1h"
	}
	if c.Ingest.JanitorGrace == 0 {
		c.Ingest.JanitorGrace = 15 * time.Minute
	}
	if c.Auth.JWTSecret == "" && !c.Auth.OIDCEnabled() {
		c.Auth.JWTSecret = DefaultJWTSecret
		c.Warnings = append(c.Warnings, "JWT_SECRET not set, using the development secret")
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendLocal:
	case BackendS3:
		s3 := c.Storage.S3
		if s3.Bucket == "" || s3.Region == "" || s3.AccessKeyID == "" || s3.SecretAccessKey == "" {
			return fmt.Errorf("S3_BUCKET, S3_REGION, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the s3 backend")
		}
	case BackendGCS:
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the gcs backend")
		}
	case BackendAzure:
		if c.Storage.Azure.AccountName == "" || c.Storage.Azure.AccountKey == "" || c.Storage.Azure.Container == "" {
			return fmt.Errorf("AZURE_ACCOUNT_NAME, AZURE_ACCOUNT_KEY and AZURE_CONTAINER are required for the azure backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want local, s3, gcs or azure)", c.Storage.Backend)
	}

	switch c.Ingest.OrphanPolicy {
	case OrphanRetain, OrphanRollback:
	default:
		return fmt.Errorf("unknown AIDA_ORPHAN_POLICY %q (want retain or rollback)", c.Ingest.OrphanPolicy)
	}
	if c.Ingest.MaxUploadBytes < 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Auth.OIDCEnabled() && c.Auth.Audience == "" {
		return fmt.Errorf("AUTH_AUDIENCE is required when AUTH_ISSUER_URL is set")
	}

	if c.IsProduction() {
		if c.Auth.JWTSecret == DefaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production (ENV=production)")
		}
		if len(c.CORSAllowedOrigins) == 1 && c.CORSAllowedOrigins[0] == "*" {
			return fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDotEnv copies KEY=VALUE lines from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, unquote(strings.TrimSpace(value))); err != nil {
			return fmt.Errorf("setenv %s: %w", key, err)
		}
	}
	return sc.Err()
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
