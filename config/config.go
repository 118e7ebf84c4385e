package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// BucketName is the fixed object-store bucket for uploaded videos.
const BucketName = "videos"

// Object store client drivers.
const (
	DriverS3    = "s3"
	DriverMinIO = "minio"
)

// Orphan policies applied when a metadata insert fails after the object was written.
const (
	OrphanKeep   = "keep"
	OrphanDelete = "delete"
	OrphanQueue  = "queue"
)

// Config holds application configuration resolved once at startup.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	ObjectStore ObjectStoreConfig
	Redis       RedisConfig
	Ingest      IngestConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	UploadDir          string
	MaxUploadBytes     int64
	CORSAllowedOrigins string // comma-separated, or "*" for all
	LogLevel           string
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ObjectStoreConfig holds S3-compatible storage settings. Enabled is false when no endpoint is configured.
type ObjectStoreConfig struct {
	Enabled   bool
	Driver    string
	Host      string
	Port      int
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Endpoint returns the base URL of the object store.
func (c ObjectStoreConfig) Endpoint() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.HostPort())
}

// HostPort returns host:port of the object store.
func (c ObjectStoreConfig) HostPort() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RedisConfig holds Redis connection settings. Empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IngestConfig holds upload ingestion settings.
type IngestConfig struct {
	OrphanPolicy string
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Load reads configuration from environment, with optional .env file.
func Load() *Config {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)
	return Resolve(os.Getenv)
}

// Resolve builds the configuration from an environment lookup function.
// It performs no I/O and has no failure path: every setting has a default,
// and a missing object-store endpoint only disables the object store.
func Resolve(getenv func(string) string) *Config {
	e := env(getenv)

	cfg := &Config{
		Server: ServerConfig{
			Host:               e.str("0.0.0.0", "HOST"),
			Port:               e.str("4000", "PORT"),
			ReadTimeout:        e.num(0, "READ_TIMEOUT_SEC"),
			WriteTimeout:       e.num(0, "WRITE_TIMEOUT_SEC"),
			UploadDir:          e.str("uploads", "UPLOAD_DIR"),
			MaxUploadBytes:     int64(e.num(100*1024*1024, "MAX_UPLOAD_BYTES")),
			CORSAllowedOrigins: e.str("*", "CORS_ALLOWED_ORIGINS"),
			LogLevel:           e.str("info", "LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:     e.str("db", "PGHOST", "DB_HOST"),
			Port:     e.num(5432, "PGPORT", "DB_PORT"),
			User:     e.str("root", "PGUSER", "DB_USER"),
			Password: e.str("root", "PGPASSWORD", "DB_PASSWORD"),
			DBName:   e.str("vigila", "PGDATABASE", "DB_NAME"),
			SSLMode:  e.str("disable", "DB_SSLMODE"),
		},
		ObjectStore: ObjectStoreConfig{
			Driver:    strings.ToLower(e.str(DriverS3, "S3_DRIVER")),
			Port:      e.num(9000, "S3_PORT", "MINIO_PORT"),
			AccessKey: e.str("admin", "S3_ACCESS_KEY", "MINIO_ACCESS_KEY"),
			SecretKey: e.str("admin123", "S3_SECRET_KEY", "MINIO_SECRET_KEY"),
			Bucket:    BucketName,
			Region:    e.str("us-east-1", "S3_REGION"),
			UseSSL:    e.flag(false, "S3_USE_SSL"),
		},
		Redis: RedisConfig{
			Addr:     e.str("", "REDIS_ADDR"),
			Password: e.str("", "REDIS_PASSWORD"),
			DB:       e.num(0, "REDIS_DB"),
		},
		Ingest: IngestConfig{
			OrphanPolicy: orphanPolicy(e.str(OrphanKeep, "ORPHAN_POLICY")),
		},
	}

	if raw := e.str("", "S3_ENDPOINT", "MINIO_ENDPOINT"); raw != "" {
		if host := NormalizeEndpoint(raw); host != "" {
			cfg.ObjectStore.Enabled = true
			cfg.ObjectStore.Host = host
		}
	}
	if cfg.ObjectStore.Driver != DriverMinIO {
		cfg.ObjectStore.Driver = DriverS3
	}
	return cfg
}

// NormalizeEndpoint reduces an endpoint such as "http://storage:9000/path" to its bare host.
func NormalizeEndpoint(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	if i := strings.LastIndexByte(s, ':'); i >= 0 && !strings.Contains(s[:i], ":") {
		s = s[:i]
	}
	return strings.Trim(s, "[]")
}

func orphanPolicy(v string) string {
	switch v = strings.ToLower(v); v {
	case OrphanDelete, OrphanQueue:
		return v
	default:
		return OrphanKeep
	}
}

// env looks up the first non-empty value among a primary variable and its aliases.
type env func(string) string

func (e env) lookup(keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(e(k)); v != "" {
			return v
		}
	}
	return ""
}

func (e env) str(fallback string, keys ...string) string {
	if v := e.lookup(keys); v != "" {
		return v
	}
	return fallback
}

func (e env) num(fallback int, keys ...string) int {
	if v := e.lookup(keys); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (e env) flag(fallback bool, keys ...string) bool {
	if v := e.lookup(keys); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
