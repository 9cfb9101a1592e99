// Package config centralizes how audiodrop reads environment variables and
// exposes them as strongly typed values.
package config

import (
	"crypto/rand"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration for the API server and worker.
type Config struct {
	Address string

	// Ingress policy.
	MaxFileSizeBytes  int64
	AllowedMimeTypes  map[string]struct{}
	AllowedExtensions map[string]struct{}

	// Object storage. An empty S3Endpoint selects the in-memory store.
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Region     string
	S3UseSSL     bool
	UploadBucket string
	OutputBucket string

	// Metadata storage. An empty DatabaseURL selects the in-memory repository.
	DatabaseURL string

	// Redis, only needed when async processing is enabled.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SignedURLTTL    time.Duration
	CallTimeout     time.Duration
	AsyncProcessing bool
	WorkerCount     int

	SigningSecret []byte

	LogLevel  string
	LogFormat string
	DevMode   bool
}

const (
	defaultAddress     = ":8080"
	defaultMaxFileSize = 50 << 20 // 50 MiB
	defaultSignedTTL   = time.Hour
	defaultCallTimeout = 30 * time.Second
	defaultWorkerCount = 2

	defaultUploadBucket = "audio-uploads"
	defaultOutputBucket = "audio-processed"

	defaultAllowedMimeTypes = "audio/mpeg,audio/mp3,audio/x-mpeg,audio/x-mp3," +
		"audio/wav,audio/x-wav,audio/flac,audio/x-flac,audio/aac,audio/x-m4a"
	defaultAllowedExtensions = ".mp3"
)

// Load reads configuration from environment variables falling back to
// defaults. Invalid values fall back rather than aborting startup.
func Load() (*Config, error) {
	cfg := &Config{
		Address:           readEnv("AUDIODROP_ADDRESS", defaultAddress),
		MaxFileSizeBytes:  parseInt64("AUDIODROP_MAX_FILE_BYTES", defaultMaxFileSize),
		AllowedMimeTypes:  parseSet("AUDIODROP_ALLOWED_MIME_TYPES", defaultAllowedMimeTypes),
		AllowedExtensions: parseSet("AUDIODROP_ALLOWED_EXTENSIONS", defaultAllowedExtensions),

		S3Endpoint:   readEnv("AUDIODROP_S3_ENDPOINT", ""),
		S3AccessKey:  readEnv("AUDIODROP_S3_ACCESS_KEY", ""),
		S3SecretKey:  readEnv("AUDIODROP_S3_SECRET_KEY", ""),
		S3Region:     readEnv("AUDIODROP_S3_REGION", "us-east-1"),
		S3UseSSL:     parseBool("AUDIODROP_S3_USE_SSL", false),
		UploadBucket: readEnv("AUDIODROP_UPLOAD_BUCKET", defaultUploadBucket),
		OutputBucket: readEnv("AUDIODROP_OUTPUT_BUCKET", defaultOutputBucket),

		DatabaseURL: readEnv("DATABASE_URL", ""),

		RedisAddr:     readEnv("AUDIODROP_REDIS_ADDR", "localhost:6379"),
		RedisPassword: readEnv("AUDIODROP_REDIS_PASSWORD", ""),
		RedisDB:       parseInt("AUDIODROP_REDIS_DB", 0),

		SignedURLTTL:    parseDuration("AUDIODROP_SIGNED_TTL", defaultSignedTTL),
		CallTimeout:     parseDuration("AUDIODROP_CALL_TIMEOUT", defaultCallTimeout),
		AsyncProcessing: parseBool("AUDIODROP_ASYNC_PROCESSING", false),
		WorkerCount:     parseInt("AUDIODROP_WORKERS", defaultWorkerCount),

		SigningSecret: parseSecret("AUDIODROP_SIGNING_SECRET"),

		LogLevel:  readEnv("AUDIODROP_LOG_LEVEL", "info"),
		LogFormat: readEnv("AUDIODROP_LOG_FORMAT", "text"),
		DevMode:   parseBool("AUDIODROP_DEV_MODE", false),
	}
	if cfg.SigningSecret == nil {
		cfg.SigningSecret = randomSecret()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = defaultMaxFileSize
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaultWorkerCount
	}
	return cfg, nil
}

// Validate rejects combinations that cannot work across processes. Async
// processing hands jobs to a separate worker, so both backends must be shared
// ones; in-memory state is invisible outside the API process.
func (c *Config) Validate() error {
	if c.AsyncProcessing && (c.S3Endpoint == "" || c.DatabaseURL == "") {
		return errors.New("async processing requires AUDIODROP_S3_ENDPOINT and DATABASE_URL; in-memory backends cannot be shared with a worker")
	}
	return nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// parseSet builds a lowercased membership set from a comma separated list.
func parseSet(key, def string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, item := range strings.Split(readEnv(key, def), ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out[item] = struct{}{}
		}
	}
	return out
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// Extremely unlikely; a static fallback keeps single-node dev working.
		return []byte("audiodrop-dev-secret")
	}
	return buf
}
