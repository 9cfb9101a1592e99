package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, int64(50<<20), cfg.MaxFileSizeBytes)
	assert.Equal(t, time.Hour, cfg.SignedURLTTL)
	assert.Contains(t, cfg.AllowedMimeTypes, "audio/mpeg")
	assert.Contains(t, cfg.AllowedExtensions, ".mp3")
	assert.NotEmpty(t, cfg.SigningSecret)
	assert.False(t, cfg.AsyncProcessing)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUDIODROP_MAX_FILE_BYTES", "1024")
	t.Setenv("AUDIODROP_ALLOWED_MIME_TYPES", "Audio/FLAC, audio/wav")
	t.Setenv("AUDIODROP_SIGNED_TTL", "15m")
	t.Setenv("AUDIODROP_ASYNC_PROCESSING", "true")
	t.Setenv("AUDIODROP_SIGNING_SECRET", "hunter2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(1024), cfg.MaxFileSizeBytes)
	// Entries are lowercased and trimmed.
	assert.Contains(t, cfg.AllowedMimeTypes, "audio/flac")
	assert.Contains(t, cfg.AllowedMimeTypes, "audio/wav")
	assert.NotContains(t, cfg.AllowedMimeTypes, "audio/mpeg")
	assert.Equal(t, 15*time.Minute, cfg.SignedURLTTL)
	assert.True(t, cfg.AsyncProcessing)
	assert.Equal(t, []byte("hunter2"), cfg.SigningSecret)
}

func TestValidateAsyncRequiresSharedBackends(t *testing.T) {
	cfg := &Config{AsyncProcessing: true}
	require.Error(t, cfg.Validate())

	cfg.S3Endpoint = "minio:9000"
	require.Error(t, cfg.Validate())

	cfg.DatabaseURL = "postgres://audiodrop@postgres/audiodrop"
	assert.NoError(t, cfg.Validate())

	// Sync mode works with any backend combination.
	sync := &Config{AsyncProcessing: false}
	assert.NoError(t, sync.Validate())
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("AUDIODROP_MAX_FILE_BYTES", "not-a-number")
	t.Setenv("AUDIODROP_SIGNED_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(50<<20), cfg.MaxFileSizeBytes)
	assert.Equal(t, time.Hour, cfg.SignedURLTTL)
}
