package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "3000", cfg.Port)
	assert.Empty(t, cfg.BaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "./database.sqlite", cfg.Database.URL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.HTTP.TrustedProxies)
	assert.Equal(t, 120, cfg.RateLimit.PerMin)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, "none", cfg.Archive.Sink)
	assert.Equal(t, 256, cfg.QR.Size)
	assert.False(t, cfg.Production())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected func(*App)
	}{
		{
			name:    "port and env",
			envVars: map[string]string{"PORT": "8080", "APP_ENV": "prod"},
			expected: func(cfg *App) {
				assert.Equal(t, "8080", cfg.Port)
				assert.True(t, cfg.Production())
			},
		},
		{
			name:    "postgres database",
			envVars: map[string]string{"DATABASE_URL": "postgres://u:p@localhost:5432/att?sslmode=disable"},
			expected: func(cfg *App) {
				assert.Equal(t, "postgres://u:p@localhost:5432/att?sslmode=disable", cfg.Database.URL)
			},
		},
		{
			name: "redis backends",
			envVars: map[string]string{
				"REDIS_ADDR":         "localhost:6379",
				"REDIS_DB":           "2",
				"RATE_LIMIT_BACKEND": "redis",
				"QUEUE_BACKEND":      "redis",
				"QUEUE_KEY":          "custom:key",
			},
			expected: func(cfg *App) {
				assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
				assert.Equal(t, 2, cfg.Redis.DB)
				assert.Equal(t, "redis", cfg.RateLimit.Backend)
				assert.Equal(t, "redis", cfg.Queue.Backend)
				assert.Equal(t, "custom:key", cfg.Queue.Key)
			},
		},
		{
			name: "minio archive",
			envVars: map[string]string{
				"ARCHIVE_SINK":         "minio",
				"MINIO_ENDPOINT":       "minio.local:9000",
				"MINIO_BUCKET":         "badges",
				"MINIO_USE_SSL":        "true",
				"HTTP_READ_TIMEOUT":    "3s",
				"HTTP_TRUSTED_PROXIES": "10.0.0.0/8,127.0.0.1",
			},
			expected: func(cfg *App) {
				assert.Equal(t, "minio", cfg.Archive.Sink)
				assert.Equal(t, "minio.local:9000", cfg.MinIO.Endpoint)
				assert.Equal(t, "badges", cfg.MinIO.Bucket)
				assert.True(t, cfg.MinIO.UseSSL)
				assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
				assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.HTTP.TrustedProxies)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()
			require.NoError(t, err)

			tt.expected(cfg)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{name: "unknown log format", envVars: map[string]string{"LOG_FORMAT": "xml"}},
		{name: "unknown sink", envVars: map[string]string{"ARCHIVE_SINK": "ftp"}},
		{name: "redis queue without addr", envVars: map[string]string{"QUEUE_BACKEND": "redis"}},
		{name: "cloudinary without credentials", envVars: map[string]string{"ARCHIVE_SINK": "cloudinary"}},
		{name: "zero qr size", envVars: map[string]string{"QR_SIZE": "0"}},
		{name: "bad duration", envVars: map[string]string{"HTTP_READ_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
