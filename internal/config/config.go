package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env     string `env:"APP_ENV" envDefault:"dev"`
	Port    string `env:"PORT" envDefault:"3000"`
	BaseURL string `env:"PUBLIC_BASE_URL"`

	Log        Log        `envPrefix:"LOG_"`
	HTTP       HTTP       `envPrefix:"HTTP_"`
	Database   Database   `envPrefix:"DATABASE_"`
	Redis      Redis      `envPrefix:"REDIS_"`
	RateLimit  RateLimit  `envPrefix:"RATE_LIMIT_"`
	Queue      Queue      `envPrefix:"QUEUE_"`
	Archive    Archive    `envPrefix:"ARCHIVE_"`
	Cloudinary Cloudinary `envPrefix:"CLOUDINARY_"`
	MinIO      MinIO      `envPrefix:"MINIO_"`
	QR         QR         `envPrefix:"QR_"`
}

type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

type HTTP struct {
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// TrustedProxies are IPs or CIDRs whose X-Forwarded-* headers are honoured.
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","`
}

// Database.URL is either a sqlite file path or a postgres:// URL.
type Database struct {
	URL string `env:"URL" envDefault:"./database.sqlite"`
}

// Redis is optional; an empty Addr disables every redis-backed feature.
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type RateLimit struct {
	PerMin  int    `env:"PER_MIN" envDefault:"120"`
	Backend string `env:"BACKEND" envDefault:"memory"`
}

type Queue struct {
	Backend string `env:"BACKEND" envDefault:"memory"`
	Key     string `env:"KEY" envDefault:"attendance:qr"`
}

type Archive struct {
	Sink string `env:"SINK" envDefault:"none"`
	Dir  string `env:"DIR" envDefault:"./qr-archive"`
}

type Cloudinary struct {
	CloudName string `env:"CLOUD_NAME"`
	APIKey    string `env:"API_KEY"`
	APISecret string `env:"API_SECRET"`
	Folder    string `env:"FOLDER" envDefault:"attendance/qr"`
}

type MinIO struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"attendance-qr"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

type QR struct {
	Size int `env:"SIZE" envDefault:"256"`
}

// Load returns application config populated from environment variables with sensible defaults.
func Load() (*App, error) {
	cfg := App{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Production reports whether gin should run in release mode.
func (c *App) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

func (c *App) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if err := oneOf("LOG_FORMAT", c.Log.Format, "text", "json"); err != nil {
		return err
	}
	if err := oneOf("RATE_LIMIT_BACKEND", c.RateLimit.Backend, "memory", "redis"); err != nil {
		return err
	}
	if err := oneOf("QUEUE_BACKEND", c.Queue.Backend, "memory", "redis"); err != nil {
		return err
	}
	if err := oneOf("ARCHIVE_SINK", c.Archive.Sink, "none", "disk", "cloudinary", "minio"); err != nil {
		return err
	}
	if c.Redis.Addr == "" && (c.RateLimit.Backend == "redis" || c.Queue.Backend == "redis") {
		return fmt.Errorf("REDIS_ADDR is required for redis backends")
	}
	if c.Archive.Sink == "cloudinary" && (c.Cloudinary.CloudName == "" || c.Cloudinary.APIKey == "" || c.Cloudinary.APISecret == "") {
		return fmt.Errorf("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for the cloudinary sink")
	}
	if c.QR.Size <= 0 {
		return fmt.Errorf("QR_SIZE must be positive, got %d", c.QR.Size)
	}
	return nil
}

func oneOf(key, val string, allowed ...string) error {
	for _, a := range allowed {
		if val == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q, expected one of %s", key, val, strings.Join(allowed, ", "))
}
