package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSetting is returned by Validate when a required setting is absent.
var ErrMissingSetting = errors.New("missing required setting")

// Config holds application configuration loaded from environment.
// It is built once at startup and handed to constructors; components never read the environment themselves.
type Config struct {
	Server     ServerConfig
	Zoom       ZoomConfig
	Downstream DownstreamConfig
	Proxy      ProxyConfig
	Redis      RedisConfig
	AWS        AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	ShutdownTimeoutSec int
	LogLevel           string
}

// ZoomConfig holds the webhook secret and Server-to-Server OAuth app credentials.
type ZoomConfig struct {
	WebhookSecretToken string
	AccountID          string
	ClientID           string
	ClientSecret       string
	APIBaseURL         string // e.g. https://api.zoom.us/v2
	OAuthBaseURL       string // e.g. https://zoom.us
	TokenTimeoutSec    int
	PageTimeoutSec     int
	MaxPages           int // hard cap on pages per paginated fetch
}

// DownstreamConfig holds the automation (n8n) webhook targets.
type DownstreamConfig struct {
	EndedURL        string
	StartedURL      string // falls back to EndedURL
	TimeoutSec      int
	StartTimeoutSec int
	JWTSecret       string // optional; signs an HS256 bearer on every delivery
	JWTTTLMinutes   int
}

// ProxyConfig holds settings for the authenticated Zoom management proxy.
type ProxyConfig struct {
	JWTSecret string // empty disables the /api routes
}

// RedisConfig holds Redis connection settings for the relay event publisher.
type RedisConfig struct {
	Addr     string // empty disables publishing
	Password string
	DB       int
	Channel  string
}

// AWSConfig holds AWS credentials and the report archive bucket.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ArchiveBucket   string // empty disables archiving
	S3Endpoint      string // optional, for S3-compatible stores
}

// TokenTimeout is the bound on one OAuth token exchange.
func (c ZoomConfig) TokenTimeout() time.Duration {
	return seconds(c.TokenTimeoutSec, 10)
}

// PageTimeout is the bound on one page request.
func (c ZoomConfig) PageTimeout() time.Duration {
	return seconds(c.PageTimeoutSec, 10)
}

// Timeout is the bound on one enriched delivery.
func (c DownstreamConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSec, 30)
}

// StartTimeout is the bound on one session-start delivery.
func (c DownstreamConfig) StartTimeout() time.Duration {
	return seconds(c.StartTimeoutSec, 10)
}

// StartTarget returns the URL session-start notifications are delivered to.
func (c DownstreamConfig) StartTarget() string {
	if c.StartedURL != "" {
		return c.StartedURL
	}
	return c.EndedURL
}

// ShutdownTimeout bounds graceful shutdown, including draining background work.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return seconds(c.ShutdownTimeoutSec, 15)
}

// Load reads configuration from environment, with optional .env file, and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			ShutdownTimeoutSec: getEnvInt("SHUTDOWN_TIMEOUT_SEC", 15),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
		},
		Zoom: ZoomConfig{
			WebhookSecretToken: os.Getenv("ZOOM_WEBHOOK_SECRET_TOKEN"),
			AccountID:          os.Getenv("ZOOM_ACCOUNT_ID"),
			ClientID:           os.Getenv("ZOOM_CLIENT_ID"),
			ClientSecret:       os.Getenv("ZOOM_CLIENT_SECRET"),
			APIBaseURL:         strings.TrimRight(getEnv("ZOOM_API_BASE_URL", "https://api.zoom.us/v2"), "/"),
			OAuthBaseURL:       strings.TrimRight(getEnv("ZOOM_OAUTH_BASE_URL", "https://zoom.us"), "/"),
			TokenTimeoutSec:    getEnvInt("ZOOM_TOKEN_TIMEOUT_SEC", 10),
			PageTimeoutSec:     getEnvInt("ZOOM_PAGE_TIMEOUT_SEC", 10),
			MaxPages:           getEnvInt("ZOOM_MAX_PAGES", 1000),
		},
		Downstream: DownstreamConfig{
			EndedURL:        os.Getenv("N8N_WEBHOOK_URL"),
			StartedURL:      os.Getenv("N8N_START_WEBHOOK_URL"),
			TimeoutSec:      getEnvInt("DOWNSTREAM_TIMEOUT_SEC", 30),
			StartTimeoutSec: getEnvInt("START_DOWNSTREAM_TIMEOUT_SEC", 10),
			JWTSecret:       os.Getenv("DOWNSTREAM_JWT_SECRET"),
			JWTTTLMinutes:   getEnvInt("DOWNSTREAM_JWT_TTL_MINUTES", 5),
		},
		Proxy: ProxyConfig{
			JWTSecret: os.Getenv("PROXY_JWT_SECRET"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
			Channel:  getEnv("REDIS_EVENTS_CHANNEL", "relay:events"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			ArchiveBucket:   os.Getenv("AWS_S3_ARCHIVE_BUCKET"),
			S3Endpoint:      os.Getenv("AWS_S3_ENDPOINT"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every required setting that is empty.
func (c *Config) Validate() error {
	required := []struct {
		key, value string
	}{
		{"ZOOM_WEBHOOK_SECRET_TOKEN", c.Zoom.WebhookSecretToken},
		{"ZOOM_ACCOUNT_ID", c.Zoom.AccountID},
		{"ZOOM_CLIENT_ID", c.Zoom.ClientID},
		{"ZOOM_CLIENT_SECRET", c.Zoom.ClientSecret},
		{"N8N_WEBHOOK_URL", c.Downstream.EndedURL},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}
	return nil
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
