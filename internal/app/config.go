package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv    string `envconfig:"APP_ENV" default:"development"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr      string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	WorkerHTTPAddr string `envconfig:"WORKER_HTTP_ADDR" default:"127.0.0.1:9090"`

	APIBaseURL   string `envconfig:"API_BASE_URL" default:"http://127.0.0.1:8080"`
	UploadURL    string `envconfig:"UPLOAD_URL" default:"http://127.0.0.1:8081"`
	PDFRenderURL string `envconfig:"PDF_RENDER_URL" default:"http://127.0.0.1:3000"`

	DraftKeyPrefix string        `envconfig:"DRAFT_KEY_PREFIX" default:"brushworks:draft:"`
	DraftDebounce  time.Duration `envconfig:"DRAFT_DEBOUNCE" default:"2s"`
	DraftRetention time.Duration `envconfig:"DRAFT_RETENTION" default:"168h"`

	DefaultTerms []string `envconfig:"DEFAULT_TERMS" default:"Quotation valid for 30 days,50% advance on acceptance,Balance due on completion"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.DraftDebounce <= 0 {
		return nil, errors.New("draft debounce must be positive")
	}
	if cfg.DraftRetention <= 0 {
		return nil, errors.New("draft retention must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
