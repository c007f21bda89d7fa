package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configFileEnv = "CONFIG_FILE"

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
// Precedence: defaults, then the YAML file named by CONFIG_FILE, then env.
type Config struct {
	ServiceName string `yaml:"service_name"`
	HTTPPort    string `yaml:"http_port"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`

	PostgresDSN string `yaml:"postgres_dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`

	QueueDriver string        `yaml:"queue_driver"`
	StateDriver string        `yaml:"state_driver"`
	StateTTL    time.Duration `yaml:"state_ttl"`
	SQLitePath  string        `yaml:"sqlite_path"`

	Worker    WorkerConfig   `yaml:"worker"`
	Providers ProviderConfig `yaml:"providers"`
	SMTP      SMTPConfig     `yaml:"smtp"`
	Assets    AssetConfig    `yaml:"assets"`
	Retry     RetryConfig    `yaml:"retry"`
	Prompts   PromptsConfig  `yaml:"prompts"`
}

type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	Lease        time.Duration `yaml:"lease"`
}

type ProviderConfig struct {
	OpenRouterAPIKey  string        `yaml:"openrouter_api_key"`
	OpenRouterBaseURL string        `yaml:"openrouter_base_url"`
	PromptModel       string        `yaml:"prompt_model"`
	SiteURL           string        `yaml:"site_url"`
	OpenAIAPIKey      string        `yaml:"openai_api_key"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	FalAPIKey         string        `yaml:"fal_api_key"`
	FalBaseURL        string        `yaml:"fal_base_url"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	VideoPollInterval time.Duration `yaml:"video_poll_interval"`
	VideoMaxPolls     int           `yaml:"video_max_polls"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type AssetConfig struct {
	Dir                string `yaml:"dir"`
	PublicBaseURL      string `yaml:"public_base_url"`
	RehostEditedImages bool   `yaml:"rehost_edited_images"`
}

type RetryConfig struct {
	PromptRetries       int           `yaml:"prompt_retries"`
	ImageEditRetries    int           `yaml:"image_edit_retries"`
	VideoRetries        int           `yaml:"video_retries"`
	ContinuationRetries int           `yaml:"continuation_retries"`
	NotifyRetries       int           `yaml:"notify_retries"`
	BaseDelay           time.Duration `yaml:"base_delay"`
	MaxDelay            time.Duration `yaml:"max_delay"`
}

type PromptsConfig struct {
	AutoApprove bool `yaml:"auto_approve"`
}

func Defaults() Config {
	return Config{
		ServiceName: "turntable",
		HTTPPort:    "8080",
		LogLevel:    "info",
		LogFormat:   "text",
		AutoMigrate: true,
		QueueDriver: DriverPostgres,
		StateDriver: DriverPostgres,
		StateTTL:    time.Hour,
		SQLitePath:  "turntable-state.db",
		Worker: WorkerConfig{
			Concurrency:  4,
			PollInterval: time.Second,
			BatchSize:    10,
			Lease:        15 * time.Minute,
		},
		Providers: ProviderConfig{
			OpenRouterBaseURL: "https://openrouter.ai/api/v1/",
			PromptModel:       "openai/gpt-4.1",
			OpenAIBaseURL:     "https://api.openai.com/v1/",
			FalBaseURL:        "https://queue.fal.run/",
			RequestTimeout:    60 * time.Second,
			VideoPollInterval: 12 * time.Second,
			VideoMaxPolls:     45,
		},
		SMTP: SMTPConfig{Port: 587},
		Assets: AssetConfig{
			Dir: "assets",
		},
		Retry: RetryConfig{
			PromptRetries:       3,
			ImageEditRetries:    2,
			VideoRetries:        1,
			ContinuationRetries: 3,
			NotifyRetries:       3,
			BaseDelay:           time.Second,
			MaxDelay:            5 * time.Minute,
		},
		Prompts: PromptsConfig{AutoApprove: true},
	}
}

func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.ServiceName = envString("SERVICE_NAME", cfg.ServiceName)
	cfg.HTTPPort = envString("HTTP_PORT", cfg.HTTPPort)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envString("LOG_FORMAT", cfg.LogFormat)
	cfg.PostgresDSN = envString("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.AutoMigrate = envBool("AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.QueueDriver = strings.ToLower(envString("QUEUE_DRIVER", cfg.QueueDriver))
	cfg.StateDriver = strings.ToLower(envString("STATE_DRIVER", cfg.StateDriver))
	cfg.StateTTL = envDuration("STATE_TTL", cfg.StateTTL)
	cfg.SQLitePath = envString("SQLITE_PATH", cfg.SQLitePath)

	cfg.Worker.Concurrency = envInt("WORKER_CONCURRENCY", cfg.Worker.Concurrency)
	cfg.Worker.PollInterval = envDuration("WORKER_POLL_INTERVAL", cfg.Worker.PollInterval)
	cfg.Worker.BatchSize = envInt("WORKER_BATCH_SIZE", cfg.Worker.BatchSize)
	cfg.Worker.Lease = envDuration("WORKER_LEASE", cfg.Worker.Lease)

	cfg.Providers.OpenRouterAPIKey = envString("OPENROUTER_API_KEY", cfg.Providers.OpenRouterAPIKey)
	cfg.Providers.OpenRouterBaseURL = envString("OPENROUTER_BASE_URL", cfg.Providers.OpenRouterBaseURL)
	cfg.Providers.PromptModel = envString("PROMPT_MODEL", cfg.Providers.PromptModel)
	cfg.Providers.SiteURL = envString("SITE_URL", cfg.Providers.SiteURL)
	cfg.Providers.OpenAIAPIKey = envString("OPENAI_API_KEY", cfg.Providers.OpenAIAPIKey)
	cfg.Providers.OpenAIBaseURL = envString("OPENAI_BASE_URL", cfg.Providers.OpenAIBaseURL)
	cfg.Providers.FalAPIKey = envString("FAL_API_KEY", cfg.Providers.FalAPIKey)
	cfg.Providers.FalBaseURL = envString("FAL_BASE_URL", cfg.Providers.FalBaseURL)
	cfg.Providers.RequestTimeout = envDuration("PROVIDER_REQUEST_TIMEOUT", cfg.Providers.RequestTimeout)
	cfg.Providers.VideoPollInterval = envDuration("VIDEO_POLL_INTERVAL", cfg.Providers.VideoPollInterval)
	cfg.Providers.VideoMaxPolls = envInt("VIDEO_MAX_POLLS", cfg.Providers.VideoMaxPolls)

	cfg.SMTP.Host = envString("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = envInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = envString("SMTP_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = envString("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = envString("SMTP_FROM", cfg.SMTP.From)

	cfg.Assets.Dir = envString("ASSET_DIR", cfg.Assets.Dir)
	cfg.Assets.PublicBaseURL = envString("ASSET_PUBLIC_BASE_URL", cfg.Assets.PublicBaseURL)
	cfg.Assets.RehostEditedImages = envBool("REHOST_EDITED_IMAGES", cfg.Assets.RehostEditedImages)

	cfg.Retry.PromptRetries = envInt("RETRY_PROMPT_MAX", cfg.Retry.PromptRetries)
	cfg.Retry.ImageEditRetries = envInt("RETRY_IMAGE_EDIT_MAX", cfg.Retry.ImageEditRetries)
	cfg.Retry.VideoRetries = envInt("RETRY_VIDEO_MAX", cfg.Retry.VideoRetries)
	cfg.Retry.ContinuationRetries = envInt("RETRY_CONTINUATION_MAX", cfg.Retry.ContinuationRetries)
	cfg.Retry.NotifyRetries = envInt("RETRY_NOTIFY_MAX", cfg.Retry.NotifyRetries)
	cfg.Retry.BaseDelay = envDuration("RETRY_BASE_DELAY", cfg.Retry.BaseDelay)
	cfg.Retry.MaxDelay = envDuration("RETRY_MAX_DELAY", cfg.Retry.MaxDelay)

	cfg.Prompts.AutoApprove = envBool("PROMPT_AUTO_APPROVE", cfg.Prompts.AutoApprove)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.QueueDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported QUEUE_DRIVER %q", c.QueueDriver)
	}
	switch c.StateDriver {
	case DriverPostgres, DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("unsupported STATE_DRIVER %q", c.StateDriver)
	}
	if c.StateTTL <= 0 {
		return errors.New("STATE_TTL must be positive")
	}
	if budget := c.VideoStageBudget(); c.Worker.Lease <= budget {
		return fmt.Errorf("WORKER_LEASE %s must exceed the video stage budget %s (VIDEO_MAX_POLLS x VIDEO_POLL_INTERVAL plus one request timeout)", c.Worker.Lease, budget)
	}
	return nil
}

// VideoStageBudget is how long one video task may hold its claim: every poll
// interval plus the submit request. A shorter lease redelivers the task while
// the first worker is still polling.
func (c Config) VideoStageBudget() time.Duration {
	return time.Duration(c.Providers.VideoMaxPolls)*c.Providers.VideoPollInterval + c.Providers.RequestTimeout
}

// NeedsPostgres reports whether any configured driver is backed by Postgres.
func (c Config) NeedsPostgres() bool {
	return c.QueueDriver == DriverPostgres || c.StateDriver == DriverPostgres
}

func envString(name string, fallback string) string {
	if raw, ok := os.LookupEnv(name); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw)
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
