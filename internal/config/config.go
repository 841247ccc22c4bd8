package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/webhook-chat/backend/internal/model/settings"
)

// Config aggregates every setting of the service.
type Config struct {
	Server  ServerConfig
	Widget  WidgetConfig
	Storage StorageConfig
	Log     LogConfig
	AI      AIConfig
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.Widget.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string
}

// normalizeAddr turns PORT into a listen address.
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// ":8080" and "127.0.0.1:8080" are used as given.
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// WidgetConfig holds the defaults the chat widget starts from. Persisted
// settings override WebhookURL and APITimeout at runtime.
type WidgetConfig struct {
	WebhookURL        string        `env:"WEBHOOK_URL" envDefault:"https://your-activepieces-webhook-url.com/webhook"`
	MaxMessageLength  int           `env:"MAX_MESSAGE_LENGTH" envDefault:"500"`
	APITimeout        int           `env:"API_TIMEOUT" envDefault:"30"` // seconds
	ThinkingInterval  time.Duration `env:"THINKING_INTERVAL" envDefault:"2s"`
	ClientInfo        string        `env:"CLIENT_INFO" envDefault:"webhook-chat-backend/1.0"`
	DevWebhookEnabled bool          `env:"DEV_WEBHOOK_ENABLED" envDefault:"false"`
}

func (c WidgetConfig) validate() error {
	if strings.TrimSpace(c.WebhookURL) == "" {
		return fmt.Errorf("WEBHOOK_URL must be configured")
	}
	if _, err := url.ParseRequestURI(c.WebhookURL); err != nil {
		return fmt.Errorf("invalid WEBHOOK_URL value %q: %w", c.WebhookURL, err)
	}
	if c.MaxMessageLength < 1 {
		return fmt.Errorf("invalid MAX_MESSAGE_LENGTH value %d: must be positive", c.MaxMessageLength)
	}
	if c.APITimeout < settings.MinTimeoutSeconds || c.APITimeout > settings.MaxTimeoutSeconds {
		return fmt.Errorf("invalid API_TIMEOUT value %d: must be within [%d,%d] seconds", c.APITimeout, settings.MinTimeoutSeconds, settings.MaxTimeoutSeconds)
	}
	if c.ThinkingInterval <= 0 {
		return fmt.Errorf("invalid THINKING_INTERVAL value %s: must be positive", c.ThinkingInterval)
	}
	return nil
}

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// StorageConfig selects where persisted widget settings live.
type StorageConfig struct {
	Driver        string `env:"STORAGE_DRIVER" envDefault:"memory"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"webhook-chat.db"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"webhook-chat:"`
}

func (c StorageConfig) validate() error {
	switch c.Driver {
	case StorageMemory:
		return nil
	case StorageSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH must be configured for the sqlite driver")
		}
		return nil
	case StorageRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR must be configured for the redis driver")
		}
		return nil
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER value %q", c.Driver)
	}
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"` // json or console
}

// AIConfig configures the Ark model behind the local development webhook.
type AIConfig struct {
	APIKey       string `env:"ARK_API_KEY"`
	AccessKey    string `env:"ARK_ACCESS_KEY"`
	SecretKey    string `env:"ARK_SECRET_KEY"`
	Model        string `env:"ARK_MODEL"`
	BaseURL      string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region       string `env:"ARK_REGION" envDefault:"cn-beijing"`
	MaxTokens    int    `env:"ARK_MAX_TOKENS"`
	SystemPrompt string `env:"ARK_SYSTEM_PROMPT" envDefault:"You are a friendly assistant embedded in a website chat widget. Keep replies short and helpful."`
}

// Enabled reports whether a model and credentials are configured.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates an Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing Ark configuration: set ARK_MODEL with ARK_API_KEY or ARK_ACCESS_KEY + ARK_SECRET_KEY")
	}

	var maxTokens *int
	if c.MaxTokens > 0 {
		val := c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
		MaxTokens: maxTokens,
	}

	return ark.NewChatModel(ctx, cfg)
}

// DefaultSettings returns the widget settings used when nothing is persisted.
func (c WidgetConfig) DefaultSettings() settings.Settings {
	return settings.Settings{
		EndpointURL:    c.WebhookURL,
		TimeoutSeconds: c.APITimeout,
	}
}
