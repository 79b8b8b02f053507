package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ai-integration/internal/models"
)

// Config holds all service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	GenAI     GenAIConfig     `yaml:"genai"`
	Channels  ChannelsConfig  `yaml:"channels"`
	NATS      NATSConfig      `yaml:"nats"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Chat      ChatConfig      `yaml:"chat"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address string `yaml:"address"`
	Mode    string `yaml:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig configures the document store connection.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres, sqlite
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"` // sqlite file, ":memory:" allowed
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

// LLMConfig configures the Ollama-compatible chat provider.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// GenAIConfig configures the secondary model catalog.
type GenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// ChannelsConfig holds one live-session endpoint per channel provider.
type ChannelsConfig struct {
	WhatsApp  ChannelEndpoint `yaml:"whatsapp"`
	Instagram ChannelEndpoint `yaml:"instagram"`
}

// ChannelEndpoint is the base URL and credentials of a live-session initiator.
type ChannelEndpoint struct {
	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"`
	Timeout   string `yaml:"timeout"`
}

// NATSConfig configures event publishing.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
}

// SchedulerConfig configures background jobs.
type SchedulerConfig struct {
	VerifyDataSources string `yaml:"verify_data_sources"` // cron spec, empty disables
}

// ChatConfig configures chat session behaviour.
type ChatConfig struct {
	ClearReloadDelay string `yaml:"clear_reload_delay"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Address: ":8080", Mode: "debug"},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			Host:    "localhost",
			Port:    "5432",
			SSLMode: "disable",
			Path:    "ai-integration.db",
		},
		LLM: LLMConfig{BaseURL: "http://localhost:11434/api", Timeout: "60s"},
		Channels: ChannelsConfig{
			WhatsApp:  ChannelEndpoint{Timeout: "15s"},
			Instagram: ChannelEndpoint{Timeout: "15s"},
		},
		NATS:      NATSConfig{URL: "nats://localhost:4222", Stream: "CHATS"},
		Scheduler: SchedulerConfig{VerifyDataSources: "@every 30m"},
		Chat:      ChatConfig{ClearReloadDelay: "3s"},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env
// file in the working directory and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Address, "SERVER_ADDRESS")
	setString(&cfg.Server.Mode, "GIN_MODE")

	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")
	setString(&cfg.Database.Path, "DB_PATH")

	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Timeout, "LLM_TIMEOUT")
	setString(&cfg.GenAI.APIKey, "GENAI_API_KEY")

	setString(&cfg.Channels.WhatsApp.BaseURL, "WHATSAPP_LIVE_URL")
	setString(&cfg.Channels.WhatsApp.AuthToken, "WHATSAPP_AUTH_TOKEN")
	setString(&cfg.Channels.Instagram.BaseURL, "INSTAGRAM_LIVE_URL")
	setString(&cfg.Channels.Instagram.AuthToken, "INSTAGRAM_AUTH_TOKEN")

	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Enabled, "NATS_ENABLED")

	setString(&cfg.Scheduler.VerifyDataSources, "VERIFY_SCHEDULE")
	setString(&cfg.Chat.ClearReloadDelay, "CHAT_CLEAR_RELOAD_DELAY")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if value, exists := os.LookupEnv(key); exists {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			*dst = b
		}
	}
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return &models.ConfigurationError{Setting: "database.driver", Value: c.Database.Driver}
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return &models.ConfigurationError{Setting: "server.mode", Value: c.Server.Mode}
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return &models.ConfigurationError{Setting: "logging.format", Value: c.Logging.Format}
	}
	durations := map[string]string{
		"llm.timeout":             c.LLM.Timeout,
		"chat.clear_reload_delay": c.Chat.ClearReloadDelay,
		"channels.whatsapp":       c.Channels.WhatsApp.Timeout,
		"channels.instagram":      c.Channels.Instagram.Timeout,
	}
	for setting, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return &models.ConfigurationError{Setting: setting, Value: value}
		}
	}
	return nil
}

// Duration parses value, falling back when it is empty or malformed.
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
