package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MimeLyc/subtitle-editor/pkg/log"
)

// Config holds all application configuration.
//
// Environment Variables:
// HTTP:
// - HTTP_ADDR: listen address (default: :8080)
// - CORS_ORIGINS: comma separated allowed origins (default: *)
//
// Storage:
// - DB_DRIVER: sqlite or postgres (default: sqlite)
// - DB_DSN: data source name (default: $DATA_DIR/subtitle-editor.db)
// - DATA_DIR: data directory (default: /app/data)
//
// Auth:
// - JWT_SECRET: HMAC secret for bearer tokens (required)
// - HOOK_TOKEN: shared secret for host platform webhooks (optional)
//
// Translation:
// - TRANSLATION_API_URL: translation service base URL (default: http://subtitle_translator_api)
// - TRANSLATION_TIMEOUT_MINUTES: pending job timeout (default: 10)
// - TRANSLATION_LANGUAGES: comma separated language allow-list (optional)
// - WORKER_COUNT: background translation workers (default: 2)
//
// Events:
// - AMQP_URL: RabbitMQ URL, events are disabled when empty
// - AMQP_EXCHANGE: exchange name (default: subtitle.events)
//
// System:
// - LOG_LEVEL: debug, info, warn, error (default: info)
// - SETTINGS_FILE: runtime settings file, .json or .yaml (default: $DATA_DIR/settings.json)
type Config struct {
	HTTP        HTTPConfig        `json:"http"`
	Storage     StorageConfig     `json:"storage"`
	Auth        AuthConfig        `json:"-"`
	Translation TranslationConfig `json:"translation"`
	Events      EventsConfig      `json:"events"`
	System      SystemConfig      `json:"system"`
}

type HTTPConfig struct {
	Addr        string   `json:"addr"`
	CORSOrigins []string `json:"cors_origins"`
}

type StorageConfig struct {
	Driver  string `json:"driver"`
	DSN     string `json:"-"`
	DataDir string `json:"data_dir"`
}

type AuthConfig struct {
	JWTSecret string
	HookToken string
}

// TranslationConfig seeds the runtime settings on first start.
type TranslationConfig struct {
	APIURL         string `json:"api_url"`
	TimeoutMinutes int    `json:"timeout_minutes"`
	Languages      string `json:"languages"`
	WorkerCount    int    `json:"worker_count"`
}

type EventsConfig struct {
	AMQPURL  string `json:"-"`
	Exchange string `json:"exchange"`
}

type SystemConfig struct {
	LogLevel     string `json:"log_level"`
	SettingsFile string `json:"settings_file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

func WithAddr(addr string) Option {
	return func(c *Config) {
		if strings.TrimSpace(addr) != "" {
			c.HTTP.Addr = addr
		}
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	dataDir := getEnvString("DATA_DIR", "/app/data")
	config := &Config{
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8080"),
			CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
		},
		Storage: StorageConfig{
			Driver:  strings.ToLower(getEnvString("DB_DRIVER", "sqlite")),
			DSN:     getEnvString("DB_DSN", filepath.Join(dataDir, "subtitle-editor.db")),
			DataDir: dataDir,
		},
		Auth: AuthConfig{
			JWTSecret: getEnvString("JWT_SECRET", ""),
			HookToken: getEnvString("HOOK_TOKEN", ""),
		},
		Translation: TranslationConfig{
			APIURL:         getEnvString("TRANSLATION_API_URL", "http://subtitle_translator_api"),
			TimeoutMinutes: getEnvInt("TRANSLATION_TIMEOUT_MINUTES", DefaultTimeoutMinutes),
			Languages:      getEnvString("TRANSLATION_LANGUAGES", ""),
			WorkerCount:    getEnvInt("WORKER_COUNT", 2),
		},
		Events: EventsConfig{
			AMQPURL:  getEnvString("AMQP_URL", ""),
			Exchange: getEnvString("AMQP_EXCHANGE", "subtitle.events"),
		},
		System: SystemConfig{
			LogLevel:     getEnvString("LOG_LEVEL", "info"),
			SettingsFile: getEnvString("SETTINGS_FILE", filepath.Join(dataDir, "settings.json")),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info("Config: http=%s db=%s translation=%+v events=%t",
		config.HTTP.Addr, config.Storage.Driver, config.Translation, config.Events.AMQPURL != "")
	return config, nil
}

// InitialRuntimeSettings returns the settings used when no settings file exists yet.
func (c *Config) InitialRuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		TranslationAPIURL: c.Translation.APIURL,
		TimeoutMinutes:    c.Translation.TimeoutMinutes,
		Languages:         c.Translation.Languages,
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Storage.Driver)
	}
	if c.Translation.WorkerCount <= 0 {
		c.Translation.WorkerCount = 1
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	ret := SplitList(value)
	if len(ret) == 0 {
		return defaultValue
	}
	return ret
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	ret := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			ret = append(ret, p)
		}
	}
	return ret
}
