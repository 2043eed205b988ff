package adapter

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cards   CardsConfig   `mapstructure:"cards"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	URL      string `mapstructure:"url"`      // API base URL, e.g. http://localhost:8000/api
	Token    string `mapstructure:"token"`    // Auth token from the login endpoint
	UserID   string `mapstructure:"user_id"`  // Scopes every card route
	Username string `mapstructure:"username"` // Display only
}

// CardsConfig holds queue paging configuration
type CardsConfig struct {
	PageSize     int           `mapstructure:"page_size"`     // Must match the server's pagination
	MaxPages     int           `mapstructure:"max_pages"`     // Cached pages per queue in paged mode (0 = unlimited)
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"` // Per-request timeout
}

// RefreshConfig holds the outstanding-queue refresher configuration
type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables periodic refresh
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "http://localhost:8000/api",
		},
		Cards: CardsConfig{
			PageSize:     50,
			MaxPages:     0,
			FetchTimeout: 30 * time.Second,
		},
		Refresh: RefreshConfig{
			Interval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "recall", "recall.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "recall", "recall.log")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "recall")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "recall")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	return loadConfig(viper.GetViper(), defaultConfigPath(), ".")
}

func loadConfig(v *viper.Viper, paths ...string) (*Config, error) {
	// A missing .env is fine; it only seeds RECALL_* variables
	_ = godotenv.Load()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides (RECALL_SERVER_URL, RECALL_CARDS_PAGE_SIZE, ...)
	v.SetEnvPrefix("RECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.token", cfg.Server.Token)
	v.SetDefault("server.user_id", cfg.Server.UserID)
	v.SetDefault("server.username", cfg.Server.Username)
	v.SetDefault("cards.page_size", cfg.Cards.PageSize)
	v.SetDefault("cards.max_pages", cfg.Cards.MaxPages)
	v.SetDefault("cards.fetch_timeout", cfg.Cards.FetchTimeout)
	v.SetDefault("refresh.interval", cfg.Refresh.Interval)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// Validate checks values that would otherwise fail deep inside the queues
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url cannot be empty")
	}
	if u, err := url.Parse(c.Server.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.url %q is not an absolute URL", c.Server.URL)
	}
	if c.Cards.PageSize <= 0 {
		return fmt.Errorf("cards.page_size must be positive, got %d", c.Cards.PageSize)
	}
	if c.Cards.MaxPages < 0 {
		return fmt.Errorf("cards.max_pages cannot be negative, got %d", c.Cards.MaxPages)
	}
	if c.Cards.FetchTimeout < 0 {
		return fmt.Errorf("cards.fetch_timeout cannot be negative, got %s", c.Cards.FetchTimeout)
	}
	if c.Refresh.Interval < 0 {
		return fmt.Errorf("refresh.interval cannot be negative, got %s", c.Refresh.Interval)
	}
	return nil
}

// SaveConfig writes every setting to the config file
func SaveConfig(cfg *Config) error {
	// Set fields individually to ensure correct key names (snake_case)
	viper.Set("server.url", cfg.Server.URL)
	viper.Set("server.token", cfg.Server.Token)
	viper.Set("server.user_id", cfg.Server.UserID)
	viper.Set("server.username", cfg.Server.Username)

	viper.Set("cards.page_size", cfg.Cards.PageSize)
	viper.Set("cards.max_pages", cfg.Cards.MaxPages)
	viper.Set("cards.fetch_timeout", cfg.Cards.FetchTimeout.String())

	viper.Set("refresh.interval", cfg.Refresh.Interval.String())

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	return writeConfig(viper.GetViper(), defaultConfigPath())
}

// ClearServerConfig removes the stored credentials while preserving other settings
func ClearServerConfig() error {
	return clearCredentials(viper.GetViper(), defaultConfigPath())
}

func clearCredentials(v *viper.Viper, dir string) error {
	v.Set("server.token", "")
	v.Set("server.user_id", "")
	v.Set("server.username", "")
	return writeConfig(v, dir)
}

func writeConfig(v *viper.Viper, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// IsConfigured returns true if the server URL, token and user are set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != "" && c.Server.Token != "" && c.Server.UserID != ""
}
