package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port                          string        `mapstructure:"PORT"`
	StoreDriver                   string        `mapstructure:"STORE_DRIVER"`
	DatabasePath                  string        `mapstructure:"DATABASE_PATH"`
	DatabaseURL                   string        `mapstructure:"DATABASE_URL"`
	StoreURL                      string        `mapstructure:"STORE_URL"`
	StoreAnonKey                  string        `mapstructure:"STORE_ANON_KEY"`
	ShuttleCapacity               int           `mapstructure:"SHUTTLE_CAPACITY"`
	MaxGuests                     int           `mapstructure:"MAX_GUESTS"`
	ConfirmationDelay             time.Duration `mapstructure:"CONFIRMATION_DELAY"`
	SessionTTL                    time.Duration `mapstructure:"SESSION_TTL"`
	AdminSecret                   string        `mapstructure:"ADMIN_SECRET"`
	DiscordBotToken               string        `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordNotificationsChannelID string        `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`
	EnableCORS                    bool          `mapstructure:"ENABLE_CORS"`
	LogLevel                      string        `mapstructure:"LOG_LEVEL"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("STORE_DRIVER", DriverSQLite)
	viper.SetDefault("DATABASE_PATH", "shuttles.db")
	viper.SetDefault("SHUTTLE_CAPACITY", 18)
	viper.SetDefault("MAX_GUESTS", 5)
	viper.SetDefault("CONFIRMATION_DELAY", "2500ms")
	viper.SetDefault("SESSION_TTL", "30m")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.BindEnv("DATABASE_URL")
	viper.BindEnv("STORE_URL")
	viper.BindEnv("STORE_ANON_KEY")
	viper.BindEnv("ADMIN_SECRET")
	viper.BindEnv("DISCORD_BOT_TOKEN")
	viper.BindEnv("DISCORD_NOTIFICATIONS_CHANNEL_ID")
	viper.BindEnv("ENABLE_CORS")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.ShuttleCapacity < 1 {
		return fmt.Errorf("SHUTTLE_CAPACITY must be at least 1, got %d", c.ShuttleCapacity)
	}
	if c.MaxGuests < 0 {
		return fmt.Errorf("MAX_GUESTS must not be negative, got %d", c.MaxGuests)
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" && (c.StoreURL == "" || c.StoreAnonKey == "") {
			return fmt.Errorf("DATABASE_URL or STORE_URL and STORE_ANON_KEY are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// PostgresDSN prefers DATABASE_URL. Otherwise STORE_URL is used with the
// anon key as its password.
func (c *Config) PostgresDSN() (string, error) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	u, err := url.Parse(c.StoreURL)
	if err != nil {
		return "", fmt.Errorf("parse STORE_URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("STORE_URL must be a postgres:// URL, got scheme %q", u.Scheme)
	}
	user := "anon"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, c.StoreAnonKey)
	return u.String(), nil
}

// NewLogger builds the JSON logger every component receives.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
