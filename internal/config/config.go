// Package config loads process settings from the environment, an optional
// .env file and an optional TOML file.
//
// Precedence, lowest first: built-in defaults, the TOML file named by
// CONFIG_FILE, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds every tunable the server and the reminder job read.
type Config struct {
	Mongo    MongoConfig    `toml:"mongo"`
	HTTP     HTTPConfig     `toml:"http"`
	Email    EmailConfig    `toml:"email"`
	Schedule ScheduleConfig `toml:"schedule"`
	Logging  LoggingConfig  `toml:"logging"`

	JWTSecret string `toml:"-"`
	RedisURL  string `toml:"redis_url"`
	Timezone  string `toml:"timezone"`

	// Location is Timezone resolved by Load.
	Location *time.Location `toml:"-"`
}

type MongoConfig struct {
	URI    string `toml:"uri"`
	DBName string `toml:"db_name"`
}

type HTTPConfig struct {
	Port    string `toml:"port"`
	BaseURL string `toml:"base_url"`
	AppURL  string `toml:"app_url"`
	// DeepLinkScheme is the app's custom URL scheme used by /auth/redirect.
	DeepLinkScheme string   `toml:"deep_link_scheme"`
	CORSOrigins    []string `toml:"cors_origins"`
}

type EmailConfig struct {
	ResendAPIKey string `toml:"-"`
	FromEmail    string `toml:"from_email"`
	FromName     string `toml:"from_name"`
	// Concurrency bounds in-flight deliveries during a reminder run.
	Concurrency int `toml:"concurrency"`
}

// ScheduleConfig holds local wall-clock times ("15:04") for the reminder
// loop. The weekly run fires on WeeklyDay at WeeklyAt.
type ScheduleConfig struct {
	MiddayAt  string `toml:"midday_at"`
	EveningAt string `toml:"evening_at"`
	WeeklyDay string `toml:"weekly_day"`
	WeeklyAt  string `toml:"weekly_at"`
}

type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Mongo: MongoConfig{DBName: "habitroom"},
		HTTP: HTTPConfig{
			Port:           "8080",
			DeepLinkScheme: "habitroom",
			CORSOrigins:    []string{"*"},
		},
		Email: EmailConfig{
			FromName:    "Habit Rooms",
			Concurrency: 8,
		},
		Schedule: ScheduleConfig{
			MiddayAt:  "12:00",
			EveningAt: "20:00",
			WeeklyDay: "monday",
			WeeklyAt:  "09:00",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
		Timezone: "UTC",
	}
}

// Load builds a Config. A missing .env file is not an error; in production
// variables are set directly.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Mongo.URI, "MONGODB_URI")
	setString(&cfg.Mongo.DBName, "DB_NAME")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.HTTP.Port, "PORT")
	setString(&cfg.HTTP.BaseURL, "BASE_URL")
	setString(&cfg.HTTP.AppURL, "APP_URL")
	setString(&cfg.Email.ResendAPIKey, "RESEND_API_KEY")
	setString(&cfg.Email.FromEmail, "FROM_EMAIL")
	setString(&cfg.Email.FromName, "FROM_NAME")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.File, "LOG_FILE")

	if v := os.Getenv("DISPATCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("DISPATCH_CONCURRENCY must be a positive integer, got %q", v)
		}
		cfg.Email.Concurrency = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// ValidateServer checks the settings the HTTP server cannot start without.
func (c Config) ValidateServer() error {
	var errs []error
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("MONGODB_URI is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

// ValidateJob checks the settings the reminder job needs. Unsubscribe links
// are signed, so the job needs the JWT secret too.
func (c Config) ValidateJob() error {
	if err := c.ValidateServer(); err != nil {
		return err
	}
	if c.HTTP.BaseURL == "" {
		return errors.New("BASE_URL is required to build unsubscribe links")
	}
	return nil
}
