package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Database DatabaseConfig
	WSF      WSFConfig
	HTTP     HTTPConfig
	Logging  LoggingConfig
	Cleanup  CleanupConfig
}

type DatabaseConfig struct {
	Driver     string `validate:"oneof=postgres sqlite"`
	Host       string `validate:"required_if=Driver postgres"`
	Port       string `validate:"required_if=Driver postgres"`
	User       string
	Password   string
	DBName     string `validate:"required_if=Driver postgres"`
	SQLitePath string `validate:"required_if=Driver sqlite"`
}

// WSFConfig controls upstream access and the two refresh cadences
type WSFConfig struct {
	APIAccessCode       string        `validate:"required"`
	BaseURL             string        `validate:"required,url"`
	LongInterval        time.Duration `validate:"gt=0"`
	ShortInterval       time.Duration `validate:"gt=0"`
	ScheduleConcurrency int           `validate:"gte=1,lte=64"`
	Timezone            string        `validate:"required"`
	RequestTimeout      time.Duration `validate:"gt=0"`
}

type HTTPConfig struct {
	Port int `validate:"gt=0,lte=65535"`
}

type LoggingConfig struct {
	Level      string
	FilePath   string
	DiscordURL string `validate:"omitempty,url"`
}

// CleanupConfig for capacity history retention. Retention must stay above a
// week or last-week estimates lose their source rows.
type CleanupConfig struct {
	Retention time.Duration `validate:"gt=192h"`
	Interval  time.Duration `validate:"gt=0"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", ""),
			DBName:     getEnv("DB_NAME", "wsftracker"),
			SQLitePath: getEnv("SQLITE_PATH", "data/wsftracker.db"),
		},
		WSF: WSFConfig{
			APIAccessCode:       getEnv("WSF_API_ACCESS_CODE", ""),
			BaseURL:             getEnv("WSF_API_BASE_URL", "https://www.wsdot.wa.gov/ferries/api"),
			LongInterval:        getDurationEnv("WSF_LONG_INTERVAL", 30*time.Second),
			ShortInterval:       getDurationEnv("WSF_SHORT_INTERVAL", 5*time.Second),
			ScheduleConcurrency: getIntEnv("WSF_SCHEDULE_CONCURRENCY", 8),
			Timezone:            getEnv("WSF_TIMEZONE", "America/Los_Angeles"),
			RequestTimeout:      getDurationEnv("WSF_REQUEST_TIMEOUT", 20*time.Second),
		},
		HTTP: HTTPConfig{
			Port: getIntEnv("HTTP_PORT", 8080),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   getEnv("LOG_FILE", "wsftracker.log"),
			DiscordURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		},
		Cleanup: CleanupConfig{
			Retention: getDurationEnv("CAPACITY_RETENTION", 90*24*time.Hour),
			Interval:  getDurationEnv("CLEANUP_INTERVAL", 24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks struct constraints and that the timezone is loadable
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.LoadLocation(c.WSF.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.WSF.Timezone, err)
	}
	return nil
}

// Location returns the time zone WSF schedules are published in
func (c *WSFConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *DatabaseConfig) ConnectionString() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
