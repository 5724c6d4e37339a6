package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port             string
	Origin           string
	Environment      string
	LogLevel         string
	JWTSecret        string
	ScheduleTimezone string
	Database         DatabaseConfig
	Redis            RedisConfig
	Vonage           VonageConfig
	RabbitMQ         RabbitMQConfig
}

// DatabaseConfig holds database connection details. Driver is "mysql",
// "postgres" or "memory".
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RedisConfig holds the join-token cache connection. Empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// VonageConfig holds video provider credentials. PrivateKey is PEM text or a
// path to a PEM file.
type VonageConfig struct {
	ApplicationID string
	PrivateKey    string
	APIBaseURL    string
}

// RabbitMQConfig holds the event broker. Empty URL disables publishing.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		Host:     getEnv("DB_HOST", "localhost"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "telehealth"),
	}

	switch dbConfig.Driver {
	case "mysql":
		dbConfig.Port = getEnv("DB_PORT", "3306")
		// UTC keeps appointment instants stable regardless of server zone.
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	case "postgres", "postgresql":
		dbConfig.Driver = "postgres"
		dbConfig.Port = getEnv("DB_PORT", "5432")
		dbConfig.DSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			dbConfig.Host, dbConfig.Port, dbConfig.Username, dbConfig.Password, dbConfig.Name,
			getEnv("DB_SSLMODE", "disable"))
	case "memory":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: expected mysql, postgres or memory", dbConfig.Driver)
	}
	if dsn := getEnv("DB_DSN", ""); dsn != "" {
		dbConfig.DSN = dsn
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	tz := getEnv("SCHEDULE_TIMEZONE", "UTC")
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Port:             getEnv("PORT", "3001"),
		Origin:           getEnv("ORIGIN", "http://localhost:4200"),
		Environment:      getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		ScheduleTimezone: tz,
		Database:         dbConfig,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Vonage: VonageConfig{
			ApplicationID: getEnv("VONAGE_APPLICATION_ID", ""),
			PrivateKey:    getEnv("VONAGE_PRIVATE_KEY", ""),
			APIBaseURL:    getEnv("VONAGE_API_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "telehealth.events"),
		},
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "default_jwt_secret"
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Location returns the time zone used to project availability windows.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
