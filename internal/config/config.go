package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Analysis AnalysisConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string
}

// AnalysisConfig holds the thresholds and execution settings of the
// balance/scoring pass. These are passed into the validator and scorer
// explicitly rather than living as package constants.
type AnalysisConfig struct {
	WarningLossRatio     float64
	CriticalLossRatio    float64
	FeederDiscrepancyKwh float64
	CapacityLoadFactor   float64
	HoursPerMonth        float64
	MinHistoryMonths     int
	TariffPerKwh         float64
	HistoryMonths        int
	WorkerCount          int
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. A .env file in the working directory is honored when present.
func LoadConfig() (*Config, error) {
	// Missing .env is fine; environment variables alone are sufficient.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "ntl"),
			Password:        getEnv("DB_PASSWORD", "ntl"),
			Database:        getEnv("DB_NAME", "ntl_platform"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Analysis: AnalysisConfig{
			WarningLossRatio:     getEnvFloat("ANALYSIS_WARNING_LOSS_RATIO", 0.10),
			CriticalLossRatio:    getEnvFloat("ANALYSIS_CRITICAL_LOSS_RATIO", 0.15),
			FeederDiscrepancyKwh: getEnvFloat("ANALYSIS_FEEDER_DISCREPANCY_KWH", 10000),
			CapacityLoadFactor:   getEnvFloat("ANALYSIS_CAPACITY_LOAD_FACTOR", 0.8),
			HoursPerMonth:        getEnvFloat("ANALYSIS_HOURS_PER_MONTH", 730),
			MinHistoryMonths:     getEnvInt("ANALYSIS_MIN_HISTORY_MONTHS", 3),
			TariffPerKwh:         getEnvFloat("ANALYSIS_TARIFF_PER_KWH", 10),
			HistoryMonths:        getEnvInt("ANALYSIS_HISTORY_MONTHS", 12),
			WorkerCount:          getEnvInt("ANALYSIS_WORKER_COUNT", 8),
		},
	}, nil
}

// Validate checks configuration invariants before startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" || c.Database.Database == "" {
		return fmt.Errorf("database host and name are required")
	}
	if c.Analysis.WarningLossRatio <= 0 || c.Analysis.CriticalLossRatio <= c.Analysis.WarningLossRatio {
		return fmt.Errorf("critical loss ratio must exceed warning loss ratio")
	}
	if c.Analysis.WorkerCount < 1 {
		return fmt.Errorf("analysis worker count must be at least 1")
	}
	return nil
}

// Helper functions to get environment variables with defaults.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
