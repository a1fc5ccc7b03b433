package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	RFV      RFVConfig      `yaml:"rfv"`
	Batch    BatchConfig    `yaml:"batch"`
}

// DatabaseConfig holds the Postgres ledger connection settings
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	Table            string        `yaml:"table"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr     string `yaml:"http_addr"`
	GRPCAddr     string `yaml:"grpc_addr"`
	MaxUploadMB  int    `yaml:"max_upload_mb"`
	PreviewRows  int    `yaml:"preview_rows"`
	TopCustomers int    `yaml:"top_customers"`
	ExportCache  int    `yaml:"export_cache"`
}

// RFVConfig holds segmentation settings
type RFVConfig struct {
	ActionsFile string `yaml:"actions_file"`
	Sheet       string `yaml:"sheet"`
	TopScore    string `yaml:"top_score"`
}

// BatchConfig holds batch worker settings
type BatchConfig struct {
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

// LoadConfig loads configuration from environment variables. When RFV_CONFIG
// names a YAML file, its non-zero values override the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			Table:            getEnv("DB_LEDGER_TABLE", "purchases"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:     getEnv("GRPC_ADDR", ":8081"),
			MaxUploadMB:  getEnvAsInt("RFV_MAX_UPLOAD_MB", 32),
			PreviewRows:  getEnvAsInt("RFV_PREVIEW_ROWS", 5),
			TopCustomers: getEnvAsInt("RFV_TOP_CUSTOMERS", 10),
			ExportCache:  getEnvAsInt("RFV_EXPORT_CACHE", 32),
		},
		RFV: RFVConfig{
			ActionsFile: getEnv("RFV_ACTIONS_FILE", ""),
			Sheet:       getEnv("RFV_SHEET", ""),
			TopScore:    getEnv("RFV_TOP_SCORE", "AAA"),
		},
		Batch: BatchConfig{
			Workers:        getEnvAsInt("RFV_WORKERS", 4),
			QueueSize:      getEnvAsInt("RFV_QUEUE_SIZE", 64),
			ProcessTimeout: getEnvAsDuration("RFV_PROCESS_TIMEOUT", 2*time.Minute),
		},
	}

	if path := getEnv("RFV_CONFIG", ""); path != "" {
		if err := cfg.overlayYAML(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// overlayYAML reads path and replaces every field the file sets.
func (c *Config) overlayYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("HTTP_ADDR", c.Server.HTTPAddr, Required)
	v.Field("RFV_MAX_UPLOAD_MB", c.Server.MaxUploadMB, Positive)
	v.Field("RFV_PREVIEW_ROWS", c.Server.PreviewRows, Positive)
	v.Field("RFV_TOP_CUSTOMERS", c.Server.TopCustomers, Positive)
	v.Field("RFV_TOP_SCORE", c.RFV.TopScore, RFVScore)
	v.Field("RFV_WORKERS", c.Batch.Workers, Positive)
	v.Field("RFV_QUEUE_SIZE", c.Batch.QueueSize, Positive)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// ValidateDatabase checks the settings needed to read a Postgres ledger.
func (c *Config) ValidateDatabase() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Database.Table == "" {
		return NewAppError("CONFIG_ERROR", "DB_LEDGER_TABLE is required", ErrInvalidInput)
	}
	return nil
}
