package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Extraction ExtractionConfig
	Raster     RasterConfig
	LLM        LLMConfig
	Ledger     LedgerConfig
}

// DatabaseConfig holds ledger store configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite | firestore | memory
	DSN              string
	SQLitePath       string
	FirestoreProject string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	LogFormat      string
}

// ExtractionConfig holds the local PDF extraction and mode-selection knobs
type ExtractionConfig struct {
	PDFToText         string
	TextTimeout       time.Duration
	MaxPages          int
	MinImageBytes     int
	MaxImageBase64    int
	MinTextChars      int
	AbundantTextChars int
}

// RasterConfig holds the remote page-to-image conversion capability
type RasterConfig struct {
	APIKey    string
	BaseURL   string
	Uploader  string // api | gcs
	GCSBucket string
	URLExpiry time.Duration
	Timeout   time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider          string // openai | vertex
	APIKey            string
	BaseURL           string
	ModelLow          string
	ModelHigh         string
	Temperature       float32
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	VertexProject     string
	VertexLocation    string
}

// LedgerConfig holds billing configuration
type LedgerConfig struct {
	CreditCost int64
}

// RasterEnabled reports whether the rasterization credential is present.
func (c *Config) RasterEnabled() bool {
	return strings.TrimSpace(c.Raster.APIKey) != ""
}

// fileValues holds KEY = value pairs from the optional TOML config file.
// Environment variables always win over the file.
var fileValues map[string]string

// LoadConfigFile reads a TOML file of KEY = value pairs used as a fallback
// layer beneath the environment. A missing file is not an error.
func LoadConfigFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	fileValues = values
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", ""),
			SQLitePath:       getEnv("SQLITE_PATH", "./cvx.db"),
			FirestoreProject: getEnv("FIRESTORE_PROJECT", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:       getEnv("GRPC_ADDR", ":8081"),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
			LogFormat:      getEnv("LOG_FORMAT", "text"),
		},
		Extraction: ExtractionConfig{
			PDFToText:         getEnv("PDFTOTEXT_BIN", "pdftotext"),
			TextTimeout:       getEnvAsDuration("TEXT_TIMEOUT", 30*time.Second),
			MaxPages:          getEnvAsInt("MAX_PAGES", 3),
			MinImageBytes:     getEnvAsInt("MIN_IMAGE_BYTES", 1000),
			MaxImageBase64:    getEnvAsInt("MAX_IMAGE_BASE64", 4_000_000),
			MinTextChars:      getEnvAsInt("MIN_TEXT_CHARS", 50),
			AbundantTextChars: getEnvAsInt("ABUNDANT_TEXT_CHARS", 100),
		},
		Raster: RasterConfig{
			APIKey:    getEnv("RASTER_API_KEY", ""),
			BaseURL:   getEnv("RASTER_BASE_URL", "https://api.pdf.co/v1"),
			Uploader:  getEnv("RASTER_UPLOADER", "api"),
			GCSBucket: getEnv("RASTER_GCS_BUCKET", ""),
			URLExpiry: getEnvAsDuration("RASTER_URL_EXPIRY", 15*time.Minute),
			Timeout:   getEnvAsDuration("RASTER_TIMEOUT", 40*time.Second),
		},
		LLM: LLMConfig{
			Provider:          getEnv("LLM_PROVIDER", "openai"),
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			BaseURL:           getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			ModelLow:          getEnv("LLM_MODEL_LOW", "gpt-4o-mini"),
			ModelHigh:         getEnv("LLM_MODEL_HIGH", "gpt-4o"),
			Temperature:       getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:           getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			RequestsPerSecond: getEnvAsFloat64("LLM_RPS", 2),
			Burst:             getEnvAsInt("LLM_BURST", 4),
			VertexProject:     getEnv("VERTEX_PROJECT", ""),
			VertexLocation:    getEnv("VERTEX_LOCATION", "us-central1"),
		},
		Ledger: LedgerConfig{
			CreditCost: getEnvAsInt64("CREDIT_COST", 100),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := fileValues[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := getEnv(key, ""); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return NewAppError(KindInvalidInput, "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	case "vertex":
		if c.LLM.VertexProject == "" {
			return NewAppError(KindInvalidInput, "VERTEX_PROJECT is required", ErrInvalidInput)
		}
	default:
		return Errorf(KindInvalidInput, "unknown LLM_PROVIDER %q", c.LLM.Provider)
	}

	if c.RasterEnabled() && c.Raster.Uploader == "gcs" && c.Raster.GCSBucket == "" {
		return NewAppError(KindInvalidInput, "RASTER_GCS_BUCKET is required when RASTER_UPLOADER=gcs", ErrInvalidInput)
	}
	if c.Extraction.MinTextChars < 0 || c.Extraction.AbundantTextChars < c.Extraction.MinTextChars {
		return Errorf(KindInvalidInput, "ABUNDANT_TEXT_CHARS (%d) must be >= MIN_TEXT_CHARS (%d)",
			c.Extraction.AbundantTextChars, c.Extraction.MinTextChars)
	}
	if c.Extraction.MaxPages <= 0 {
		return NewAppError(KindInvalidInput, "MAX_PAGES must be positive", ErrInvalidInput)
	}
	if c.Ledger.CreditCost < 0 {
		return NewAppError(KindInvalidInput, "CREDIT_COST must not be negative", ErrInvalidInput)
	}
	return nil
}

// ValidateStore validates only the ledger store section, for commands that
// never reach the inference provider.
func (c *Config) ValidateStore() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError(KindInvalidInput, "DB_URL is required for the postgres driver", ErrInvalidInput)
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return NewAppError(KindInvalidInput, "SQLITE_PATH is required for the sqlite driver", ErrInvalidInput)
		}
	case "firestore":
		if c.Database.FirestoreProject == "" {
			return NewAppError(KindInvalidInput, "FIRESTORE_PROJECT is required for the firestore driver", ErrInvalidInput)
		}
	case "memory":
	default:
		return Errorf(KindInvalidInput, "unknown DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}
