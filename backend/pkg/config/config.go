package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	apperrors "thinkflow/backend/pkg/errors"
)

// Persistence backend names accepted by PERSISTENCE_BACKEND
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
	BackendAll    = "all"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Persistence
	PersistenceBackend string
	SQLitePath         string
	Autosave           bool

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// AI
	LLMBaseURL     string
	LLMAPIKey      string
	ModelID        string
	LLMTemperature float64
	LLMMaxTokens   int

	// Graph core
	HistoryLimit int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		PersistenceBackend: strings.ToLower(getEnv("PERSISTENCE_BACKEND", BackendMemory)),
		SQLitePath:         getEnv("SQLITE_PATH", "thinkflow.db"),
		Autosave:           getEnvBool("AUTOSAVE", true),
		Neo4jURI:           getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:          getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:      getEnv("NEO4J_PASSWORD", ""),
		LLMBaseURL:         getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		ModelID:            getEnv("MODEL_ID", "glm-4-flash"),
		LLMTemperature:     getEnvFloat("LLM_TEMPERATURE", 1.0),
		LLMMaxTokens:       getEnvInt("LLM_MAX_TOKENS", 4096),
		HistoryLimit:       getEnvInt("HISTORY_LIMIT", 50),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.PersistenceBackend {
	case BackendMemory, BackendSQLite, BackendNeo4j, BackendAll:
	default:
		return apperrors.NewConfigValidationFailed("PERSISTENCE_BACKEND", fmt.Sprintf("unknown backend %q", c.PersistenceBackend))
	}
	if c.UsesSQLite() && c.SQLitePath == "" {
		return apperrors.NewConfigMissingRequired("SQLITE_PATH")
	}
	if c.UsesNeo4j() {
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
		if c.Neo4jPassword == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
		}
	}
	if c.ModelID == "" {
		return apperrors.NewConfigMissingRequired("MODEL_ID")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return apperrors.NewConfigValidationFailed("LLM_TEMPERATURE", "must be within [0, 2]")
	}
	if c.HistoryLimit <= 0 {
		return apperrors.NewConfigValidationFailed("HISTORY_LIMIT", "must be positive")
	}
	// LLM_BASE_URL is optional: without it chat endpoints report the service as unavailable
	return nil
}

// UsesSQLite reports whether the SQLite document store is enabled
func (c *Config) UsesSQLite() bool {
	return c.PersistenceBackend == BackendSQLite || c.PersistenceBackend == BackendAll
}

// UsesNeo4j reports whether the Neo4j graph store is enabled
func (c *Config) UsesNeo4j() bool {
	return c.PersistenceBackend == BackendNeo4j || c.PersistenceBackend == BackendAll
}

// ChatEnabled reports whether an LLM endpoint is configured
func (c *Config) ChatEnabled() bool {
	return c.LLMBaseURL != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
