package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mirren/bunnymo-bridge-go/internal/constants"
	"github.com/mirren/bunnymo-bridge-go/pkg/errors"
)

type Config struct {
	Host      HostConfig
	Redis     RedisConfig
	Scanner   ScannerConfig
	Optimizer OptimizerConfig
	Limiter   LimiterConfig
	Injection InjectionConfig
	Logging   LoggingConfig
}

type HostConfig struct {
	BaseURL string
	WSURL   string
}

// RedisConfig is optional: an empty Host disables the cache entirely and the
// scanner runs uncached.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type ScannerConfig struct {
	Concurrency        int
	CharacterRepoBooks []string
	TagLibraryBooks    []string
}

type OptimizerConfig struct {
	MaxCharacters      int
	PriorityTags       []string
	MaxTagsPerCategory int
	CompactFormat      bool
}

type LimiterConfig struct {
	Cooldown       time.Duration
	Window         time.Duration
	MaxActivations int
	TripDuration   time.Duration
}

type InjectionConfig struct {
	Role             string
	Depth            int
	Enabled          bool
	CardsEnabled     bool
	ScanUserMessages bool
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host: HostConfig{
			BaseURL: getEnv("HOST_BASE_URL", "http://localhost:8000/api/plugins/bunnymo"),
			WSURL:   getEnv("HOST_WS_URL", "ws://localhost:8000/api/plugins/bunnymo/ws"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Scanner: ScannerConfig{
			Concurrency:        getEnvInt("SCAN_CONCURRENCY", constants.ScannerConfig.DefaultConcurrency),
			CharacterRepoBooks: parseCommaSeparated(getEnv("CHARACTER_REPO_BOOKS", "")),
			TagLibraryBooks:    parseCommaSeparated(getEnv("TAG_LIBRARY_BOOKS", "")),
		},
		Optimizer: OptimizerConfig{
			MaxCharacters:      getEnvInt("MAX_CHARACTERS", 4),
			PriorityTags:       parseCommaSeparated(getEnv("PRIORITY_TAGS", "personality,species,genre")),
			MaxTagsPerCategory: getEnvInt("MAX_TAGS_PER_CATEGORY", 3),
			CompactFormat:      getEnvBool("COMPACT_FORMAT", true),
		},
		Limiter: LimiterConfig{
			Cooldown:       time.Duration(getEnvInt("LIMITER_COOLDOWN_SECONDS", 2)) * time.Second,
			Window:         time.Duration(getEnvInt("LIMITER_WINDOW_SECONDS", 60)) * time.Second,
			MaxActivations: getEnvInt("LIMITER_MAX_ACTIVATIONS", 5),
			TripDuration:   time.Duration(getEnvInt("LIMITER_TRIP_SECONDS", 60)) * time.Second,
		},
		Injection: InjectionConfig{
			Role:             getEnv("INJECTION_ROLE", constants.InjectionDefaults.Role),
			Depth:            getEnvInt("INJECTION_DEPTH", constants.InjectionDefaults.Depth),
			Enabled:          getEnvBool("INJECTION_ENABLED", true),
			CardsEnabled:     getEnvBool("CARDS_ENABLED", true),
			ScanUserMessages: getEnvBool("SCAN_USER_MESSAGES", false),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Host.BaseURL == "" {
		return errors.NewValidationError("host base URL is required", "HOST_BASE_URL", c.Host.BaseURL)
	}
	if c.Host.WSURL == "" {
		return errors.NewValidationError("host websocket URL is required", "HOST_WS_URL", c.Host.WSURL)
	}
	if c.Scanner.Concurrency < 1 {
		return errors.NewValidationError("scan concurrency must be at least 1", "SCAN_CONCURRENCY", c.Scanner.Concurrency)
	}
	if c.Limiter.MaxActivations < 1 {
		return errors.NewValidationError("limiter cap must be at least 1", "LIMITER_MAX_ACTIVATIONS", c.Limiter.MaxActivations)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
