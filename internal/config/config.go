package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// RedisConfig holds Redis connection configuration.
// An empty URL disables every Redis-backed feature.
type RedisConfig struct {
	URL      string
	Password string
}

// Enabled reports whether Redis is configured
func (rc RedisConfig) Enabled() bool {
	return rc.URL != ""
}

// CatalogConfig controls which data sets are served and how
type CatalogConfig struct {
	// Path to a YAML manifest; overrides Sports and LegacySport when set
	Manifest string

	// Declared order for unscoped lookups
	Sports      []models.Sport
	LegacySport models.Sport

	// Version is part of every search cache key; bump it when data changes
	Version string

	// Load every sport in the background once startup settles
	WarmOnStart bool

	// Postgres connection string for the postgres data set source
	PlayersDSN string
}

// SearchConfig controls the remote search endpoint
type SearchConfig struct {
	Limit             int
	CacheTTL          time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level       string
	Development bool
}

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Catalog CatalogConfig
	Search  SearchConfig
	Log     LogConfig
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	catalog, err := loadCatalogConfig()
	if err != nil {
		return nil, err
	}

	search, err := loadSearchConfig()
	if err != nil {
		return nil, err
	}

	shutdown, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	development, err := getBool("LOG_DEVELOPMENT", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
			ShutdownTimeout: shutdown,
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Catalog: catalog,
		Search:  search,
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: development,
		},
	}, nil
}

// loadCatalogConfig loads data set configuration.
// Supports multiple sports via the comma-separated CATALOG_SPORTS variable.
func loadCatalogConfig() (CatalogConfig, error) {
	var sports []models.Sport
	for _, name := range splitList(getEnv("CATALOG_SPORTS", "NBA,NFL,MLB")) {
		sport, ok := models.ParseSport(name)
		if !ok {
			return CatalogConfig{}, fmt.Errorf("CATALOG_SPORTS: unknown sport %q", name)
		}
		sports = append(sports, sport)
	}
	if len(sports) == 0 {
		return CatalogConfig{}, fmt.Errorf("CATALOG_SPORTS: no sports configured")
	}

	legacy, ok := models.ParseSport(getEnv("CATALOG_LEGACY_SPORT", "NBA"))
	if !ok {
		return CatalogConfig{}, fmt.Errorf("CATALOG_LEGACY_SPORT: unknown sport %q", os.Getenv("CATALOG_LEGACY_SPORT"))
	}

	warm, err := getBool("CATALOG_WARM_ON_START", true)
	if err != nil {
		return CatalogConfig{}, err
	}

	return CatalogConfig{
		Manifest:    getEnv("CATALOG_MANIFEST", ""),
		Sports:      sports,
		LegacySport: legacy,
		Version:     getEnv("CATALOG_VERSION", "v1"),
		WarmOnStart: warm,
		PlayersDSN:  getEnv("PLAYERS_DSN", ""),
	}, nil
}

func loadSearchConfig() (SearchConfig, error) {
	limit, err := getInt("SEARCH_LIMIT", 20)
	if err != nil {
		return SearchConfig{}, err
	}
	if limit < 1 {
		return SearchConfig{}, fmt.Errorf("SEARCH_LIMIT must be positive, got %d", limit)
	}

	ttl, err := getDuration("SEARCH_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return SearchConfig{}, err
	}

	requests, err := getInt("RATE_LIMIT_REQUESTS", 120)
	if err != nil {
		return SearchConfig{}, err
	}

	window, err := getDuration("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return SearchConfig{}, err
	}

	return SearchConfig{
		Limit:             limit,
		CacheTTL:          ttl,
		RateLimitRequests: requests,
		RateLimitWindow:   window,
	}, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
