package config

import (
	"os"
	"strconv"
	"strings"
)

const Version = "0.1.0"

// Config holds the ambient configuration for the pantryd demo server:
// where to listen, which store.Store backend to open, and how to size
// the response cache sitting in front of the facade.
type Config struct {
	// Server configuration
	Host string
	Port int

	// Storage configuration
	StorageType string // "jsonfile", "sqlite", or "redis"
	BaseDir     string
	DBPath      string // SQLite database path
	RedisHost   string
	RedisPort   int

	// Response cache configuration (pkg/respcache, consumed only by
	// pkg/restapi; never by the identity-map core).
	RespCacheType string // "memory" or "redis"
	RespCacheTTL  int    // seconds
	RespCacheSize int

	// Query configuration
	DefaultPageSize int

	// Debug
	Debug bool
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            9090,
		StorageType:     "sqlite",
		BaseDir:         "data",
		DBPath:          "pantrycache.db",
		RedisHost:       "localhost",
		RedisPort:       6379,
		RespCacheType:   "memory",
		RespCacheTTL:    5,
		RespCacheSize:   1024,
		DefaultPageSize: 20,
		Debug:           false,
	}
}

// LoadFromEnv overrides cfg's fields from environment variables.
func LoadFromEnv(cfg *Config) {
	if val := os.Getenv("HOST"); val != "" {
		cfg.Host = val
	}
	if val := os.Getenv("PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Port = port
		}
	}
	if val := os.Getenv("STORAGE_TYPE"); val != "" {
		cfg.StorageType = val
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		cfg.DBPath = val
	}
	if val := os.Getenv("BASE_DIR"); val != "" {
		cfg.BaseDir = val
	}
	if val := os.Getenv("REDIS_HOST"); val != "" {
		cfg.RedisHost = val
	}
	if val := os.Getenv("REDIS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.RedisPort = port
		}
	}
	if val := os.Getenv("RESPCACHE_TYPE"); val != "" {
		cfg.RespCacheType = val
	}
	if val := os.Getenv("RESPCACHE_TTL"); val != "" {
		if ttl, err := strconv.Atoi(val); err == nil {
			cfg.RespCacheTTL = ttl
		}
	}
	if val := os.Getenv("DEFAULT_PAGE_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			cfg.DefaultPageSize = size
		}
	}
	if val := os.Getenv("DEBUG"); val != "" {
		cfg.Debug = parseBool(val)
	}
}

func parseBool(val string) bool {
	val = strings.ToLower(val)
	return val == "true" || val == "1" || val == "yes"
}
