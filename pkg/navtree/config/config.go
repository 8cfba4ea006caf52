package config

import (
	"os"
	"strconv"
	"time"
)

// CacheConfig controls the shared menu snapshot cache.
type CacheConfig struct {
	Enabled bool
	Key     string
	TTL     time.Duration
}

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	DBPath        string
	Port          string
	DirectoryName string // cosmetic, used by frontend publishing only
	AuthRequired  bool   // when true the menu is only computed for authenticated viewers
	AutoShare     bool   // attach the menu tree to every request via middleware
	RedisURL      string // empty selects the in-process cache backend
	Cache         CacheConfig
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		DBPath:        getenv("NAVTREE_DB_PATH", "navtree.db"),
		Port:          getenv("PORT", "8080"),
		DirectoryName: getenv("NAVTREE_DIRECTORY_NAME", "navtree"),
		AuthRequired:  getenvBool("NAVTREE_AUTH_REQUIRED", true),
		AutoShare:     getenvBool("NAVTREE_AUTO_SHARE", true),
		RedisURL:      getenv("NAVTREE_REDIS_URL", ""),
		Cache: CacheConfig{
			Enabled: getenvBool("NAVTREE_CACHE_ENABLED", true),
			Key:     getenv("NAVTREE_CACHE_KEY", "navtree_sidebar_menu"),
			TTL:     time.Duration(getenvInt("NAVTREE_CACHE_TTL_SECONDS", 3600)) * time.Second,
		},
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
