package config

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
)

type Config struct {
	Port        int
	DatabaseURL string
	JWTSecret   string
	DataDir     string

	// AList connection for remote directory listing. A static token takes
	// precedence over username/password login.
	AListURL      string
	AListUsername string
	AListPassword string
	AListToken    string
	AListTimeout  time.Duration
	AListRate     float64

	// Redis backs both the lookup cache and the job queue. Empty address
	// switches the cache to in-process memory and disables queued scans.
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	TMDBAPIKey     string
	TMDBLanguage   string
	TVDBAPIKey     string
	OMDBAPIKey     string
	DoubanEnabled  bool
	MatchThreshold float64

	ScanRoots    []string
	ScanPreset   string
	ScanMaxDepth int
	ScanCron     string
	PresetsFile  string
	CatalogPath  string

	WorkerConcurrency int
}

func Load() *Config {
	dataDir := env("DATA_DIR", "/data")
	return &Config{
		Port:        envInt("PORT", 8080),
		DatabaseURL: env("DATABASE_URL", "postgres://mediadex:mediadex@db:5432/mediadex?sslmode=disable"),
		JWTSecret:   env("JWT_SECRET", "change-me-in-production"),
		DataDir:     dataDir,

		AListURL:      env("ALIST_URL", ""),
		AListUsername: env("ALIST_USERNAME", ""),
		AListPassword: env("ALIST_PASSWORD", ""),
		AListToken:    env("ALIST_TOKEN", ""),
		AListTimeout:  envDuration("ALIST_TIMEOUT", 30*time.Second),
		AListRate:     envFloat("ALIST_RATE", 5),

		RedisAddr:     env("REDIS_ADDR", ""),
		RedisPassword: env("REDIS_PASSWORD", ""),
		CacheTTL:      envDuration("CACHE_TTL", 7*24*time.Hour),

		TMDBAPIKey:     env("TMDB_API_KEY", ""),
		TMDBLanguage:   env("TMDB_LANGUAGE", "zh-CN"),
		TVDBAPIKey:     env("TVDB_API_KEY", ""),
		OMDBAPIKey:     env("OMDB_API_KEY", ""),
		DoubanEnabled:  envBool("DOUBAN_ENABLED", false),
		MatchThreshold: envFloat("MATCH_THRESHOLD", 0.55),

		ScanRoots:    envList("SCAN_ROOTS"),
		ScanPreset:   env("SCAN_PRESET", "default"),
		ScanMaxDepth: envInt("SCAN_MAX_DEPTH", 8),
		ScanCron:     env("SCAN_CRON", "0 3 * * *"),
		PresetsFile:  env("PRESETS_FILE", ""),
		CatalogPath:  env("CATALOG_PATH", filepath.Join(dataDir, "catalog.json")),

		WorkerConcurrency: envInt("WORKER_CONCURRENCY", 4),
	}
}

// MergeFromDB overlays runtime settings stored by the API onto the
// environment-derived config. Missing table or rows leave defaults alone.
func (c *Config) MergeFromDB(db *sql.DB) {
	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		log.Printf("config: skipping DB merge: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		switch key {
		case "alist_url":
			c.AListURL = value
		case "alist_username":
			c.AListUsername = value
		case "alist_password":
			c.AListPassword = value
		case "alist_token":
			c.AListToken = value
		case "tmdb_api_key":
			c.TMDBAPIKey = value
		case "tmdb_language":
			c.TMDBLanguage = value
		case "tvdb_api_key":
			c.TVDBAPIKey = value
		case "omdb_api_key":
			c.OMDBAPIKey = value
		case "douban_enabled":
			c.DoubanEnabled = cast.ToBool(value)
		case "match_threshold":
			if v := cast.ToFloat64(value); v > 0 {
				c.MatchThreshold = v
			}
		case "scan_roots":
			c.ScanRoots = splitList(value)
		case "scan_preset":
			c.ScanPreset = value
		case "scan_max_depth":
			if v := cast.ToInt(value); v > 0 {
				c.ScanMaxDepth = v
			}
		case "scan_cron":
			c.ScanCron = value
		case "catalog_path":
			c.CatalogPath = value
		}
	}
}

func (c *Config) AListEnabled() bool { return c.AListURL != "" }
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }
func (c *Config) TMDBEnabled() bool  { return c.TMDBAPIKey != "" }
func (c *Config) TVDBEnabled() bool  { return c.TVDBAPIKey != "" }
func (c *Config) OMDBEnabled() bool  { return c.OMDBAPIKey != "" }

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := cast.ToIntE(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := cast.ToFloat64E(v); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	return splitList(os.Getenv(key))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
