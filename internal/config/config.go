// Package config reads process configuration from the environment.
// A .env file, when present, is loaded by the caller through godotenv first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"standmap-service/internal/domain"
)

type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Routing RoutingConfig
	Map     MapConfig
	Session SessionConfig
	GPSD    GPSDConfig
	Sentry  SentryConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

// StoreConfig selects the key/value backend for persisted points.
type StoreConfig struct {
	Driver      string // memory, postgres, sqlite, redis
	DatabaseURL string
	SqlitePath  string
	RedisAddr   string
}

type RoutingConfig struct {
	ORSAPIKey  string
	ORSBaseURL string
	Profile    string
	Timeout    time.Duration
	CacheTTL   time.Duration
}

type MapConfig struct {
	Center           domain.Coordinate
	Zoom             int
	StandsPath       string
	CarMarkerPolicy  string // preserve, clear
	ShowStandMarkers bool
	CarLocationKey   string
}

type SessionConfig struct {
	IdleTimeout time.Duration
}

type GPSDConfig struct {
	Addr string
}

type SentryConfig struct {
	DSN         string
	Environment string
}

type LogConfig struct {
	Level       string
	Development bool
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load builds a Config from environment variables, applying defaults.
func Load() (*Config, error) {
	routeTimeout, err := getDuration("ROUTE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getDuration("ROUTE_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	idle, err := getDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour)
	if err != nil {
		return nil, err
	}
	zoom, err := getInt("MAP_ZOOM", 16)
	if err != nil {
		return nil, err
	}
	showStands, err := getBool("SHOW_STAND_MARKERS", false)
	if err != nil {
		return nil, err
	}
	devLog, err := getBool("LOG_DEVELOPMENT", false)
	if err != nil {
		return nil, err
	}

	policy := strings.ToLower(Get("CAR_MARKER_POLICY", "preserve"))
	if policy != "preserve" && policy != "clear" {
		return nil, fmt.Errorf("load config: CAR_MARKER_POLICY must be preserve or clear, got %q", policy)
	}

	driver := strings.ToLower(Get("STORE_DRIVER", "memory"))
	switch driver {
	case "memory", "postgres", "sqlite", "redis":
	default:
		return nil, fmt.Errorf("load config: unsupported STORE_DRIVER %q", driver)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        Get("PORT", "8080"),
			CORSOrigins: splitList(Get("CORS_ORIGINS", "http://localhost:4200")),
		},
		Store: StoreConfig{
			Driver:      driver,
			DatabaseURL: os.Getenv("DATABASE_URL"),
			SqlitePath:  Get("SQLITE_PATH", "data/app.db"),
			RedisAddr:   Get("REDIS_ADDR", "localhost:6379"),
		},
		Routing: RoutingConfig{
			ORSAPIKey:  os.Getenv("ORS_API_KEY"),
			ORSBaseURL: Get("ORS_BASE_URL", "https://api.openrouteservice.org"),
			Profile:    Get("ORS_PROFILE", "foot-walking"),
			Timeout:    routeTimeout,
			CacheTTL:   cacheTTL,
		},
		Map: MapConfig{
			Center:           domain.NewCoordinate(-24.98024, -53.33931),
			Zoom:             zoom,
			StandsPath:       os.Getenv("STANDS_PATH"),
			CarMarkerPolicy:  policy,
			ShowStandMarkers: showStands,
			CarLocationKey:   Get("CAR_LOCATION_KEY", "showRuralCarLocation"),
		},
		Session: SessionConfig{IdleTimeout: idle},
		GPSD:    GPSDConfig{Addr: os.Getenv("GPSD_ADDR")},
		Sentry: SentryConfig{
			DSN:         os.Getenv("SENTRY_DSN"),
			Environment: Get("SENTRY_ENVIRONMENT", "development"),
		},
		Log: LogConfig{
			Level:       Get("LOG_LEVEL", "info"),
			Development: devLog,
		},
	}

	if driver == "postgres" && strings.TrimSpace(cfg.Store.DatabaseURL) == "" {
		return nil, fmt.Errorf("load config: DATABASE_URL is required for STORE_DRIVER=postgres")
	}

	return cfg, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("load config: %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("load config: %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("load config: %s: %w", key, err)
	}
	return b, nil
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
