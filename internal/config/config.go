package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr string

	KVMode      string
	KVFilePath  string
	DatabaseURL string
	RedisAddr   string

	PlacesBaseURL  string
	PlacesAPIKey   string
	PlacesCountry  string
	PlacesTimeout  time.Duration
	SearchDebounce time.Duration

	GeolocationURL     string
	GeolocationTimeout time.Duration

	IPInfoBaseURL string
	IPInfoTimeout time.Duration

	BackendBaseURL    string
	BackendTimeout    time.Duration
	BackendMaxRetries int
	BackendRetryBase  time.Duration
	BackendRetryMax   time.Duration

	PersistDebounce     time.Duration
	DivergenceThreshold float64

	JWTSecret            string
	SessionEncryptionKey string

	PushEnabled   bool
	PushRetryBase time.Duration
	PushRetryMax  time.Duration
}

func Load() Config {
	return Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":18090"),

		KVMode:      getEnv("KV_MODE", "file"),
		KVFilePath:  getEnv("KV_FILE_PATH", "storesync.json"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),

		PlacesBaseURL:  getEnv("PLACES_BASE_URL", ""),
		PlacesAPIKey:   getEnv("PLACES_API_KEY", ""),
		PlacesCountry:  getEnv("PLACES_COUNTRY", "in"),
		PlacesTimeout:  getDuration("PLACES_TIMEOUT", 10*time.Second),
		SearchDebounce: getDuration("SEARCH_DEBOUNCE", 400*time.Millisecond),

		GeolocationURL:     getEnv("GEOLOCATION_URL", ""),
		GeolocationTimeout: getDuration("GEOLOCATION_TIMEOUT", 10*time.Second),

		IPInfoBaseURL: getEnv("IPINFO_BASE_URL", ""),
		IPInfoTimeout: getDuration("IPINFO_TIMEOUT", time.Second),

		BackendBaseURL:    getEnv("BACKEND_BASE_URL", ""),
		BackendTimeout:    getDuration("BACKEND_TIMEOUT", 10*time.Second),
		BackendMaxRetries: getInt("BACKEND_MAX_RETRIES", 2),
		BackendRetryBase:  getDuration("BACKEND_RETRY_BASE", 500*time.Millisecond),
		BackendRetryMax:   getDuration("BACKEND_RETRY_MAX", 5*time.Second),

		PersistDebounce:     getDuration("PERSIST_DEBOUNCE", time.Second),
		DivergenceThreshold: getFloat("DIVERGENCE_THRESHOLD", 0.1),

		JWTSecret:            getEnv("JWT_SECRET", ""),
		SessionEncryptionKey: getEnv("SESSION_ENCRYPTION_KEY", ""),

		PushEnabled:   getBool("PUSH_ENABLED", true),
		PushRetryBase: getDuration("PUSH_RETRY_BASE", 2*time.Second),
		PushRetryMax:  getDuration("PUSH_RETRY_MAX", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
