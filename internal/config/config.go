package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	defaultHTTPPort        = "8080"
	defaultMinioEndpoint   = "localhost:9000"
	defaultMinioBucket     = "compliance-notices"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenAITimeout   = 30
	defaultRateLimit       = 60
	defaultRateLimitWindow = 60
)

type Config struct {
	HTTPPort           string
	Environment        string
	PostgresDSN        string
	NatsURL            string
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioUseSSL        bool
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAITimeoutSec   int
	RateLimitRequests  int
	RateLimitWindowSec int
}

func Load() (Config, error) {
	cfg := Config{
		HTTPPort:           getenv("HTTP_PORT", defaultHTTPPort),
		Environment:        getenv("ENVIRONMENT", "development"),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		NatsURL:            os.Getenv("NATS_URL"),
		MinioEndpoint:      getenv("MINIO_ENDPOINT", defaultMinioEndpoint),
		MinioAccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:     os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:        getenv("MINIO_BUCKET", defaultMinioBucket),
		MinioUseSSL:        getenvBool("MINIO_USE_SSL", false),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        getenv("OPENAI_MODEL", defaultOpenAIModel),
		OpenAITimeoutSec:   getenvInt("OPENAI_TIMEOUT_SEC", defaultOpenAITimeout),
		RateLimitRequests:  getenvInt("RATE_LIMIT_REQUESTS", defaultRateLimit),
		RateLimitWindowSec: getenvInt("RATE_LIMIT_WINDOW_SEC", defaultRateLimitWindow),
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required")
	}

	return cfg, nil
}

// Production reports whether cookies should be marked Secure and other
// TLS-only hardening applied.
func (c Config) Production() bool {
	return c.Environment == "production"
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
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

func getenvBool(key string, fallback bool) bool {
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
