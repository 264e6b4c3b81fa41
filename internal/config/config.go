package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// AuthMode selects how callers are authorized. A deployment runs exactly one.
type AuthMode string

const (
	// AuthModeAPIKey checks a Bearer API key against the key store and calls
	// Cryptlex with the service access token from the credentials secret.
	AuthModeAPIKey AuthMode = "api_key"
	// AuthModeSelfService has callers send their own Cryptlex login in the body.
	AuthModeSelfService AuthMode = "self_service"
)

type Config struct {
	HTTPListenAddr string
	// MetricsListenAddr moves /metrics to its own listener when set.
	MetricsListenAddr  string
	LogLevel           string
	ServiceName        string
	AuthMode           AuthMode
	CryptlexBaseURL    string
	UpstreamTimeout    time.Duration
	APIKeysTable       string
	CryptlexSecretName string
	AWSRegion          string
	// AWSEndpointURL points the AWS clients at a local emulator (DynamoDB
	// Local, LocalStack). Empty means the real AWS endpoints.
	AWSEndpointURL string
	DevMode        bool
}

func Load() (*Config, error) {
	timeout, err := time.ParseDuration(getEnv("UPSTREAM_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("parse UPSTREAM_TIMEOUT: %w", err)
	}

	cfg := &Config{
		HTTPListenAddr:     getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsListenAddr:  getEnv("METRICS_LISTEN_ADDR", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ServiceName:        getEnv("SERVICE_NAME", "licensegate"),
		AuthMode:           AuthMode(getEnv("AUTH_MODE", string(AuthModeAPIKey))),
		CryptlexBaseURL:    getEnv("CRYPTLEX_BASE_URL", "https://api.cryptlex.com/v3"),
		UpstreamTimeout:    timeout,
		APIKeysTable:       getEnv("API_KEYS_TABLE", "cryptlex-wrapper-api-keys"),
		CryptlexSecretName: getEnv("CRYPTLEX_SECRET_NAME", "cryptlex-api-credentials"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		AWSEndpointURL:     getEnv("AWS_ENDPOINT_URL", ""),
		DevMode:            getEnv("DEV_MODE", "") == "true",
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeAPIKey, AuthModeSelfService:
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeAPIKey, AuthModeSelfService, c.AuthMode)
	}

	u, err := url.Parse(c.CryptlexBaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("CRYPTLEX_BASE_URL is not a valid URL: %q", c.CryptlexBaseURL)
	}
	if u.Scheme != "https" && !c.DevMode {
		return fmt.Errorf("CRYPTLEX_BASE_URL must use https")
	}

	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}

	var missing []string
	if c.AuthMode == AuthModeAPIKey && c.APIKeysTable == "" {
		missing = append(missing, "API_KEYS_TABLE")
	}
	if c.CryptlexSecretName == "" {
		missing = append(missing, "CRYPTLEX_SECRET_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
