package config

import (
	"os"
	"strings"
	"time"
)

// parseEnv overlays values from environment variables (typically loaded from
// a .env file by the entrypoint). Unset variables leave the current value.
//
//	ENDPOINT_ADDR          HTTP bind address
//	DATABASE_DSN           PostgreSQL DSN
//	SECRET_KEY             JWT HMAC secret
//	READ_TIMEOUT           e.g. "15s"
//	WRITE_TIMEOUT          e.g. "30s"
//	SHUTDOWN_TIMEOUT       e.g. "10s"
//	CORS_ALLOWED_ORIGINS   comma-separated origins
func parseEnv(config *Config) {
	if v := os.Getenv("ENDPOINT_ADDR"); v != "" {
		config.EndpointAddr = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		config.SecretKey = v
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		config.CORSAllowedOrigins = strings.Split(v, ",")
	}
}
