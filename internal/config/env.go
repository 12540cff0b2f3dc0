package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv loads .env from the working directory when present. Variables
// already set in the process environment take precedence.
func loadDotEnv() {
	_ = godotenv.Load()
}

func applyEnvOverrides(cfg *AppConfig) error {
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		cfg.Database.DSN = v
		if driver := driverFromURL(v); driver != "" {
			cfg.Database.Driver = driver
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseMaxConnections)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s is in an incorrect format: %w", EnvDatabaseMaxConnections, err)
		}
		cfg.Database.MaxConnections = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisURL)); v != "" {
		cfg.Redis.URL = normalizeRedisRawURL(v)
		cfg.Redis.Enable = true
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s is in an incorrect format: %w", EnvPort, err)
		}
		cfg.Port = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvJWTSecret)); v != "" {
		cfg.JWTSecret = v
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return nil
}

func driverFromURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(raw, "file:"):
		return DriverSQLite
	}
	return ""
}
