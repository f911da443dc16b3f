package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"packhouse-backend/internal/models"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=packhouse port=5432 sslmode=disable"

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
	LogLevel    string

	// Redis is optional; without it reconciliation runs are serialized in-process.
	RedisAddress  string
	RedisPassword string

	ReconInterval          time.Duration // 0 disables scheduled runs
	ReconWorkers           int
	ColdStorageMaxGapHours float64
	// ReconBands holds critical/high/medium/low percentage thresholds per alert type.
	ReconBands map[models.AlertType][4]float64

	bandErrors []error
}

func Load() *Config {
	// A missing .env is fine, the process environment is used as is.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:            getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		CORSOrigins:            getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		RedisAddress:           getEnv("REDIS_ADDRESS", ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		ReconInterval:          getDuration("RECON_INTERVAL", 0),
		ReconWorkers:           getInt("RECON_WORKERS", 4),
		ColdStorageMaxGapHours: getFloat("COLD_STORAGE_MAX_GAP_HOURS", 4),
		ReconBands:             map[models.AlertType][4]float64{},
	}

	for _, t := range models.AlertTypes {
		key := "RECON_BANDS_" + strings.ToUpper(strings.ReplaceAll(string(t), "-", "_"))
		if raw := os.Getenv(key); raw != "" {
			bands, err := parseBands(raw)
			if err != nil {
				cfg.bandErrors = append(cfg.bandErrors, fmt.Errorf("%s: %w", key, err))
				continue
			}
			cfg.ReconBands[t] = bands
		}
	}

	return cfg
}

// Check reports unsafe settings. A missing or short JWT secret is fatal.
func (cfg *Config) Check(logger *logrus.Logger) {
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}
	if len(cfg.JWTSecret) < 32 {
		logger.Fatal("JWT_SECRET must be at least 32 characters")
	}
	for _, err := range cfg.bandErrors {
		logger.WithError(err).Fatal("invalid reconciliation severity bands")
	}
	if cfg.DatabaseDSN == defaultDSN {
		logger.Warn("DATABASE_DSN uses the default local value")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		logger.Warn("CORS_ALLOWED_ORIGINS uses the default development origin")
	}
	if cfg.RedisAddress == "" {
		logger.Warn("REDIS_ADDRESS not set, reconciliation runs are locked per process only")
	}
}

func parseBands(raw string) ([4]float64, error) {
	var out [4]float64
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return out, fmt.Errorf("want 4 comma separated values, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
