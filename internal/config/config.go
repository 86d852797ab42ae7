package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	RedisAddr   string
	RedisDB     int

	AutoThreshold   float64
	ReviewThreshold float64
	MaxCandidates   int

	MaxTries      int
	RetryDelays   []time.Duration
	TaskTimeout   time.Duration
	WorkerCount   int
	ClaimBatch    int
	DeadLetterTTL time.Duration

	ReviewTTL time.Duration

	SyncLockTTL time.Duration

	OpenAIAPIKey  string
	SemanticModel string

	SheetsClientID     string
	SheetsClientSecret string
	SheetsRefreshToken string
	SheetsSpreadsheet  string
	SheetsRange        string

	LogLevel string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/pricesync?sslmode=disable"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),

		AutoThreshold:   getEnvFloat("MATCH_AUTO_THRESHOLD", 95.0),
		ReviewThreshold: getEnvFloat("MATCH_REVIEW_THRESHOLD", 70.0),
		MaxCandidates:   getEnvInt("MATCH_MAX_CANDIDATES", 5),

		MaxTries:      getEnvInt("TASK_MAX_TRIES", 3),
		TaskTimeout:   getEnvDuration("TASK_TIMEOUT", 2*time.Minute),
		WorkerCount:   getEnvInt("MATCH_WORKER_COUNT", 4),
		ClaimBatch:    getEnvInt("CLAIM_BATCH_SIZE", 100),
		DeadLetterTTL: getEnvDuration("DEAD_LETTER_TTL", 7*24*time.Hour),

		ReviewTTL: getEnvDuration("REVIEW_ENTRY_TTL", 72*time.Hour),

		SyncLockTTL: getEnvDuration("SYNC_LOCK_TTL", 30*time.Minute),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		SemanticModel: getEnv("SEMANTIC_MODEL", "gpt-4o-mini"),

		SheetsClientID:     getEnv("SHEETS_CLIENT_ID", ""),
		SheetsClientSecret: getEnv("SHEETS_CLIENT_SECRET", ""),
		SheetsRefreshToken: getEnv("SHEETS_REFRESH_TOKEN", ""),
		SheetsSpreadsheet:  getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsRange:        getEnv("SHEETS_RANGE", "Suppliers!A2:C"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	delays, err := parseDelays(getEnv("TASK_RETRY_DELAYS", "1s,5s,25s"))
	if err != nil {
		return Config{}, err
	}
	cfg.RetryDelays = delays

	if cfg.ReviewThreshold > cfg.AutoThreshold {
		return Config{}, fmt.Errorf("MATCH_REVIEW_THRESHOLD (%v) must not exceed MATCH_AUTO_THRESHOLD (%v)",
			cfg.ReviewThreshold, cfg.AutoThreshold)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func parseDelays(raw string) ([]time.Duration, error) {
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid TASK_RETRY_DELAYS entry %q: %w", p, err)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("TASK_RETRY_DELAYS must not be empty")
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
