package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Classifier backends.
const (
	ClassifierNone   = "none"
	ClassifierHTTP   = "http"
	ClassifierClaude = "claude"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount      int
	MaxQueueSize     int
	PageWorkers      int
	BatchConcurrency int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Outline engine
	LatencyBudget  time.Duration
	RulesFile      string
	StrictContract bool

	// External classifier
	Classifier          string
	ClassifierURL       string
	ClassifierTimeout   time.Duration
	MinEscalationBudget time.Duration
	AnthropicAPIKey     string
	AnthropicModel      string

	// Result cache; empty disables it
	CacheDB string

	// OCR
	OCRLanguages []string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment. A .env file in the
// working directory, if present, is loaded first and never overrides
// variables that are already set.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCOUTLINE_API_KEY"),

		WorkerCount:      envInt("WORKER_COUNT", 4),
		MaxQueueSize:     envInt("MAX_QUEUE_SIZE", 100),
		PageWorkers:      envInt("PAGE_WORKERS", 4),
		BatchConcurrency: envInt("BATCH_CONCURRENCY", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		LatencyBudget:  envDuration("LATENCY_BUDGET", 10*time.Second),
		RulesFile:      os.Getenv("RULES_FILE"),
		StrictContract: envBool("STRICT_CONTRACT", false),

		Classifier:          strings.ToLower(envOr("CLASSIFIER", ClassifierNone)),
		ClassifierURL:       os.Getenv("CLASSIFIER_URL"),
		ClassifierTimeout:   envDuration("CLASSIFIER_TIMEOUT", 8*time.Second),
		MinEscalationBudget: envDuration("MIN_ESCALATION_BUDGET", 1*time.Second),
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:      envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),

		CacheDB: os.Getenv("CACHE_DB"),

		OCRLanguages: envList("OCR_LANGUAGES", []string{"eng"}),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "json"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = 4
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.LatencyBudget <= 0 {
		cfg.LatencyBudget = 10 * time.Second
	}
	if cfg.ClassifierTimeout <= 0 {
		cfg.ClassifierTimeout = 8 * time.Second
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.Classifier {
	case ClassifierNone:
	case ClassifierHTTP:
		if c.ClassifierURL == "" {
			return fmt.Errorf("CLASSIFIER_URL is required when CLASSIFIER=http")
		}
	case ClassifierClaude:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when CLASSIFIER=claude")
		}
	default:
		return fmt.Errorf("CLASSIFIER must be none, http or claude, got %q", c.Classifier)
	}
	if c.MinEscalationBudget < 0 {
		return fmt.Errorf("MIN_ESCALATION_BUDGET must not be negative")
	}
	if c.MinEscalationBudget >= c.LatencyBudget {
		return fmt.Errorf("MIN_ESCALATION_BUDGET (%s) must be below LATENCY_BUDGET (%s)", c.MinEscalationBudget, c.LatencyBudget)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) Logger() *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma or plus separated list, as in "eng+deu".
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, f := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '+' }) {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
