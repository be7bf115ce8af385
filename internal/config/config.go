package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/tenetdb/tenet/internal/rules"
)

// Load reads the .env file specified by TENET_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("TENET_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// StoreDriver selects the storage backend.
// Valid values: sqlite, postgres, memory. Defaults to sqlite.
func StoreDriver() string {
	d := os.Getenv("STORE_DRIVER")
	if d == "" {
		return "sqlite"
	}
	return d
}

// StoreDSN is the connection URL for postgres or the file path for sqlite.
// Defaults to a local tenet.db file.
func StoreDSN() string {
	dsn := os.Getenv("STORE_DSN")
	if dsn == "" && StoreDriver() == "sqlite" {
		return "tenet.db"
	}
	return dsn
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "local" if not set.
// Valid values: openai, local, mock, none
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "local"
	}
	return p
}

// TickInterval is the period of the background scheduler.
// Defaults to 5m if not set.
func TickInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("TICK_INTERVAL"))
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// Rules builds the rule-engine config, starting from the defaults and
// overriding any threshold that has an env var set.
func Rules() rules.Config {
	cfg := rules.DefaultConfig()
	overrideFloat(&cfg.BaseConfidence, "BASE_CONFIDENCE")
	overrideFloat(&cfg.SupportWeight, "SUPPORT_WEIGHT")
	overrideFloat(&cfg.ContradictionWeight, "CONTRADICTION_WEIGHT")
	overrideFloat(&cfg.HalfLifeDays, "HALF_LIFE_DAYS")
	overrideFloat(&cfg.ActivationThreshold, "ACTIVATION_THRESHOLD")
	overrideFloat(&cfg.DeprecationThreshold, "DEPRECATION_THRESHOLD")
	overrideInt(&cfg.ColdDays, "COLD_DAYS")
	overrideFloat(&cfg.SimilarityThreshold, "SIMILARITY_THRESHOLD")
	overrideInt(&cfg.MinGroupSize, "MIN_GROUP_SIZE")
	overrideInt(&cfg.DistillMinGroup, "DISTILL_MIN_GROUP")
	overrideInt(&cfg.BatchSize, "BATCH_SIZE")
	overrideInt(&cfg.MaxCandidates, "MAX_CANDIDATES")
	overrideInt(&cfg.MaxSignalRetries, "MAX_SIGNAL_RETRIES")
	overrideInt(&cfg.DedupMaxBeliefs, "DEDUP_MAX_BELIEFS")
	overrideFloat(&cfg.ConfidenceStep, "CONFIDENCE_STEP")
	if d, err := time.ParseDuration(os.Getenv("DEDUP_TIME_BUDGET")); err == nil && d > 0 {
		cfg.DedupTimeBudget = d
	}
	return cfg
}

func overrideFloat(dst *float64, key string) {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		*dst = v
	}
}
