package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// #region types

// Config is the runtime configuration shared by the assistant binaries.
type Config struct {
	DBPath         string
	LogLevel       string
	LogFile        string
	CorpusPath     string // empty = built-in corpus
	StageDelay     time.Duration
	GenerateDelay  time.Duration
	RetrievalLimit int
	Generator      GeneratorConfig
}

// GeneratorConfig selects and tunes the answer generation backend.
type GeneratorConfig struct {
	Addr        string // empty = local templates
	ListenAddr  string
	Timeout     time.Duration
	MaxAttempts int
}

// #endregion types

// #region load

// envFiles are tried in order; the first one that loads wins. None is required.
var envFiles = []string{".env", "../.env"}

// Load reads an optional .env file and then the environment.
func Load() Config {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err == nil {
			break
		}
	}

	return Config{
		DBPath:         envOr("CASEKB_DB", "case_knowledge.db"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		LogFile:        os.Getenv("LOG_FILE"),
		CorpusPath:     os.Getenv("CORPUS_PATH"),
		StageDelay:     envMillis("STAGE_DELAY_MS", 800*time.Millisecond),
		GenerateDelay:  envMillis("GENERATE_DELAY_MS", 1500*time.Millisecond),
		RetrievalLimit: envInt("RETRIEVAL_LIMIT", 3),
		Generator: GeneratorConfig{
			Addr:        os.Getenv("GENERATOR_ADDR"),
			ListenAddr:  envOr("GENERATOR_LISTEN", ":50061"),
			Timeout:     envMillis("GENERATOR_TIMEOUT_MS", 5*time.Second),
			MaxAttempts: envInt("GENERATOR_MAX_ATTEMPTS", 3),
		},
	}
}

// #endregion load

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt parses a positive integer, keeping fallback on absence or bad input.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// envMillis parses a non-negative millisecond count.
func envMillis(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}

// #endregion helpers
