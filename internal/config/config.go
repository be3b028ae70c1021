// Package config loads runtime settings: compiled defaults, then an
// optional TOML file, then environment variables. A .env file next to the
// working directory is folded into the environment first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Model holds the model client settings. The API key never lives in the
// TOML file.
type Model struct {
	Name               string  `toml:"name"`
	BaseURL            string  `toml:"base_url"`
	Temperature        float64 `toml:"temperature"`
	MaxTokens          int     `toml:"max_tokens"`
	CallsPerSecond     float64 `toml:"calls_per_second"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	PromptCostPerM     float64 `toml:"prompt_cost_per_m"`
	CompletionCostPerM float64 `toml:"completion_cost_per_m"`
	Referer            string  `toml:"referer"`
	Title              string  `toml:"title"`

	APIKey string `toml:"-"`
}

// Timeout returns the per-call timeout as a duration.
func (m Model) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// Config is the full runtime configuration.
type Config struct {
	DatasetPath   string `toml:"dataset_path"`
	ReferencePath string `toml:"reference_path"`
	MergedPath    string `toml:"merged_path"`
	RunsDBPath    string `toml:"runs_db_path"`
	NATSURL       string `toml:"nats_url"`
	LogLevel      string `toml:"log_level"`

	Model Model `toml:"model"`
}

func defaults() Config {
	return Config{
		DatasetPath:   "data/dtc_codes.csv",
		ReferencePath: "data/reference_codes.csv",
		MergedPath:    "data/app_data.json",
		RunsDBPath:    "data/runs.db",
		NATSURL:       "nats://127.0.0.1:4222",
		LogLevel:      "info",
		Model: Model{
			Name:           "openai/gpt-4o-mini",
			Temperature:    0.2,
			MaxTokens:      8192,
			CallsPerSecond: 0.5,
			TimeoutSeconds: 180,
			Title:          "dtckit",
		},
	}
}

// Load builds the configuration. path may be empty or point to a TOML
// file; a missing file at the default location is not an error.
func Load(path string) (Config, error) {
	// Best effort: absence of a .env file is the common case.
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	sets := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	sets(&cfg.Model.APIKey, "OPENROUTER_API_KEY")
	sets(&cfg.Model.Name, "DTCKIT_MODEL")
	sets(&cfg.Model.BaseURL, "DTCKIT_MODEL_BASE_URL")
	sets(&cfg.DatasetPath, "DTCKIT_DATASET")
	sets(&cfg.ReferencePath, "DTCKIT_REFERENCE")
	sets(&cfg.MergedPath, "DTCKIT_MERGED")
	sets(&cfg.RunsDBPath, "DTCKIT_RUNS_DB")
	sets(&cfg.NATSURL, "NATS_URL")
	sets(&cfg.LogLevel, "DTCKIT_LOG_LEVEL")
	if v := os.Getenv("DTCKIT_CALLS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Model.CallsPerSecond = f
		}
	}
}
