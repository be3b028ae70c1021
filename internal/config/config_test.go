package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatasetPath != "data/dtc_codes.csv" || cfg.Model.TimeoutSeconds != 180 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err != nil {
		t.Errorf("missing config file errored: %v", err)
	}
}

func TestLoadTOMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dtckit.toml")
	body := `
dataset_path = "custom/codes.csv"
nats_url = "nats://queue:4222"

[model]
name = "some/model"
calls_per_second = 2.0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("DTCKIT_MODEL", "env/model")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatasetPath != "custom/codes.csv" || cfg.NATSURL != "nats://queue:4222" {
		t.Errorf("toml not applied: %+v", cfg)
	}
	if cfg.Model.CallsPerSecond != 2.0 {
		t.Errorf("calls_per_second = %v", cfg.Model.CallsPerSecond)
	}
	// Environment wins over the file.
	if cfg.Model.Name != "env/model" || cfg.Model.APIKey != "sk-test" {
		t.Errorf("env not applied: %+v", cfg.Model)
	}
	// Untouched fields keep their defaults.
	if cfg.RunsDBPath != "data/runs.db" {
		t.Errorf("RunsDBPath = %q", cfg.RunsDBPath)
	}
}
