package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	p := cfg.Params()
	if p.Margin != 30 || p.ConflictTolerance != 5 || p.GrowthRounds != 25 {
		t.Errorf("Unexpected defaults: margin=%d tolerance=%d rounds=%d", p.Margin, p.ConflictTolerance, p.GrowthRounds)
	}
	if p.SuperSampleFactor != 3 || p.Step != 1 {
		t.Errorf("Unexpected defaults: factor=%f step=%f", p.SuperSampleFactor, p.Step)
	}
	if cfg.Output.SliceFormat != "tiff" {
		t.Errorf("Expected tiff slices by default, got %q", cfg.Output.SliceFormat)
	}
}

func TestLoadMissingConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Missing config should fall back to defaults: %v", err)
	}
	if cfg.Straighten.GrowthRounds != 25 {
		t.Errorf("Expected default growth rounds, got %d", cfg.Straighten.GrowthRounds)
	}
}

func TestSaveLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Straighten.GrowthRounds = 10
	cfg.Straighten.SuperSampleFactor = 4.5
	cfg.Output.SliceFormat = "png"
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Straighten.GrowthRounds != 10 || loaded.Straighten.SuperSampleFactor != 4.5 {
		t.Errorf("Round trip lost straighten values: %+v", loaded.Straighten)
	}
	if loaded.Output.SliceFormat != "png" {
		t.Errorf("Expected png, got %q", loaded.Output.SliceFormat)
	}
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("straighten:\n  margin: 12\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Straighten.Margin != 12 {
		t.Errorf("Expected margin 12, got %d", cfg.Straighten.Margin)
	}
	if cfg.Straighten.ConflictTolerance != 5 {
		t.Errorf("Expected default tolerance to survive, got %d", cfg.Straighten.ConflictTolerance)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no cores", func(c *Config) { c.Processing.NumCores = 0 }},
		{"bad format", func(c *Config) { c.Output.SliceFormat = "bmp" }},
		{"zero step", func(c *Config) { c.Straighten.Step = 0 }},
		{"negative rounds", func(c *Config) { c.Straighten.GrowthRounds = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected config file to exist: %v", err)
	}
}
