package physics

import (
	"path/filepath"
	"testing"
)

func TestConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GravityY = -3.71 // mars
	cfg.VelocityIterations = 16
	cfg.ParallelIslands = true
	cfg.WorkerCount = 8

	path := filepath.Join(t.TempDir(), "physics.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded != cfg {
		t.Errorf("Round trip changed the config:\nsaved:  %+v\nloaded: %+v", cfg, loaded)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timestep", func(c *Config) { c.FixedTimestep = 0 }},
		{"negative timestep", func(c *Config) { c.FixedTimestep = -0.01 }},
		{"zero substeps", func(c *Config) { c.MaxSubsteps = 0 }},
		{"zero iterations", func(c *Config) { c.VelocityIterations = 0 }},
		{"baumgarte above one", func(c *Config) { c.Baumgarte = 1.5 }},
		{"negative slop", func(c *Config) { c.PenetrationSlop = -0.1 }},
		{"zero cell size", func(c *Config) { c.CellSize = 0 }},
		{"parallel without workers", func(c *Config) { c.ParallelIslands = true; c.WorkerCount = 0 }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate should reject %s", tc.name)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Loading a missing file should fail")
	}
}

func TestNewWorldRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FixedTimestep = 0
	if _, err := NewWorld(cfg); err == nil {
		t.Error("NewWorld should reject an invalid config")
	}
}
