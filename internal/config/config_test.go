package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	os.Setenv("HTTP_ADDRESS", "")
	os.Setenv("TTS_VENDOR", "")
	os.Setenv("REASONING_MODEL", "")
	os.Setenv("ENGINE_CONFIG", "")
	cfg := Load()
	if cfg.HTTPAddress == "" {
		t.Fatalf("expected default http address")
	}
	if cfg.TTSVendor != "elevenlabs" {
		t.Fatalf("expected default tts vendor, got %q", cfg.TTSVendor)
	}
	if cfg.ReasoningModel == "" {
		t.Fatalf("expected default reasoning model")
	}
	if cfg.Engine.QuietIntervalMs != 1500 {
		t.Fatalf("expected default quiet interval, got %d", cfg.Engine.QuietIntervalMs)
	}
}

func TestLoadEngine_FileOverridesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	data := []byte("quiet_interval_ms: 900\nmin_turn_chars: 5\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	e, err := LoadEngine(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.QuietIntervalMs != 900 || e.MinTurnChars != 5 {
		t.Fatalf("expected file values, got %+v", e)
	}
	// unspecified fields fall back to defaults
	if e.PersistEvery != 3 || e.DefaultLanguage != "English" {
		t.Fatalf("expected defaults for unset fields, got %+v", e)
	}
	if e.QuietInterval() != 900*time.Millisecond {
		t.Fatalf("expected duration conversion, got %v", e.QuietInterval())
	}
}

func TestLoadEngine_RejectsOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	if err := os.WriteFile(path, []byte("quiet_interval_ms: 50\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEngine(path); err == nil {
		t.Fatalf("expected validation error for tiny quiet interval")
	}
}

func TestLoadEngine_MissingFile(t *testing.T) {
	if _, err := LoadEngine("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
