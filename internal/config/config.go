package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	AssemblyAIKey string

	ReasoningAPIKey  string
	ReasoningBaseURL string
	ReasoningModel   string

	TTSVendor         string // "elevenlabs" or "deepgram"
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	DeepgramKey       string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	Engine Engine
}

// Engine contains the turn-engine tuning parameters. Loaded from an optional
// YAML file pointed at by ENGINE_CONFIG; missing fields get defaults.
type Engine struct {
	QuietIntervalMs  int    `yaml:"quiet_interval_ms"`
	MinTurnChars     int    `yaml:"min_turn_chars"`
	RevealIntervalMs int    `yaml:"reveal_interval_ms"`
	PersistEvery     int    `yaml:"persist_every"`
	DefaultLanguage  string `yaml:"default_language"`
	FillerDir        string `yaml:"filler_dir"`
	ReasoningTimeout int    `yaml:"reasoning_timeout_s"`
}

// QuietInterval returns the silence window as a duration.
func (e Engine) QuietInterval() time.Duration {
	return time.Duration(e.QuietIntervalMs) * time.Millisecond
}

// RevealInterval returns the text reveal tick as a duration.
func (e Engine) RevealInterval() time.Duration {
	return time.Duration(e.RevealIntervalMs) * time.Millisecond
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	assemblyAIKey := os.Getenv("ASSEMBLYAI_API_KEY")
	if assemblyAIKey == "" {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - transcription will not work")
	}

	reasoningKey := os.Getenv("REASONING_API_KEY")
	if reasoningKey == "" {
		log.Println("Warning: REASONING_API_KEY not set - reasoning will not work")
	}
	reasoningModel := os.Getenv("REASONING_MODEL")
	if reasoningModel == "" {
		reasoningModel = "gpt-4o-mini"
	}

	vendor := os.Getenv("TTS_VENDOR")
	if vendor == "" {
		vendor = "elevenlabs"
	}
	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	if vendor == "elevenlabs" && elevenKey == "" {
		log.Println("Warning: ELEVENLABS_API_KEY not set - TTS will not work")
	}
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if vendor == "deepgram" && deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - TTS will not work")
	}

	supaURL := os.Getenv("SUPABASE_URL")
	supaKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	if supaURL == "" || supaKey == "" {
		log.Println("Warning: SUPABASE_URL / SUPABASE_SERVICE_ROLE_KEY not set - transcripts will not be persisted")
	}
	bucket := os.Getenv("SUPABASE_BUCKET")
	if bucket == "" {
		bucket = "transcripts"
	}

	engine, err := LoadEngine(os.Getenv("ENGINE_CONFIG"))
	if err != nil {
		log.Printf("engine config: %v - using defaults", err)
		engine = DefaultEngine()
	}

	log.Printf("config: HTTP_ADDRESS=%s TTS_VENDOR=%s", addr, vendor)
	return Config{
		HTTPAddress:        addr,
		AssemblyAIKey:      assemblyAIKey,
		ReasoningAPIKey:    reasoningKey,
		ReasoningBaseURL:   os.Getenv("REASONING_BASE_URL"),
		ReasoningModel:     reasoningModel,
		TTSVendor:          vendor,
		ElevenLabsKey:      elevenKey,
		ElevenLabsVoiceID:  os.Getenv("ELEVENLABS_VOICE_ID"),
		DeepgramKey:        deepgramKey,
		SupabaseURL:        supaURL,
		SupabaseServiceKey: supaKey,
		SupabaseBucket:     bucket,
		Engine:             engine,
	}
}

// DefaultEngine returns the engine tuning defaults.
func DefaultEngine() Engine {
	return Engine{
		QuietIntervalMs:  1500,
		MinTurnChars:     3,
		RevealIntervalMs: 40,
		PersistEvery:     3,
		DefaultLanguage:  "English",
		FillerDir:        "assets/fillers",
		ReasoningTimeout: 20,
	}
}

// LoadEngine reads and parses the engine tuning file. An empty path returns
// the defaults.
func LoadEngine(path string) (Engine, error) {
	e := DefaultEngine()
	if path == "" {
		return e, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return e, fmt.Errorf("failed to read engine config %s: %w", path, err)
	}
	e = Engine{}
	if err := yaml.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("failed to parse engine config %s: %w", path, err)
	}
	applyEngineDefaults(&e)
	if err := e.Validate(); err != nil {
		return e, err
	}
	return e, nil
}

func applyEngineDefaults(e *Engine) {
	d := DefaultEngine()
	if e.QuietIntervalMs == 0 {
		e.QuietIntervalMs = d.QuietIntervalMs
	}
	if e.MinTurnChars == 0 {
		e.MinTurnChars = d.MinTurnChars
	}
	if e.RevealIntervalMs == 0 {
		e.RevealIntervalMs = d.RevealIntervalMs
	}
	if e.PersistEvery == 0 {
		e.PersistEvery = d.PersistEvery
	}
	if e.DefaultLanguage == "" {
		e.DefaultLanguage = d.DefaultLanguage
	}
	if e.FillerDir == "" {
		e.FillerDir = d.FillerDir
	}
	if e.ReasoningTimeout == 0 {
		e.ReasoningTimeout = d.ReasoningTimeout
	}
}

// Validate checks engine tuning bounds.
func (e Engine) Validate() error {
	if e.QuietIntervalMs < 200 {
		return fmt.Errorf("quiet_interval_ms must be at least 200, got %d", e.QuietIntervalMs)
	}
	if e.MinTurnChars < 1 {
		return fmt.Errorf("min_turn_chars must be positive, got %d", e.MinTurnChars)
	}
	if e.RevealIntervalMs < 5 {
		return fmt.Errorf("reveal_interval_ms must be at least 5, got %d", e.RevealIntervalMs)
	}
	if e.PersistEvery < 1 {
		return fmt.Errorf("persist_every must be positive, got %d", e.PersistEvery)
	}
	if e.ReasoningTimeout < 1 {
		return fmt.Errorf("reasoning_timeout_s must be positive, got %d", e.ReasoningTimeout)
	}
	return nil
}
