package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the receptionist service.
type Config struct {
	BindAddr        string
	ShutdownTimeout time.Duration
	// PublicBaseURL is the externally reachable base URL the telephony
	// provider uses for webhook callbacks and clip playback.
	PublicBaseURL    string
	MetricsNamespace string

	AllowAnyOrigin bool

	GeminiAPIKey string
	GeminiModel  string

	TwilioAccountSID string
	TwilioAuthToken  string

	TranscribeAPIURL string
	TranscribeAPIKey string
	TranscribeModel  string

	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	DatabaseURL string

	MaxTurns              int
	RecordMaxSeconds      int
	RecordSilenceTimeout  int
	CallInactivityTimeout time.Duration

	SayVoice    string
	SayLanguage string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		PublicBaseURL:    strings.TrimRight(stringsTrimSpace("APP_PUBLIC_BASE_URL"), "/"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "frontdesk"),
		AllowAnyOrigin:   false,
		GeminiAPIKey:     stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:      envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		TwilioAccountSID: stringsTrimSpace("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  stringsTrimSpace("TWILIO_AUTH_TOKEN"),
		TranscribeAPIURL: stringsTrimSpace("TRANSCRIBE_API_URL"),
		TranscribeAPIKey: stringsTrimSpace("TRANSCRIBE_API_KEY"),
		TranscribeModel:  envOrDefault("TRANSCRIBE_MODEL", "whisper-1"),
		ElevenLabsAPIKey: stringsTrimSpace("ELEVENLABS_API_KEY"),
		// Default to a neutral premade voice.
		ElevenLabsVoiceID: envOrDefault("ELEVENLABS_TTS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsModelID: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_turbo_v2_5"),
		DatabaseURL:       stringsTrimSpace("DATABASE_URL"),

		MaxTurns:              10,
		RecordMaxSeconds:      30,
		RecordSilenceTimeout:  5,
		CallInactivityTimeout: 5 * time.Minute,
		ShutdownTimeout:       15 * time.Second,

		SayVoice:    envOrDefault("APP_SAY_VOICE", "Polly.Joanna"),
		SayLanguage: envOrDefault("APP_SAY_LANGUAGE", "en-US"),
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CallInactivityTimeout, err = durationFromEnv("APP_CALL_INACTIVITY_TIMEOUT", cfg.CallInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTurns, err = intFromEnv("APP_MAX_TURNS", cfg.MaxTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.RecordMaxSeconds, err = intFromEnv("APP_RECORD_MAX_SECONDS", cfg.RecordMaxSeconds)
	if err != nil {
		return Config{}, err
	}
	cfg.RecordSilenceTimeout, err = intFromEnv("APP_RECORD_SILENCE_TIMEOUT", cfg.RecordSilenceTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.MaxTurns <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_TURNS must be positive")
	}
	if cfg.RecordMaxSeconds <= 0 {
		return Config{}, fmt.Errorf("APP_RECORD_MAX_SECONDS must be positive")
	}
	if cfg.RecordSilenceTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_RECORD_SILENCE_TIMEOUT must be positive")
	}
	if cfg.CallInactivityTimeout < 30*time.Second {
		return Config{}, fmt.Errorf("APP_CALL_INACTIVITY_TIMEOUT must be at least 30s")
	}
	if cfg.PublicBaseURL != "" && !strings.HasPrefix(cfg.PublicBaseURL, "http") {
		return Config{}, fmt.Errorf("APP_PUBLIC_BASE_URL must be an http(s) URL")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
