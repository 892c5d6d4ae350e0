// Package config loads daemon and client settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jwulff/hush/internal/daemon"
	"github.com/jwulff/hush/internal/store"
	"github.com/jwulff/hush/internal/voice/deepgram"
)

// Config holds all runtime settings.
type Config struct {
	SocketPath   string `env:"HUSH_SOCKET"`
	DBPath       string `env:"HUSH_DB"`
	HistoryLimit int    `env:"HUSH_HISTORY_LIMIT" envDefault:"10"`
	LogLevel     string `env:"HUSH_LOG_LEVEL" envDefault:"info"`

	// EvalInterval is how often the scheduled-finish evaluator wakes up.
	EvalInterval time.Duration `env:"HUSH_EVAL_INTERVAL" envDefault:"500ms"`

	VoiceEnabled bool   `env:"HUSH_VOICE_ENABLED" envDefault:"true"`
	VoiceMode    string `env:"HUSH_VOICE_MODE" envDefault:"any"`
	VoiceKeyword string `env:"HUSH_VOICE_KEYWORD"`

	DeepgramAPIKey  string `env:"DEEPGRAM_API_KEY"`
	DeepgramBaseURL string `env:"HUSH_DEEPGRAM_URL"`
	DeepgramModel   string `env:"HUSH_DEEPGRAM_MODEL"`
	Language        string `env:"HUSH_LANGUAGE"`

	SampleRate  int    `env:"HUSH_SAMPLE_RATE"`
	Channels    int    `env:"HUSH_CHANNELS"`
	InputFormat string `env:"HUSH_INPUT_FORMAT"`
	InputDevice string `env:"HUSH_INPUT_DEVICE"`
}

// Load parses the environment and fills in path defaults that depend on the
// user's home directory.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.SocketPath == "" {
		cfg.SocketPath = daemon.SocketPath()
	}
	if cfg.DBPath == "" {
		cfg.DBPath = store.DefaultDBPath()
	}
	return cfg, nil
}

// Deepgram assembles the recognizer configuration from the loaded settings.
func (c Config) Deepgram() deepgram.Config {
	return deepgram.Config{
		APIKey:      c.DeepgramAPIKey,
		APIBaseURL:  c.DeepgramBaseURL,
		Model:       c.DeepgramModel,
		Language:    c.Language,
		SampleRate:  c.SampleRate,
		Channels:    c.Channels,
		InputFormat: c.InputFormat,
		InputDevice: c.InputDevice,
	}
}
