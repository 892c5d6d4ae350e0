package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SocketPath == "" {
		t.Fatal("SocketPath is empty, want a default")
	}
	if cfg.DBPath == "" {
		t.Fatal("DBPath is empty, want a default")
	}
	if cfg.HistoryLimit != 10 {
		t.Fatalf("HistoryLimit = %d, want 10", cfg.HistoryLimit)
	}
	if cfg.EvalInterval != 500*time.Millisecond {
		t.Fatalf("EvalInterval = %v, want 500ms", cfg.EvalInterval)
	}
	if cfg.VoiceMode != "any" {
		t.Fatalf("VoiceMode = %q, want %q", cfg.VoiceMode, "any")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HUSH_SOCKET", "/tmp/custom.sock")
	t.Setenv("HUSH_HISTORY_LIMIT", "5")
	t.Setenv("HUSH_VOICE_MODE", "keyword")
	t.Setenv("HUSH_VOICE_KEYWORD", "Banana")
	t.Setenv("DEEPGRAM_API_KEY", "dg-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SocketPath != "/tmp/custom.sock" {
		t.Fatalf("SocketPath = %q, want %q", cfg.SocketPath, "/tmp/custom.sock")
	}
	if cfg.HistoryLimit != 5 {
		t.Fatalf("HistoryLimit = %d, want 5", cfg.HistoryLimit)
	}
	if cfg.VoiceMode != "keyword" {
		t.Fatalf("VoiceMode = %q, want %q", cfg.VoiceMode, "keyword")
	}

	dg := cfg.Deepgram()
	if dg.APIKey != "dg-test" {
		t.Fatalf("Deepgram().APIKey = %q, want %q", dg.APIKey, "dg-test")
	}
}
