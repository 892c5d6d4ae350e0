package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwulff/hush/internal/clock"
	"github.com/jwulff/hush/internal/config"
	"github.com/jwulff/hush/internal/daemon"
	"github.com/jwulff/hush/internal/policy"
	"github.com/jwulff/hush/internal/schedule"
	"github.com/jwulff/hush/internal/store"
	"github.com/jwulff/hush/internal/timer"
	"github.com/jwulff/hush/internal/voice"
	"github.com/jwulff/hush/internal/voice/audio"
	"github.com/jwulff/hush/internal/voice/deepgram"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the hush daemon",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)

	logger.Info().
		Str("version", version).
		Str("socket", cfg.SocketPath).
		Str("db", cfg.DBPath).
		Msg("starting hushd")

	st, err := store.Open(cfg.DBPath, cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("close store")
		}
	}()

	machine := timer.NewMachine(clock.Real{}, logger)
	machine.AttachStore(st)
	machine.AttachHistory(st)
	machine.SetVoiceEnabled(cfg.VoiceEnabled)
	machine.SetVoiceMode(timer.VoiceMode(cfg.VoiceMode))
	machine.SetKeyword(cfg.VoiceKeyword)

	// The recognizer is chosen once at startup. Without an API key the
	// environment is unsupported and the daemon runs manual-only.
	var rec voice.Recognizer
	if cfg.DeepgramAPIKey != "" {
		rec = deepgram.NewRecognizer(cfg.Deepgram(), audio.NewCapture("ffmpeg"), logger)
	} else {
		logger.Warn().Msg("no recognizer configured; voice auto-stop disabled")
		rec = voice.Unsupported{}
	}

	trigger := voice.NewTrigger(rec, logger)
	trigger.OnUtterance(func(utterance string) {
		policy.Apply(machine, utterance)
	})
	machine.AttachTrigger(trigger)

	server := daemon.NewServer(cfg.SocketPath, machine, st, logger)
	trigger.OnWarning(server.VoiceWarning)

	evaluator := schedule.NewEvaluator(clock.Real{}, machine, cfg.EvalInterval, logger)
	go evaluator.Run()
	defer evaluator.Stop()

	if err := server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer server.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	logger.Info().Str("signal", received.String()).Msg("shutting down")

	// Disarm before the deferred teardown so a live recognition stream
	// never outlives the server.
	trigger.Disarm()
	return nil
}

func setupLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
