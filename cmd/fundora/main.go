package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ent0n29/fundora/internal/assistant"
	"github.com/ent0n29/fundora/internal/config"
	"github.com/ent0n29/fundora/internal/logging"
	"github.com/ent0n29/fundora/internal/memory"
	"github.com/ent0n29/fundora/internal/observability"
	"github.com/ent0n29/fundora/internal/quiz"
	"github.com/ent0n29/fundora/internal/voice"
)

var version = "dev"

// runtime holds what every subcommand shares: settings, logging and the store.
type runtime struct {
	cfg     config.Config
	log     zerolog.Logger
	metrics *observability.Metrics
	store   *memory.Store
}

func setup(ctx context.Context) (*runtime, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	sub, backend, err := memory.NewSubstrate(ctx, memory.Options{
		Backend:     cfg.StoreBackend,
		SQLitePath:  cfg.StorePath,
		DatabaseURL: cfg.DatabaseURL,
		Redis: memory.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		ConnectTries: 3,
	})
	if err != nil {
		return nil, err
	}
	cfg.StoreBackend = backend
	log.Info().Str("backend", backend).Msg("store ready")

	store := memory.NewStore(sub,
		memory.WithKeyPrefix(cfg.StoreKeyPrefix),
		memory.WithRedaction(cfg.StoreRedactPII),
		memory.WithLogger(log),
	)
	return &runtime{cfg: cfg, log: log, metrics: metrics, store: store}, nil
}

func (rt *runtime) Close() error {
	return rt.store.Close()
}

// hubConfig maps runtime settings onto the per-connection defaults.
func hubConfig(cfg config.Config) assistant.HubConfig {
	hc := assistant.DefaultHubConfig()
	hc.Assistant.ResponseDelay = cfg.ResponseDelay
	hc.Assistant.Quiz = quiz.Config{
		IntroPause:   cfg.QuizIntroPause,
		ListenDelay:  cfg.QuizListenDelay,
		AdvanceDelay: cfg.QuizAdvanceDelay,
		SkipDelay:    cfg.QuizSkipDelay,
	}
	hc.StatusDismissAfter = cfg.StatusDismissAfter
	hc.Recognition.Language = cfg.SpeechLanguage
	hc.Recognition.SampleRate = cfg.STTSampleRate
	hc.Recognition.MaxAlternatives = cfg.STTMaxAlternatives
	hc.Speech.Lang = cfg.SpeechLanguage
	return hc
}

// resolveVoiceProvider turns auto into a concrete backend. Server-side Google
// recognition needs application default credentials.
func resolveVoiceProvider(mode string, lookupEnv func(string) (string, bool)) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != "" && mode != "auto" {
		return mode
	}
	if v, ok := lookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok && strings.TrimSpace(v) != "" {
		return "google"
	}
	return "bridge"
}

// voiceEngines builds the engine factory for a resolved provider. The returned
// closer releases server-side clients.
func voiceEngines(ctx context.Context, provider string, log zerolog.Logger) (assistant.EngineFactory, func() error, error) {
	noop := func() error { return nil }
	switch provider {
	case "bridge":
		return nil, noop, nil
	case "mock":
		return assistant.MockEngines(voice.NewMockProvider()), noop, nil
	case "google":
		stt, err := voice.NewGoogleSTT(ctx, log)
		if err != nil {
			return nil, noop, fmt.Errorf("google speech: %w", err)
		}
		return assistant.ServerSTT(stt), stt.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown voice provider %q", provider)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fundora",
		Short:         "Fundora - a voice-first personal finance assistant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newAskCmd(),
		newHistoryCmd(),
		newProfileCmd(),
		newPersonaCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
