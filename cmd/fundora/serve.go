package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ent0n29/fundora/internal/assistant"
	"github.com/ent0n29/fundora/internal/httpapi"
	"github.com/ent0n29/fundora/internal/session"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			if addr != "" {
				rt.cfg.BindAddr = addr
			}
			return serve(ctx, rt)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides APP_BIND_ADDR)")
	return cmd
}

func serve(ctx context.Context, rt *runtime) error {
	cfg, log, metrics := rt.cfg, rt.log, rt.metrics

	provider := resolveVoiceProvider(cfg.VoiceProvider, os.LookupEnv)
	engines, closeEngines, err := voiceEngines(ctx, provider, log)
	if err != nil {
		return err
	}
	defer closeEngines()
	cfg.VoiceProvider = provider
	log.Info().Str("provider", provider).Msg("voice provider ready")

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		metrics.ObserveSessionEvent("expired")
		metrics.SetActiveSessions(sessions.ActiveCount())
		log.Debug().Str("session_id", s.ID).Msg("session expired")
	})

	hub := assistant.NewHub(rt.store, nil, sessions, metrics, log, hubConfig(cfg))
	if engines != nil {
		hub.SetEngines(engines)
	}

	api := httpapi.New(cfg, sessions, hub, rt.store, metrics, log)
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}
	log.Info().Msg("shutdown complete")
	return nil
}
