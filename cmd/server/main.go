package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Tandem/internal/adapters/http"
	"github.com/dkeye/Tandem/internal/app/orch"
	"github.com/dkeye/Tandem/internal/auth"
	"github.com/dkeye/Tandem/internal/config"
	"github.com/dkeye/Tandem/internal/turn"
)

func main() {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("exit")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tandem",
		Short:         "Language exchange matchmaking and WebRTC signaling server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			setupLogging(cfg)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().String("config", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	cmd.Flags().Int("port", 8080, "listen port")
	cmd.Flags().String("mode", "release", "gin mode: debug, release or test")
	cmd.Flags().String("log-level", "info", "zerolog level")
	return cmd
}

func setupLogging(cfg *config.Config) {
	if cfg.Mode != "debug" {
		// JSON lines outside of local development.
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	o := orch.New(settingsFrom(cfg))

	issuer, err := turn.NewIssuer(turn.Options{
		Secret:   cfg.Turn.Secret,
		TTL:      cfg.Turn.TTL,
		Prefix:   cfg.Turn.UsernamePrefix,
		TurnURLs: cfg.Turn.URLs,
		StunURLs: cfg.Turn.StunURLs,
	})
	if err != nil {
		return fmt.Errorf("turn issuer: %w", err)
	}
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil)

	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Turn: issuer, Tokens: tokens})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Tandem server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		o.RunReaper(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		// Shutdown does not wait for hijacked websocket connections; CloseAll ends them.
		err := srv.Shutdown(shutdownCtx)
		o.CloseAll()
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

func settingsFrom(cfg *config.Config) orch.Settings {
	return orch.Settings{
		FallbackAfter:      cfg.Matchmaking.FallbackAfter,
		QueueTimeout:       cfg.Matchmaking.QueueTimeout,
		RoomMaxAge:         cfg.Rooms.MaxAge,
		NegotiationTimeout: cfg.Negotiation.Timeout,
		HeartbeatTimeout:   cfg.Heartbeat.Timeout,
		RateLimitIdle:      cfg.RateLimit.Idle,
		RateRules:          cfg.RateLimit.Rules,
		Sweeps: orch.SweepIntervals{
			RateLimits:   cfg.RateLimit.Sweep,
			Rooms:        cfg.Rooms.Sweep,
			Queue:        cfg.Matchmaking.QueueSweep,
			Heartbeats:   cfg.Heartbeat.Sweep,
			Negotiations: cfg.Negotiation.Sweep,
			AgedPairs:    cfg.Matchmaking.AgedPairsSweep,
		},
	}
}
