package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

const serveName = "serve"

func serveCmd() *cobra.Command {
	var runDigest bool

	cmd := &cobra.Command{
		Use:   serveName,
		Short: "Deliver reminders and run the digest jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), runDigest)
		},
	}

	cmd.Flags().BoolVar(&runDigest, "digest-now", false, "run the renewal digest once at startup")
	return cmd
}

func serve(ctx context.Context, runDigest bool) error {
	log := deps.Logger.With(slog.String("component", "serve"))

	deps.Facility.Start()
	defer func() { <-deps.Facility.Stop().Done() }()

	// Facility triggers are in-memory; rebuild them from storage
	if err := deps.Store.Resync(ctx); err != nil {
		log.Warn("failed to resync reminders", slog.Any("error", err))
	}
	if _, err := deps.Reminders.ScheduleMonthlySummary(ctx); err != nil {
		log.Warn("failed to schedule monthly summary", slog.Any("error", err))
	}

	// Digest jobs when enabled, plus the periodic reload that picks up
	// changes made by one-shot commands
	if err := deps.Digest.Start(); err != nil {
		return fmt.Errorf("failed to start background jobs: %w", err)
	}
	defer func() { <-deps.Digest.Stop().Done() }()

	if runDigest {
		deps.Digest.RunNow()
	}

	if deps.Config.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", deps.Metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", deps.Config.Observability.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Info("metrics server listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", slog.Any("error", err))
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("metrics server shutdown error", slog.Any("error", err))
			}
		}()
	}

	scheduled, err := deps.Facility.ListScheduled(ctx)
	if err != nil {
		log.Warn("failed to list scheduled notifications", slog.Any("error", err))
	}
	log.Info("radar running",
		slog.Int("scheduled", len(scheduled)),
		slog.Bool("digest", deps.Config.Digest.Enabled),
	)

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}
