package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/emotune/internal/adapters/detector"
	"github.com/ewilliams-labs/emotune/internal/adapters/realtime"
	"github.com/ewilliams-labs/emotune/internal/adapters/rest"
	"github.com/ewilliams-labs/emotune/internal/config"
	"github.com/ewilliams-labs/emotune/internal/core/services"
	"github.com/ewilliams-labs/emotune/internal/logging"
	"github.com/ewilliams-labs/emotune/internal/supervisor"
)

func serveCommand(cfgFn func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Index the library and serve the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfgFn())
		},
	}
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lib, err := openLibrary(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := lib.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("failed to close library")
		}
	}()

	// The API still comes up on an empty catalog; reindex can be retried
	// over HTTP.
	if report, err := lib.reindex(ctx); err != nil {
		logging.Error().Err(err).Str("root", cfg.Library.RootDir).Int("tracks", report.Tracks).Msg("startup index incomplete")
	}

	recommender := services.NewRecommendationService(lib.catalog, lib.store)
	feedback := services.NewFeedbackService(lib.store, lib.catalog)
	sessions := services.NewSessionManager(recommender, feedback)

	svc := rest.Services{
		Recommender: recommender,
		Feedback:    feedback,
		Media:       services.NewMediaService(lib.store),
		Indexer:     lib.indexer,
		Realtime:    realtime.NewServer(sessions, cfg.Security.CORSOrigins),
	}
	if cfg.Detector.URL != "" {
		svc.Detector = detector.NewClient(detector.Config{
			BaseURL:         cfg.Detector.URL,
			Timeout:         cfg.Detector.Timeout,
			MaxRetries:      cfg.Detector.MaxRetries,
			RetryBackoff:    cfg.Detector.RetryBackoff,
			TokenURL:        cfg.Detector.TokenURL,
			ClientID:        cfg.Detector.ClientID,
			ClientSecret:    cfg.Detector.ClientSecret,
			BreakerFailures: cfg.Detector.BreakerFailures,
			BreakerCooldown: cfg.Detector.BreakerCooldown,
		})
	} else {
		logging.Warn().Msg("detector.url not set, emotion detection disabled")
	}

	handler := rest.NewHandler(svc, rest.Options{
		Version:           version,
		CORSOrigins:       cfg.Security.CORSOrigins,
		RateLimitRequests: cfg.Security.RateLimitRequests,
		RateLimitWindow:   cfg.Security.RateLimitWindow,
		RateLimitDisabled: cfg.Security.RateLimitDisabled,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		MaxImageBytes:     cfg.Detector.MaxImageBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	tree := supervisor.NewTree(slog.New(logging.NewSlogHandler()), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddBackground(services.NewPopularityRefresher(lib.catalog, lib.store, cfg.Catalog.RefreshInterval))
	tree.AddAPI(supervisor.NewHTTPService(srv, srv.Addr, cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", srv.Addr).
		Str("version", version).
		Int("tracks", lib.catalog.Len()).
		Bool("detector", svc.Detector != nil).
		Msg("emotune starting")

	err = tree.Serve(ctx)
	if ctx.Err() != nil {
		logging.Info().Msg("shutting down")
		return nil
	}
	return err
}
