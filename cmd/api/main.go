package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"genstudio/internal/app"
	"genstudio/internal/generation"
	"genstudio/internal/http/handlers"
	httpapi "genstudio/internal/http/httpapi"
	"genstudio/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open generation runtime")
	}
	defer rt.Close()

	report := rt.Poller.ResumePending(ctx)
	logger.Info().Int("reattached", report.Reattached).Int("interrupted", report.Interrupted).Msg("pending assets resumed")

	reconciler := generation.NewReconciler(rt.Poller, cfg.ReconcileSchedule, &logger)
	if err := reconciler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start reconciler")
	}
	defer reconciler.Stop()

	router := httpapi.NewRouter(&handlers.App{
		Catalog:     rt.Catalog,
		Library:     rt.Library,
		Submitter:   rt.Submitter,
		Poller:      rt.Poller,
		Credentials: rt.Credentials,
		Exporter:    rt.Exporter,
		Logger:      &logger,
	}, cfg)
	server := infra.NewHTTPServer(cfg, router, &logger)

	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return
	}
	logger.Info().Msg("server stopped")
}
