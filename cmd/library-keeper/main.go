package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-library-keeper/internal/app"
	"github.com/lueurxax/telegram-library-keeper/internal/platform/config"
	db "github.com/lueurxax/telegram-library-keeper/internal/storage"
)

func main() {
	mode := flag.String("mode", app.ModeAll, "Run mode (ingest, reconcile, sweep, sync, all, schedule)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolOpts := db.DefaultPoolOptions()
	poolOpts.MaxConns = cfg.DBMaxConnections
	poolOpts.SSLRootCert = cfg.PostgresRootCert

	database, err := db.NewWithOptions(ctx, cfg.PostgresDSN, poolOpts, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	application := app.New(cfg, database, &logger)

	if err := application.Prepare(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare")
	}

	if err := runMode(ctx, application, *mode); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(appEnv, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(lvl).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, mode string) error {
	switch mode {
	case app.ModeIngest:
		return application.RunIngest(ctx)
	case app.ModeReconcile:
		return application.RunReconcile(ctx)
	case app.ModeSweep:
		return application.RunSweep(ctx)
	case app.ModeSync:
		return application.RunSync(ctx)
	case app.ModeAll:
		return application.RunAll(ctx)
	case app.ModeSchedule:
		return application.RunSchedule(ctx)
	default:
		log.Fatalf("Usage: %s --mode=[ingest|reconcile|sweep|sync|all|schedule]", os.Args[0])

		return nil
	}
}
