// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Ingest mode: walk the home channels and record new documents
//   - Reconcile mode: replay messages whose records failed to write
//   - Sweep mode: upload staged documents to the archive
//   - Sync mode: mirror photo derivatives to the web host
//   - All mode: ingest, sweep and sync in one pass
//   - Schedule mode: repeat the all pass on a cron expression
package app

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
	"github.com/lueurxax/telegram-library-keeper/internal/core/links/linkextract"
	"github.com/lueurxax/telegram-library-keeper/internal/ingest/telegram"
	"github.com/lueurxax/telegram-library-keeper/internal/media/thumbnail"
	"github.com/lueurxax/telegram-library-keeper/internal/output/notify"
	"github.com/lueurxax/telegram-library-keeper/internal/output/sftp"
	"github.com/lueurxax/telegram-library-keeper/internal/output/yadisk"
	"github.com/lueurxax/telegram-library-keeper/internal/platform/config"
	"github.com/lueurxax/telegram-library-keeper/internal/platform/observability"
	"github.com/lueurxax/telegram-library-keeper/internal/platform/schedule"
	"github.com/lueurxax/telegram-library-keeper/internal/process/classify"
	"github.com/lueurxax/telegram-library-keeper/internal/process/pipeline"
	"github.com/lueurxax/telegram-library-keeper/internal/process/record"
	"github.com/lueurxax/telegram-library-keeper/internal/process/upload"
	db "github.com/lueurxax/telegram-library-keeper/internal/storage"
)

const (
	ModeIngest    = "ingest"
	ModeReconcile = "reconcile"
	ModeSweep     = "sweep"
	ModeSync      = "sync"
	ModeAll       = "all"
	ModeSchedule  = "schedule"

	localDirPerm  = 0o755
	logFieldRunID = "run_id"
	logFieldMode  = "mode"
)

var (
	_ pipeline.Source      = (*telegram.Client)(nil)
	_ upload.Archive       = (*yadisk.Client)(nil)
	_ upload.RemoteFS      = (*sftp.Client)(nil)
	_ pipeline.Derivatives = (*thumbnail.Generator)(nil)
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger

	notifierOnce sync.Once
	notifier     notify.Notifier
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// Prepare creates the local staging directories and logs the trusted
// channel list.
func (a *App) Prepare(ctx context.Context) error {
	for _, dir := range []string{a.cfg.DownloadDir, a.cfg.PhotoDir} {
		if err := os.MkdirAll(dir, localDirPerm); err != nil {
			return fmt.Errorf("create local dir %s: %w", dir, err)
		}
	}

	trusted, err := a.database.ListTrustedChannels(ctx)
	if err != nil {
		return fmt.Errorf("list trusted channels: %w", err)
	}

	for _, ch := range trusted {
		a.logger.Info().
			Int64("channel_id", ch.ChannelID).
			Str("channel", ch.Channel).
			Str("username", ch.Username).
			Bool("trusted", ch.Trusted).
			Msg("Trusted channel")
	}

	return nil
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	srv := observability.NewServer(a.database, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// RunIngest runs one ingestion pass over the home channels.
func (a *App) RunIngest(ctx context.Context) error {
	return a.runReported(ctx, ModeIngest, func(ctx context.Context, rep *notify.Report) error {
		stats, err := a.ingest(ctx, false)
		rep.Ingest = &stats

		return err
	})
}

// RunReconcile replays matched messages whose records were not written.
func (a *App) RunReconcile(ctx context.Context) error {
	return a.runReported(ctx, ModeReconcile, func(ctx context.Context, rep *notify.Report) error {
		stats, err := a.ingest(ctx, true)
		rep.Ingest = &stats

		return err
	})
}

// RunSweep uploads staged documents that have no archive link yet.
func (a *App) RunSweep(ctx context.Context) error {
	return a.runReported(ctx, ModeSweep, func(ctx context.Context, rep *notify.Report) error {
		var err error

		rep.Archive, err = a.sweep(ctx)

		return err
	})
}

// RunSync mirrors photo derivatives missing on the web host.
func (a *App) RunSync(ctx context.Context) error {
	return a.runReported(ctx, ModeSync, func(ctx context.Context, rep *notify.Report) error {
		var err error

		rep.Photos, err = a.syncPhotos(ctx)

		return err
	})
}

// RunAll ingests, then sweeps, then syncs photos.
func (a *App) RunAll(ctx context.Context) error {
	return a.runReported(ctx, ModeAll, a.all)
}

// RunSchedule repeats the all pass on the configured cron expression and
// serves health and metrics until ctx is canceled.
func (a *App) RunSchedule(ctx context.Context) error {
	go func() {
		if err := a.StartHealthServer(ctx); err != nil {
			a.logger.Error().Err(err).Msg("health check server error")
		}
	}()

	scheduler, err := schedule.New(a.logger)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	if _, err := scheduler.Add(ctx, ModeAll, a.cfg.ScheduleCron, a.RunAll); err != nil {
		return fmt.Errorf("schedule %s: %w", ModeAll, err)
	}

	scheduler.Start()

	<-ctx.Done()

	if err := scheduler.Stop(); err != nil {
		a.logger.Error().Err(err).Msg("scheduler shutdown failed")
	}

	return ctx.Err() //nolint:wrapcheck
}

func (a *App) all(ctx context.Context, rep *notify.Report) error {
	stats, err := a.ingest(ctx, false)
	rep.Ingest = &stats

	if err != nil {
		return err
	}

	if rep.Archive, err = a.sweep(ctx); err != nil {
		return err
	}

	rep.Photos, err = a.syncPhotos(ctx)

	return err
}

// runReported runs fn under a fresh run id, records its duration and sends
// the run report whatever the outcome.
func (a *App) runReported(ctx context.Context, mode string, fn func(ctx context.Context, rep *notify.Report) error) error {
	rep := notify.Report{RunID: uuid.New().String(), Mode: mode}
	logger := a.logger.With().Str(logFieldRunID, rep.RunID).Str(logFieldMode, mode).Logger()

	logger.Info().Msg("Run started")

	start := time.Now()
	rep.Err = fn(ctx, &rep)
	rep.Duration = time.Since(start)

	observability.RunDurationSeconds.WithLabelValues(mode).Observe(rep.Duration.Seconds())

	if rep.Err != nil {
		logger.Error().Err(rep.Err).Dur("duration", rep.Duration).Msg("Run failed")
	} else {
		logger.Info().Dur("duration", rep.Duration).Msg("Run finished")
	}

	//nolint:contextcheck // the report is sent even when ctx was canceled
	if err := a.notify().Send(context.WithoutCancel(ctx), rep); err != nil {
		logger.Warn().Err(err).Msg("failed to send run report")
	}

	return rep.Err
}

func (a *App) ingest(ctx context.Context, reconcile bool) (domain.RunStats, error) {
	var stats domain.RunStats

	source := telegram.New(telegram.Config{
		APIID:           a.cfg.TGAPIID,
		APIHash:         a.cfg.TGAPIHash,
		Phone:           a.cfg.TGPhone,
		Password2FA:     a.cfg.TG2FAPassword,
		SessionPath:     a.cfg.TGSessionPath,
		RateLimitRPS:    a.cfg.TGRateLimitRPS,
		FetchLimit:      a.cfg.ReaderFetchLimit,
		TransferTimeout: a.cfg.TransferTimeout,
	}, a.logger)

	p, err := a.newPipeline(source)
	if err != nil {
		return stats, err
	}

	err = source.Run(ctx, func(ctx context.Context) error {
		var runErr error

		if reconcile {
			stats, runErr = p.Reconcile(ctx, a.cfg.HomeChannels)
		} else {
			stats, runErr = p.Run(ctx, a.cfg.HomeChannels)
		}

		return runErr
	})
	if err != nil {
		return stats, fmt.Errorf("ingest: %w", err)
	}

	return stats, nil
}

func (a *App) newPipeline(source pipeline.Source) (*pipeline.Pipeline, error) {
	pattern, err := linkextract.CompilePattern(a.cfg.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("compile link pattern: %w", err)
	}

	opts := pipeline.Options{
		DownloadDir: a.cfg.DownloadDir,
		PhotoDir:    a.cfg.PhotoDir,
		Filter:      classify.NewDocumentFilter(a.cfg.AllowedExtensions, a.cfg.FileSizeLimit),
		LinkPattern: pattern,
		Builder: record.NewBuilder(record.Options{
			PermalinkBase:  a.cfg.PermalinkBase,
			TitleMaxLength: a.cfg.TitleMaxLength,
			YearMin:        a.cfg.YearMin,
			YearMax:        a.cfg.YearMax,
		}),
	}

	media := thumbnail.New(a.cfg.ThumbnailSize, a.cfg.ResizeHeight)

	return pipeline.New(opts, a.database, source, media, a.logger), nil
}

// sweep returns nil stats when the archive is not configured.
func (a *App) sweep(ctx context.Context) (*domain.UploadStats, error) {
	if !a.cfg.ArchiveEnabled() {
		a.logger.Info().Msg("Archive sweep disabled: YADISK_TOKEN not set")
		return nil, nil
	}

	archive := yadisk.New(yadisk.Config{
		Token:           a.cfg.YaDiskToken,
		BaseURL:         a.cfg.YaDiskAPIURL,
		TransferTimeout: a.cfg.TransferTimeout,
	})

	stats, err := upload.NewSweep(a.database, archive, a.cfg.DownloadDir, a.cfg.YaDiskRemoteDir, a.logger).Run(ctx)
	if err != nil {
		return &stats, fmt.Errorf("archive sweep: %w", err)
	}

	return &stats, nil
}

// syncPhotos returns nil stats when SFTP is not configured.
func (a *App) syncPhotos(ctx context.Context) (*domain.UploadStats, error) {
	if !a.cfg.SFTPEnabled() {
		a.logger.Info().Msg("Photo sync disabled: SFTP_HOST or SFTP_USER not set")
		return nil, nil
	}

	pattern, err := regexp.Compile(a.cfg.PhotoSyncPattern)
	if err != nil {
		return nil, fmt.Errorf("compile photo sync pattern: %w", err)
	}

	remote, err := sftp.Dial(ctx, sftp.Config{
		Host:     a.cfg.SFTPHost,
		Port:     a.cfg.SFTPPort,
		User:     a.cfg.SFTPUser,
		Password: a.cfg.SFTPPassword,
		HostKey:  a.cfg.SFTPHostKey,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("photo sync: %w", err)
	}

	defer func() {
		if err := remote.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close sftp session")
		}
	}()

	stats, err := upload.NewPhotoSync(remote, a.cfg.PhotoDir, a.cfg.SFTPRemotePhotoDir, pattern, a.logger).Run(ctx)
	if err != nil {
		return &stats, fmt.Errorf("photo sync: %w", err)
	}

	return &stats, nil
}

func (a *App) notify() notify.Notifier {
	a.notifierOnce.Do(func() {
		a.notifier = notify.Nop{}

		if !a.cfg.NotifyEnabled() {
			return
		}

		n, err := notify.NewTelegram(a.cfg.NotifyBotToken, a.cfg.NotifyChatIDs, a.logger)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Run reports disabled")
			return
		}

		a.notifier = n
	})

	return a.notifier
}
