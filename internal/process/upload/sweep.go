// Package upload pushes locally staged files to the external sinks once
// ingestion is done: documents to the archive backend and photo derivatives
// to the remote web host.
package upload

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
	"github.com/lueurxax/telegram-library-keeper/internal/platform/observability"
	db "github.com/lueurxax/telegram-library-keeper/internal/storage"
)

// ArchiveRepository is the store side of the upload sweep.
type ArchiveRepository interface {
	ListUnarchived(ctx context.Context) ([]domain.UnarchivedFile, error)
	SetArchiveLink(ctx context.Context, id int64, link string) error
}

// Compile-time assertion that *db.DB implements ArchiveRepository.
var _ ArchiveRepository = (*db.DB)(nil)

// Archive is the cold-storage backend. Upload must tolerate a file of the
// same name already being present and return its public link.
type Archive interface {
	EnsurePath(ctx context.Context, path string) error
	Upload(ctx context.Context, localPath, remoteDir, fileName string) (string, error)
}

// Sweep uploads every record that has a local file but no archive link.
type Sweep struct {
	repo      ArchiveRepository
	archive   Archive
	localDir  string
	remoteDir string
	logger    *zerolog.Logger
}

func NewSweep(repo ArchiveRepository, archive Archive, localDir, remoteDir string, logger *zerolog.Logger) *Sweep {
	return &Sweep{
		repo:      repo,
		archive:   archive,
		localDir:  localDir,
		remoteDir: remoteDir,
		logger:    logger,
	}
}

// Run performs one sweep pass in ascending record order. A failed upload or
// link write is logged and left for the next pass.
func (s *Sweep) Run(ctx context.Context) (domain.UploadStats, error) {
	var stats domain.UploadStats

	files, err := s.repo.ListUnarchived(ctx)
	if err != nil {
		return stats, fmt.Errorf("list unarchived records: %w", err)
	}

	stats.Candidates = len(files)
	if len(files) == 0 {
		return stats, nil
	}

	if err := s.archive.EnsurePath(ctx, s.remoteDir); err != nil {
		return stats, fmt.Errorf("prepare archive path %s: %w", s.remoteDir, err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, err //nolint:wrapcheck
		}

		name := filepath.Base(f.FileName)
		logger := s.logger.With().Int64("record_id", f.ID).Str("file_name", name).Logger()

		link, err := s.archive.Upload(ctx, filepath.Join(s.localDir, name), s.remoteDir, name)
		if err != nil {
			stats.Failed++
			observability.Uploads.WithLabelValues(observability.SinkArchive, observability.ResultFailed).Inc()
			logger.Warn().Err(err).Msg("Archive upload failed")

			continue
		}

		if err := s.repo.SetArchiveLink(ctx, f.ID, link); err != nil {
			stats.Failed++
			observability.Uploads.WithLabelValues(observability.SinkArchive, observability.ResultFailed).Inc()
			logger.Error().Err(err).Str("link", link).Msg("Archive link not saved")

			continue
		}

		stats.Uploaded++
		observability.Uploads.WithLabelValues(observability.SinkArchive, observability.ResultSuccess).Inc()
		logger.Info().Str("link", link).Msg("File archived")
	}

	return stats, nil
}
