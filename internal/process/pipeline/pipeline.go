// Package pipeline walks home channels in message-id order and turns their
// posts into library records.
//
// Every attempted message gets exactly one row in the status ledger. The
// row is written after all work for the message is done, so a crash before
// the commit makes the next run attempt the message again, while a message
// with a row is never attempted twice.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
	liberrors "github.com/lueurxax/telegram-library-keeper/internal/core/errors"
	"github.com/lueurxax/telegram-library-keeper/internal/core/links/linkextract"
	"github.com/lueurxax/telegram-library-keeper/internal/platform/observability"
	"github.com/lueurxax/telegram-library-keeper/internal/process/classify"
	"github.com/lueurxax/telegram-library-keeper/internal/process/record"
	db "github.com/lueurxax/telegram-library-keeper/internal/storage"
)

// Repository is the store used by the pipeline: status ledger, library
// records and trusted channels.
type Repository interface {
	StatusExists(ctx context.Context, channelID, messageID int64) (bool, error)
	InsertStatus(ctx context.Context, status domain.ServiceStatus) error
	LastStatusMessageID(ctx context.Context, channelID int64) (int64, error)
	DeleteStatus(ctx context.Context, channelID, messageID int64) error
	ListUnrecordedStatuses(ctx context.Context) ([]domain.ServiceStatus, error)
	InsertLibraryRecord(ctx context.Context, rec *domain.LibraryRecord) error
	TrustedChannelIDs(ctx context.Context) (map[int64]struct{}, error)
	ListTrustedChannels(ctx context.Context) ([]domain.TrustedChannel, error)
	AcquireChannelLock(ctx context.Context, channelID int64) (func(), error)
}

// Compile-time assertion that *db.DB implements Repository.
var _ Repository = (*db.DB)(nil)

// Source is the channel message source.
type Source interface {
	ResolveChannel(ctx context.Context, username string) (domain.Channel, error)
	NextBatch(ctx context.Context, ch domain.Channel, afterID int64) ([]domain.Message, error)
	FetchOne(ctx context.Context, username string, messageID int64) (domain.Message, error)
	ChannelMetadata(ctx context.Context, channelID int64) (domain.Channel, error)
	DownloadDocument(ctx context.Context, msg domain.Message, dir string) (string, error)
	DownloadPhoto(ctx context.Context, msg domain.Message, dir string) (string, error)
}

// Derivatives generates the thumbnail and resized copies of a photo.
// Both return the base name of the written file.
type Derivatives interface {
	Thumbnail(path string) (string, error)
	Resize(path string) (string, error)
}

// Options configures the pipeline.
type Options struct {
	DownloadDir string
	PhotoDir    string
	Filter      classify.DocumentFilter
	LinkPattern *linkextract.Pattern
	Builder     *record.Builder
}

type Pipeline struct {
	opts     Options
	database Repository
	source   Source
	media    Derivatives
	logger   *zerolog.Logger
}

// run is the state of one pass over the home channels.
type run struct {
	logger  zerolog.Logger
	trusted map[int64]struct{}
	stats   domain.RunStats
}

func New(opts Options, database Repository, source Source, media Derivatives, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{
		opts:     opts,
		database: database,
		source:   source,
		media:    media,
		logger:   logger,
	}
}

// Run ingests every home channel once, oldest unseen message first.
// It returns on the first fatal error; per-message failures are contained.
func (p *Pipeline) Run(ctx context.Context, homeChannels []string) (domain.RunStats, error) {
	r, err := p.newRun(ctx)
	if err != nil {
		return domain.RunStats{}, err
	}

	for _, username := range homeChannels {
		if err := p.runChannel(ctx, r, username); err != nil {
			return r.stats, err
		}
	}

	r.logger.Info().
		Int("seen", r.stats.Seen).
		Int("skipped", r.stats.Skipped).
		Int("downloaded", r.stats.Downloaded).
		Int("recorded", r.stats.Recorded).
		Int("record_failed", r.stats.RecordFailed).
		Msg("Ingestion pass finished")

	return r.stats, nil
}

func (p *Pipeline) newRun(ctx context.Context) (*run, error) {
	trusted, err := p.database.TrustedChannelIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trusted channels: %w", err)
	}

	return &run{
		logger:  p.logger.With().Str(LogFieldRunID, uuid.New().String()).Logger(),
		trusted: trusted,
	}, nil
}

func (p *Pipeline) runChannel(ctx context.Context, r *run, username string) error {
	ch, err := p.source.ResolveChannel(ctx, username)
	if err != nil {
		return fmt.Errorf("resolve home channel %s: %w", username, err)
	}

	logger := r.logger.With().Str(LogFieldChannel, username).Int64(LogFieldChannelID, ch.ID).Logger()

	release, err := p.database.AcquireChannelLock(ctx, ch.ID)
	if err != nil {
		if liberrors.Is(err, liberrors.ErrLocked) {
			logger.Warn().Msg("Channel is being ingested by another run, skipping")
			return nil
		}

		return fmt.Errorf("lock channel %s: %w", username, err)
	}
	defer release()

	cursor, err := p.database.LastStatusMessageID(ctx, ch.ID)
	if err != nil {
		return fmt.Errorf("read cursor for %s: %w", username, err)
	}

	logger.Info().Int64(LogFieldCursor, cursor).Msg("Starting channel pass")

	for {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck
		}

		batch, err := p.source.NextBatch(ctx, ch, cursor)
		if err != nil {
			return fmt.Errorf("fetch messages of %s after %d: %w", username, cursor, err)
		}

		if len(batch) == 0 {
			break
		}

		for _, msg := range batch {
			if msg.ID <= cursor {
				continue
			}

			if err := ctx.Err(); err != nil {
				return err //nolint:wrapcheck
			}

			// A started message always runs to its ledger commit.
			if err := p.processMessage(context.WithoutCancel(ctx), r, msg); err != nil {
				return err
			}

			cursor = msg.ID
		}

		observability.ChannelCursor.WithLabelValues(username).Set(float64(cursor))
	}

	r.stats.SetCursor(username, cursor)
	logger.Info().Int64(LogFieldCursor, cursor).Msg("Channel pass finished")

	return nil
}

// processMessage runs one home-channel message through its branch and
// commits its status row. Only ledger failures are returned.
func (p *Pipeline) processMessage(ctx context.Context, r *run, msg domain.Message) error {
	logger := r.logger.With().Int64(LogFieldChannelID, msg.ChannelID).Int64(LogFieldMsgID, msg.ID).Logger()
	r.stats.Seen++

	seen, err := p.alreadyAttempted(ctx, msg)
	if err != nil {
		return err
	}

	if seen {
		r.stats.Skipped++
		observability.MessagesProcessed.WithLabelValues(observability.OutcomeSkipped).Inc()
		logger.Debug().Msg("Message already attempted")

		return nil
	}

	var out domain.Outcome

	switch {
	case !classify.IsRepost(msg):
		r.stats.Inert++
		observability.MessagesProcessed.WithLabelValues(observability.OutcomeInert).Inc()
	case classify.HasDocument(msg):
		out = p.processDocument(ctx, r, &logger, msg, domain.PhotoSet{})
		observability.MessagesProcessed.WithLabelValues(observability.OutcomeDocument).Inc()
	case classify.HasPhoto(msg):
		out, err = p.processPhoto(ctx, r, &logger, msg)
		if err != nil {
			return err
		}
	default:
		r.stats.Inert++
		observability.MessagesProcessed.WithLabelValues(observability.OutcomeInert).Inc()
	}

	return p.commit(ctx, &logger, msg, out)
}

// processDocument downloads the attachment when the filter allows it and
// writes the library record. A record is attempted even when the download
// was skipped or failed.
func (p *Pipeline) processDocument(ctx context.Context, r *run, logger *zerolog.Logger, msg domain.Message, photo domain.PhotoSet) domain.Outcome {
	var fileName string

	out := domain.Outcome{Photo: photo}

	r.stats.Documents++

	if p.opts.Filter.Passes(msg.Document) {
		name, err := p.source.DownloadDocument(ctx, msg, p.opts.DownloadDir)
		if err != nil {
			observability.Downloads.WithLabelValues(kindDocument, observability.ResultFailed).Inc()
			logger.Warn().Err(err).Str(LogFieldFileName, msg.Document.FileName).Msg("Document download failed")
		} else {
			observability.Downloads.WithLabelValues(kindDocument, observability.ResultSuccess).Inc()
			r.stats.Downloaded++
			out.MatchedFilters = true
			fileName = name
		}
	} else {
		observability.Downloads.WithLabelValues(kindDocument, observability.ResultSkipped).Inc()
		logger.Debug().Str(LogFieldFileName, msg.Document.FileName).Int64("size", msg.Document.Size).Msg("Document rejected by filter")
	}

	out.FullyRecorded = p.writeRecord(ctx, r, logger, msg, photo, fileName)

	return out
}

func (p *Pipeline) writeRecord(ctx context.Context, r *run, logger *zerolog.Logger, msg domain.Message, photo domain.PhotoSet, fileName string) bool {
	ch, err := p.source.ChannelMetadata(ctx, msg.ChannelID)
	if err != nil {
		r.stats.RecordFailed++
		observability.RecordsWritten.WithLabelValues(observability.ResultFailed).Inc()
		logger.Error().Err(err).Msg("Channel metadata lookup failed, record not written")

		return false
	}

	rec := p.opts.Builder.Build(msg, ch).WithPhoto(photo)
	if fileName != "" {
		rec = record.WithFile(rec, fileName)
	}

	if err := p.database.InsertLibraryRecord(ctx, &rec); err != nil {
		r.stats.RecordFailed++
		observability.RecordsWritten.WithLabelValues(observability.ResultFailed).Inc()
		logger.Error().Err(err).Msg("Library record insert failed")

		return false
	}

	r.stats.Recorded++
	observability.RecordsWritten.WithLabelValues(observability.ResultSuccess).Inc()
	logger.Info().Int64("record_id", rec.ID).Str(LogFieldFileName, rec.FileName).Msg("Library record written")

	return true
}

// processPhoto handles a photo post that points at documents in trusted
// channels. Each referenced message gets its own record and status row,
// all sharing the photo derivatives of the post.
func (p *Pipeline) processPhoto(ctx context.Context, r *run, logger *zerolog.Logger, msg domain.Message) (domain.Outcome, error) {
	refs := p.resolveTrusted(ctx, r, logger, msg)
	if len(refs) == 0 {
		observability.MessagesProcessed.WithLabelValues(observability.OutcomePhotoUntrusted).Inc()
		logger.Debug().Msg("Photo post has no trusted references")

		return domain.Outcome{}, nil
	}

	r.stats.Photos++
	observability.MessagesProcessed.WithLabelValues(observability.OutcomePhoto).Inc()

	photo := p.preparePhoto(ctx, logger, msg)
	out := domain.Outcome{MatchedFilters: photo.Complete()}

	attempted, written := 0, 0

	for _, ref := range refs {
		refLogger := logger.With().Int64(LogFieldReferenced, ref.ID).Int64("ref_channel_id", ref.ChannelID).Logger()

		seen, err := p.alreadyAttempted(ctx, ref)
		if err != nil {
			return out, err
		}

		if seen {
			refLogger.Debug().Msg("Referenced message already attempted")
			continue
		}

		r.stats.Referenced++
		observability.MessagesProcessed.WithLabelValues(observability.OutcomeReferenced).Inc()

		var refOut domain.Outcome

		if classify.HasDocument(ref) {
			refOut = p.processDocument(ctx, r, &refLogger, ref, photo)

			attempted++
			if refOut.FullyRecorded {
				written++
			}
		}

		if err := p.commit(ctx, &refLogger, ref, refOut); err != nil {
			return out, err
		}
	}

	out.FullyRecorded = attempted > 0 && written == attempted

	return out, nil
}

// resolveTrusted fetches the messages referenced by the post's links and
// keeps those whose channel is trusted. Resolution failures drop the link.
func (p *Pipeline) resolveTrusted(ctx context.Context, r *run, logger *zerolog.Logger, msg domain.Message) []domain.Message {
	links := linkextract.ExtractPostLinks(msg.Links, p.opts.LinkPattern)

	var refs []domain.Message

	for _, link := range links {
		ref, err := p.source.FetchOne(ctx, link.Username, link.MessageID)
		if err != nil {
			observability.LinkResolutions.WithLabelValues(observability.ResultFailed).Inc()
			logger.Warn().Err(err).Str(LogFieldLink, link.URL).Msg("Cross-reference not resolved")

			continue
		}

		if _, ok := r.trusted[ref.ChannelID]; !ok {
			observability.LinkResolutions.WithLabelValues(observability.ResultSkipped).Inc()
			logger.Debug().Str(LogFieldLink, link.URL).Int64("ref_channel_id", ref.ChannelID).Msg("Cross-reference channel is not trusted")

			continue
		}

		observability.LinkResolutions.WithLabelValues(observability.ResultSuccess).Inc()

		refs = append(refs, ref)
	}

	return refs
}

// preparePhoto downloads the post photo and builds its derivatives.
// Failures leave the corresponding fields empty.
func (p *Pipeline) preparePhoto(ctx context.Context, logger *zerolog.Logger, msg domain.Message) domain.PhotoSet {
	name, err := p.source.DownloadPhoto(ctx, msg, p.opts.PhotoDir)
	if err != nil {
		observability.Downloads.WithLabelValues(kindPhoto, observability.ResultFailed).Inc()
		logger.Warn().Err(err).Msg("Photo download failed")

		return domain.PhotoSet{}
	}

	observability.Downloads.WithLabelValues(kindPhoto, observability.ResultSuccess).Inc()

	photo := domain.PhotoSet{Downloaded: true, FileName: name}
	path := localPath(p.opts.PhotoDir, name)

	if photo.Thumbnail, err = p.media.Thumbnail(path); err != nil {
		logger.Warn().Err(err).Str(LogFieldFileName, name).Msg("Thumbnail generation failed")
	}

	if photo.Resize, err = p.media.Resize(path); err != nil {
		logger.Warn().Err(err).Str(LogFieldFileName, name).Msg("Resize generation failed")
	}

	return photo
}

func (p *Pipeline) alreadyAttempted(ctx context.Context, msg domain.Message) (bool, error) {
	seen, err := p.database.StatusExists(ctx, msg.ChannelID, msg.ID)
	if err != nil {
		return false, fmt.Errorf("check status of %d/%d: %w", msg.ChannelID, msg.ID, err)
	}

	return seen, nil
}

func (p *Pipeline) commit(ctx context.Context, logger *zerolog.Logger, msg domain.Message, out domain.Outcome) error {
	status := domain.ServiceStatus{
		ChannelID:      msg.ChannelID,
		MessageID:      msg.ID,
		MatchedFilters: out.MatchedFilters,
		FullyRecorded:  out.FullyRecorded,
		Photo:          out.Photo,
		Date:           time.Now().UTC(),
	}

	if err := p.database.InsertStatus(ctx, status); err != nil {
		return fmt.Errorf("commit status of %d/%d: %w", msg.ChannelID, msg.ID, err)
	}

	observability.LedgerCommits.WithLabelValues(strconv.FormatBool(out.MatchedFilters), strconv.FormatBool(out.FullyRecorded)).Inc()
	logger.Info().Bool(LogFieldMatched, out.MatchedFilters).Bool(LogFieldRecorded, out.FullyRecorded).Msg("Message committed")

	return nil
}
