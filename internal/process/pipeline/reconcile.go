package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
	"github.com/lueurxax/telegram-library-keeper/internal/process/classify"
)

// Reconcile replays document messages whose attachment matched the filters
// but whose record was never written. The status row is removed only after
// the message was fetched again, and the replay commits a fresh row carrying
// the cover photo the first attempt had.
//
// Photo posts are left alone: their referenced documents have rows of their
// own, and replaying the post would only download the cover again.
//
// Only channels with a known username can be replayed: home channels and
// trusted channels.
func (p *Pipeline) Reconcile(ctx context.Context, homeChannels []string) (domain.RunStats, error) {
	r, err := p.newRun(ctx)
	if err != nil {
		return domain.RunStats{}, err
	}

	names, err := p.channelUsernames(ctx, homeChannels)
	if err != nil {
		return r.stats, err
	}

	statuses, err := p.database.ListUnrecordedStatuses(ctx)
	if err != nil {
		return r.stats, fmt.Errorf("list unrecorded statuses: %w", err)
	}

	r.logger.Info().Int(LogFieldCount, len(statuses)).Msg("Reconciling unrecorded messages")

	for _, st := range statuses {
		if err := ctx.Err(); err != nil {
			return r.stats, err //nolint:wrapcheck
		}

		logger := r.logger.With().Int64(LogFieldChannelID, st.ChannelID).Int64(LogFieldMsgID, st.MessageID).Logger()

		username, ok := names[st.ChannelID]
		if !ok {
			logger.Warn().Msg("No username known for channel, cannot replay")
			continue
		}

		msg, err := p.source.FetchOne(ctx, username, st.MessageID)
		if err != nil {
			logger.Warn().Err(err).Msg("Message fetch failed, status kept")
			continue
		}

		if !classify.HasDocument(msg) {
			logger.Debug().Msg("Message has no document, status kept")
			continue
		}

		if err := p.database.DeleteStatus(ctx, st.ChannelID, st.MessageID); err != nil {
			return r.stats, fmt.Errorf("delete status of %d/%d: %w", st.ChannelID, st.MessageID, err)
		}

		if err := p.replay(context.WithoutCancel(ctx), r, &logger, msg, st.Photo); err != nil {
			return r.stats, err
		}
	}

	return r.stats, nil
}

// replay runs the document branch of msg without the repost check, which
// referenced messages never went through.
func (p *Pipeline) replay(ctx context.Context, r *run, logger *zerolog.Logger, msg domain.Message, photo domain.PhotoSet) error {
	r.stats.Seen++

	out := p.processDocument(ctx, r, logger, msg, photo)

	return p.commit(ctx, logger, msg, out)
}

func (p *Pipeline) channelUsernames(ctx context.Context, homeChannels []string) (map[int64]string, error) {
	names := make(map[int64]string)

	trusted, err := p.database.ListTrustedChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trusted channels: %w", err)
	}

	for _, tc := range trusted {
		if tc.Username != "" {
			names[tc.ChannelID] = tc.Username
		}
	}

	for _, username := range homeChannels {
		ch, err := p.source.ResolveChannel(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("resolve home channel %s: %w", username, err)
		}

		names[ch.ID] = username
	}

	return names, nil
}

func localPath(dir, name string) string {
	return filepath.Join(dir, filepath.Base(name))
}
