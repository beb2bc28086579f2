package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
)

// TrustedChannelIDs returns the ids of channels currently flagged as trusted.
func (db *DB) TrustedChannelIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := db.Pool.Query(ctx, `SELECT channel_id FROM trusted_channels WHERE trusted`)
	if err != nil {
		return nil, fmt.Errorf("query trusted channel ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan trusted channel id: %w", err)
		}

		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trusted channel ids: %w", err)
	}

	return ids, nil
}

// ListTrustedChannels returns every row of the trusted channel table,
// including channels whose trust flag is off.
func (db *DB) ListTrustedChannels(ctx context.Context) ([]domain.TrustedChannel, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT channel, username, channel_id, trusted
		FROM trusted_channels
		ORDER BY channel_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query trusted channels: %w", err)
	}
	defer rows.Close()

	var channels []domain.TrustedChannel

	for rows.Next() {
		var (
			tc       domain.TrustedChannel
			channel  pgtype.Text
			username pgtype.Text
		)

		if err := rows.Scan(&channel, &username, &tc.ChannelID, &tc.Trusted); err != nil {
			return nil, fmt.Errorf("scan trusted channel row: %w", err)
		}

		tc.Channel = fromText(channel)
		tc.Username = fromText(username)
		channels = append(channels, tc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trusted channel rows: %w", err)
	}

	return channels, nil
}
