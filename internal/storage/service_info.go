package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
)

// StatusExists reports whether a status row exists for the message.
func (db *DB) StatusExists(ctx context.Context, channelID, messageID int64) (bool, error) {
	var exists bool

	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM service_info WHERE channel_id = $1 AND message_id = $2
		)
	`, channelID, messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check service status: %w", err)
	}

	return exists, nil
}

// photoColumns are the nullable cover columns of a status row.
type photoColumns struct {
	Link      pgtype.Text
	Thumbnail pgtype.Text
	Resize    pgtype.Text
}

func toPhotoColumns(p domain.PhotoSet) photoColumns {
	if !p.Downloaded {
		return photoColumns{}
	}

	return photoColumns{
		Link:      toText(p.FileName),
		Thumbnail: toText(p.Thumbnail),
		Resize:    toText(p.Resize),
	}
}

func (c photoColumns) photoSet() domain.PhotoSet {
	return domain.PhotoSet{
		Downloaded: c.Link.Valid,
		FileName:   fromText(c.Link),
		Thumbnail:  fromText(c.Thumbnail),
		Resize:     fromText(c.Resize),
	}
}

// InsertStatus commits the status row of an attempted message.
// An existing row for the key is left untouched.
func (db *DB) InsertStatus(ctx context.Context, status domain.ServiceStatus) error {
	photo := toPhotoColumns(status.Photo)

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO service_info (channel_id, message_id, corresponds_params, complete, date, photo_link, photo_thumbnail, photo_resize)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), $6, $7, $8)
		ON CONFLICT (channel_id, message_id) DO NOTHING
	`, status.ChannelID, status.MessageID, status.MatchedFilters, status.FullyRecorded, toTimestamptz(status.Date),
		photo.Link, photo.Thumbnail, photo.Resize)
	if err != nil {
		return fmt.Errorf("insert service status: %w", err)
	}

	return nil
}

// LastStatusMessageID returns the highest message id with a status row for
// the channel, or 0 when there is none.
func (db *DB) LastStatusMessageID(ctx context.Context, channelID int64) (int64, error) {
	var last int64

	err := db.Pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(message_id), 0) FROM service_info WHERE channel_id = $1
	`, channelID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("query last status message id: %w", err)
	}

	return last, nil
}

// ListUnrecordedStatuses returns rows whose attachment matched but whose
// record was not written, oldest first.
func (db *DB) ListUnrecordedStatuses(ctx context.Context) ([]domain.ServiceStatus, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT channel_id, message_id, corresponds_params, complete, date, photo_link, photo_thumbnail, photo_resize
		FROM service_info
		WHERE corresponds_params AND NOT complete
		ORDER BY channel_id, message_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query unrecorded statuses: %w", err)
	}
	defer rows.Close()

	var statuses []domain.ServiceStatus

	for rows.Next() {
		var (
			st    domain.ServiceStatus
			photo photoColumns
		)

		if err := rows.Scan(&st.ChannelID, &st.MessageID, &st.MatchedFilters, &st.FullyRecorded, &st.Date,
			&photo.Link, &photo.Thumbnail, &photo.Resize); err != nil {
			return nil, fmt.Errorf("scan service status row: %w", err)
		}

		st.Photo = photo.photoSet()

		statuses = append(statuses, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service status rows: %w", err)
	}

	return statuses, nil
}

// DeleteStatus removes the status row of a message so it can be replayed.
func (db *DB) DeleteStatus(ctx context.Context, channelID, messageID int64) error {
	_, err := db.Pool.Exec(ctx, `
		DELETE FROM service_info WHERE channel_id = $1 AND message_id = $2
	`, channelID, messageID)
	if err != nil {
		return fmt.Errorf("delete service status: %w", err)
	}

	return nil
}
