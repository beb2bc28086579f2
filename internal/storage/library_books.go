package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
)

// libraryRecordColumns maps a record onto library_books columns.
// Empty values are written as NULL.
func libraryRecordColumns(rec *domain.LibraryRecord) map[string]interface{} {
	return map[string]interface{}{
		"title":           toText(rec.Title),
		"author":          toText(rec.Author),
		"year":            toInt4(rec.Year),
		"description":     SanitizeUTF8(rec.Description),
		"tags":            toText(rec.Tags),
		"channel":         toText(rec.Channel),
		"channel_id":      rec.ChannelID,
		"message_id":      rec.MessageID,
		"document_id":     toInt8(rec.DocumentID),
		"name_link":       rec.NameLink,
		"file_name":       toText(rec.FileName),
		"type_file":       toText(rec.TypeFile),
		"file_size":       toInt8(rec.FileSize),
		"photo":           rec.Photo,
		"photo_link":      toText(rec.PhotoLink),
		"photo_resize":    toText(rec.PhotoResize),
		"photo_thumbnail": toText(rec.PhotoThumbnail),
		"category":        toText(rec.Category),
		"archive_link":    toText(rec.ArchiveLink),
		"created_at":      toTimestamptz(rec.CreatedAt),
	}
}

func insertLibraryRecordSQL(rec *domain.LibraryRecord) (string, []interface{}, error) {
	query, args, err := psql.Insert(TableLibraryBooks).
		SetMap(libraryRecordColumns(rec)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build library record insert: %w", err)
	}

	return query, args, nil
}

// InsertLibraryRecord stores a new library record and sets rec.ID.
func (db *DB) InsertLibraryRecord(ctx context.Context, rec *domain.LibraryRecord) error {
	query, args, err := insertLibraryRecordSQL(rec)
	if err != nil {
		return err
	}

	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&rec.ID); err != nil {
		return fmt.Errorf("insert library record: %w", err)
	}

	return nil
}

func setArchiveLinkSQL(id int64, link string) (string, []interface{}, error) {
	query, args, err := psql.Update(TableLibraryBooks).
		Set("archive_link", link).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"archive_link": nil}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build archive link update: %w", err)
	}

	return query, args, nil
}

// SetArchiveLink records the public archive link of a record. A link that
// is already set is never overwritten.
func (db *DB) SetArchiveLink(ctx context.Context, id int64, link string) error {
	query, args, err := setArchiveLinkSQL(id, link)
	if err != nil {
		return err
	}

	if _, err := db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("set archive link: %w", err)
	}

	return nil
}

// ListUnarchived returns records with a local file and no archive link,
// in ascending id order.
func (db *DB) ListUnarchived(ctx context.Context) ([]domain.UnarchivedFile, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, file_name
		FROM library_books
		WHERE file_name IS NOT NULL AND archive_link IS NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query unarchived records: %w", err)
	}
	defer rows.Close()

	var files []domain.UnarchivedFile

	for rows.Next() {
		var (
			f    domain.UnarchivedFile
			name pgtype.Text
		)

		if err := rows.Scan(&f.ID, &name); err != nil {
			return nil, fmt.Errorf("scan unarchived record: %w", err)
		}

		f.FileName = fromText(name)
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unarchived records: %w", err)
	}

	return files, nil
}
