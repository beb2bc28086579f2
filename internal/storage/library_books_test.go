package db

import (
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
)

func TestLibraryRecordColumnsNullsEmptyFields(t *testing.T) {
	rec := &domain.LibraryRecord{
		Title:       "Mechanics",
		Description: "Mechanics\n\n1976",
		ChannelID:   100,
		MessageID:   10,
		NameLink:    "https://t.me/physlib/10",
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	cols := libraryRecordColumns(rec)

	assert.Equal(t, pgtype.Text{String: "Mechanics", Valid: true}, cols["title"])
	assert.Equal(t, pgtype.Int4{}, cols["year"])
	assert.Equal(t, pgtype.Text{}, cols["file_name"])
	assert.Equal(t, pgtype.Text{}, cols["archive_link"])
	assert.Equal(t, pgtype.Int8{}, cols["document_id"])
	assert.Equal(t, false, cols["photo"])
	assert.Equal(t, int64(100), cols["channel_id"])

	rec.Year = 1976
	rec.FileName = "mechanics.pdf"
	cols = libraryRecordColumns(rec)

	assert.Equal(t, pgtype.Int4{Int32: 1976, Valid: true}, cols["year"])
	assert.Equal(t, pgtype.Text{String: "mechanics.pdf", Valid: true}, cols["file_name"])
}

func TestInsertLibraryRecordSQL(t *testing.T) {
	query, args, err := insertLibraryRecordSQL(&domain.LibraryRecord{Description: "d", NameLink: "l"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO library_books ("))
	assert.True(t, strings.HasSuffix(query, "RETURNING id"))
	assert.Contains(t, query, "$20")
	assert.NotContains(t, query, "$21")
	assert.Len(t, args, 20)
}

func TestSetArchiveLinkSQL(t *testing.T) {
	query, args, err := setArchiveLinkSQL(42, "https://yadi.sk/d/abc")
	require.NoError(t, err)

	assert.Equal(t, "UPDATE library_books SET archive_link = $1 WHERE id = $2 AND archive_link IS NULL", query)
	assert.Equal(t, []interface{}{"https://yadi.sk/d/abc", int64(42)}, args)
}

func TestWithSSLRootCert(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want []string
	}{
		{
			name: "url form",
			dsn:  "postgres://u:p@db:5432/library?sslmode=disable",
			want: []string{"postgres://u:p@db:5432/library?", "sslmode=verify-ca", "sslrootcert=%2Fcerts%2Froot.crt"},
		},
		{
			name: "keyword form",
			dsn:  "host=db user=u dbname=library",
			want: []string{"host=db user=u dbname=library sslmode=verify-ca sslrootcert='/certs/root.crt'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := withSSLRootCert(tt.dsn, "/certs/root.crt")
			require.NoError(t, err)

			for _, part := range tt.want {
				assert.Contains(t, got, part)
			}

			assert.NotContains(t, got, "sslmode=disable")
		})
	}
}
