package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
)

func TestPhotoColumnsRoundTrip(t *testing.T) {
	photo := domain.PhotoSet{
		Downloaded: true,
		FileName:   "100_20_1.jpg",
		Thumbnail:  "100_20_1_thumbnail.jpg",
		Resize:     "100_20_1_resize.jpg",
	}

	cols := toPhotoColumns(photo)

	assert.True(t, cols.Link.Valid)
	assert.Equal(t, photo, cols.photoSet())
}

func TestPhotoColumnsWithoutCover(t *testing.T) {
	cols := toPhotoColumns(domain.PhotoSet{})

	assert.False(t, cols.Link.Valid)
	assert.False(t, cols.Thumbnail.Valid)
	assert.False(t, cols.Resize.Valid)
	assert.Equal(t, domain.PhotoSet{}, cols.photoSet())
}

func TestPhotoColumnsPartialDerivatives(t *testing.T) {
	cols := toPhotoColumns(domain.PhotoSet{Downloaded: true, FileName: "100_20_1.jpg"})

	got := cols.photoSet()

	assert.True(t, got.Downloaded)
	assert.Equal(t, "100_20_1.jpg", got.FileName)
	assert.Empty(t, got.Thumbnail)
	assert.Empty(t, got.Resize)
	assert.False(t, got.Complete())
}
