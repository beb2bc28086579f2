package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
)

var errBoom = errors.New("boom")

type memRepo struct {
	files   []domain.UnarchivedFile
	links   map[int64]string
	linkErr map[int64]error
}

func (m *memRepo) ListUnarchived(_ context.Context) ([]domain.UnarchivedFile, error) {
	var out []domain.UnarchivedFile

	for _, f := range m.files {
		if _, ok := m.links[f.ID]; !ok {
			out = append(out, f)
		}
	}

	return out, nil
}

func (m *memRepo) SetArchiveLink(_ context.Context, id int64, link string) error {
	if err := m.linkErr[id]; err != nil {
		return err
	}

	if _, ok := m.links[id]; !ok {
		m.links[id] = link
	}

	return nil
}

type memArchive struct {
	stored  map[string]string
	uploads []string
	fail    map[string]bool
	ensured []string
}

func newMemArchive() *memArchive {
	return &memArchive{stored: make(map[string]string), fail: make(map[string]bool)}
}

func (a *memArchive) EnsurePath(_ context.Context, path string) error {
	a.ensured = append(a.ensured, path)
	return nil
}

func (a *memArchive) Upload(_ context.Context, localPath, remoteDir, fileName string) (string, error) {
	a.uploads = append(a.uploads, localPath)

	if a.fail[fileName] {
		return "", errBoom
	}

	a.stored[remoteDir+fileName] = localPath

	return "https://disk.example/d/" + fileName, nil
}

func TestSweep(t *testing.T) {
	logger := zerolog.Nop()
	repo := &memRepo{
		files: []domain.UnarchivedFile{
			{ID: 1, FileName: "a.pdf"},
			{ID: 2, FileName: "b.djvu"},
		},
		links: make(map[int64]string),
	}
	archive := newMemArchive()

	sweep := NewSweep(repo, archive, "/staging", "/Media/Downloads/", &logger)

	stats, err := sweep.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.UploadStats{Candidates: 2, Uploaded: 2}, stats)
	assert.Equal(t, "https://disk.example/d/a.pdf", repo.links[1])
	assert.Equal(t, "https://disk.example/d/b.djvu", repo.links[2])
	assert.Equal(t, []string{"/staging/a.pdf", "/staging/b.djvu"}, archive.uploads)
	assert.Contains(t, archive.stored, "/Media/Downloads/a.pdf")
	assert.Equal(t, []string{"/Media/Downloads/"}, archive.ensured)

	stats, err = sweep.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.UploadStats{}, stats)
	assert.Len(t, archive.uploads, 2)
}

func TestSweepFailuresAreRetried(t *testing.T) {
	logger := zerolog.Nop()
	repo := &memRepo{
		files: []domain.UnarchivedFile{
			{ID: 1, FileName: "a.pdf"},
			{ID: 2, FileName: "b.pdf"},
			{ID: 3, FileName: "c.pdf"},
		},
		links:   make(map[int64]string),
		linkErr: map[int64]error{3: errBoom},
	}
	archive := newMemArchive()
	archive.fail["a.pdf"] = true

	sweep := NewSweep(repo, archive, "/staging", "/Media/Downloads/", &logger)

	stats, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStats{Candidates: 3, Uploaded: 1, Failed: 2}, stats)
	assert.NotContains(t, repo.links, int64(1))
	assert.NotContains(t, repo.links, int64(3))

	archive.fail["a.pdf"] = false
	delete(repo.linkErr, 3)

	stats, err = sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStats{Candidates: 2, Uploaded: 2}, stats)
	assert.Len(t, repo.links, 3)
}

type memRemote struct {
	files map[string]bool
	puts  []string
	fail  map[string]bool
}

func (r *memRemote) List(_ context.Context, _ string) ([]string, error) {
	var names []string
	for name := range r.files {
		names = append(names, name)
	}

	return names, nil
}

func (r *memRemote) Put(_ context.Context, localPath, _, name string) error {
	r.puts = append(r.puts, localPath)

	if r.fail[name] {
		return errBoom
	}

	r.files[name] = true

	return nil
}

func TestPhotoSync(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{
		"100_20_1.jpg",
		"100_20_1_resize.jpg",
		"100_20_1_thumbnail.jpg",
		"100_21_7_resize.jpg",
		"100_21_7_thumbnail.jpg",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	require.NoError(t, os.Mkdir(filepath.Join(dir, "1_2_3_resize.jpg"), 0o700))

	pattern := regexp.MustCompile(`\d+_\d+_\d+_resize.jpg|\d+_\d+_\d+_thumbnail.jpg`)
	remote := &memRemote{
		files: map[string]bool{"100_20_1_resize.jpg": true},
		fail:  map[string]bool{"100_21_7_resize.jpg": true},
	}
	logger := zerolog.Nop()

	sync := NewPhotoSync(remote, dir, "./Media/Files/Photo", pattern, &logger)

	stats, err := sync.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.UploadStats{Candidates: 3, Uploaded: 2, Failed: 1}, stats)
	assert.Equal(t, []string{
		filepath.Join(dir, "100_20_1_thumbnail.jpg"),
		filepath.Join(dir, "100_21_7_resize.jpg"),
		filepath.Join(dir, "100_21_7_thumbnail.jpg"),
	}, remote.puts)

	remote.fail = nil

	stats, err = sync.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStats{Candidates: 1, Uploaded: 1}, stats)
}

func TestPhotoSyncMissingLocalDir(t *testing.T) {
	logger := zerolog.Nop()
	sync := NewPhotoSync(&memRemote{files: map[string]bool{}}, filepath.Join(t.TempDir(), "nope"), "/r", nil, &logger)

	_, err := sync.Run(context.Background())
	require.Error(t, err)
}

func TestMissing(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, Missing([]string{"a", "b", "c"}, []string{"b", "d"}))
	assert.Nil(t, Missing([]string{"a"}, []string{"a"}))
}
