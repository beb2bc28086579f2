package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
)

func TestFormatFullReport(t *testing.T) {
	text := Format(Report{
		RunID:    "run-1",
		Mode:     "all",
		Duration: 95 * time.Second,
		Ingest:   &domain.RunStats{Seen: 10, Skipped: 2, Inert: 3, Documents: 4, Downloaded: 4, Recorded: 3, RecordFailed: 1, Photos: 1, Referenced: 2},
		Archive:  &domain.UploadStats{Candidates: 3, Uploaded: 3},
		Photos:   &domain.UploadStats{Candidates: 2, Uploaded: 1, Failed: 1},
	})

	assert.Contains(t, text, "✅ <b>library-keeper</b> all in 1m35s")
	assert.Contains(t, text, "<code>run-1</code>")
	assert.Contains(t, text, "seen 10, skipped 2, inert 3")
	assert.Contains(t, text, "recorded 3, failed 1")
	assert.Contains(t, text, "<b>Archive</b>\ncandidates 3, uploaded 3, failed 0")
	assert.Contains(t, text, "<b>Photo sync</b>\ncandidates 2, uploaded 1, failed 1")
	assert.NotContains(t, text, "Error")
	assert.NotContains(t, text, "cursors")
}

func TestFormatCursorsPerChannel(t *testing.T) {
	text := Format(Report{
		Mode:   "ingest",
		Ingest: &domain.RunStats{Seen: 3, Cursors: map[string]int64{"physlib": 11, "bookshelf": 4}},
	})

	assert.Contains(t, text, "cursors: bookshelf 4, physlib 11")
}

func TestFormatEscapesError(t *testing.T) {
	text := Format(Report{Mode: "ingest", Err: errors.New("fetch <history>: boom")})

	assert.Contains(t, text, "❌")
	assert.Contains(t, text, "fetch &lt;history&gt;: boom")
	assert.NotContains(t, text, "Ingest")
	assert.NotContains(t, text, "Archive")
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}

	require.NoError(t, n.Send(context.Background(), Report{}))
}
