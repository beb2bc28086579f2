package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for MessagesProcessed.
const (
	OutcomeSkipped        = "skipped"
	OutcomeInert          = "inert"
	OutcomeDocument       = "document"
	OutcomePhoto          = "photo"
	OutcomePhotoUntrusted = "photo_untrusted"
	OutcomeReferenced     = "referenced"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Sink label values for Uploads.
const (
	SinkArchive = "archive"
	SinkSFTP    = "sftp"
)

var (
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_messages_processed_total",
		Help: "The total number of channel messages handled by the pipeline by outcome",
	}, []string{"outcome"})

	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_downloads_total",
		Help: "The total number of attachment downloads by kind and result",
	}, []string{"kind", "result"})

	RecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_records_written_total",
		Help: "The total number of library record inserts by result",
	}, []string{"result"})

	LedgerCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_ledger_commits_total",
		Help: "The total number of status rows committed by matched and recorded flags",
	}, []string{"matched", "recorded"})

	LinkResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_link_resolutions_total",
		Help: "The total number of cross-reference link resolutions by result",
	}, []string{"result"})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_uploads_total",
		Help: "The total number of uploads by sink and result",
	}, []string{"sink", "result"})

	ChannelCursor = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "library_channel_cursor",
		Help: "Highest message id committed to the ledger for a home channel",
	}, []string{"channel"})

	RunDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "library_run_duration_seconds",
		Help:    "Duration in seconds of a run by mode",
		Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"mode"})

	SourceFloodWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_source_flood_waits_total",
		Help: "The total number of FLOOD_WAIT responses from the message source",
	})
)
