package domain

import (
	"maps"
	"time"
)

// Channel describes a source channel as the message source knows it.
type Channel struct {
	ID         int64
	AccessHash int64
	Title      string
	Username   string
}

// Document is the file descriptor attached to a message.
type Document struct {
	ID       int64
	FileName string
	Size     int64
	MimeType string

	// Handle is the source-specific locator used to download the payload.
	Handle any
}

// Photo is the picture attached to a message.
type Photo struct {
	ID int64

	// Handle is the source-specific locator used to download the payload.
	Handle any
}

// Message is a single channel message as fetched from the source.
// It is immutable once fetched.
type Message struct {
	ChannelID int64
	ID        int64
	Date      time.Time
	Text      string
	Forwarded bool

	// Links holds the targets of embedded hyperlink entities in source order.
	Links []string

	Document *Document
	Photo    *Photo
}

// Key returns the ledger key of the message.
func (m Message) Key() Key {
	return Key{ChannelID: m.ChannelID, MessageID: m.ID}
}

// Key identifies a message across channels.
type Key struct {
	ChannelID int64
	MessageID int64
}

// LibraryRecord is the business record kept for a document message.
// Zero values are stored as NULL.
type LibraryRecord struct {
	ID             int64
	Title          string
	Author         string
	Year           int
	Description    string
	Tags           string
	Channel        string
	ChannelID      int64
	MessageID      int64
	DocumentID     int64
	NameLink       string
	FileName       string
	TypeFile       string
	FileSize       int64
	Photo          bool
	PhotoLink      string
	PhotoResize    string
	PhotoThumbnail string
	Category       string
	ArchiveLink    string
	CreatedAt      time.Time
}

// WithPhoto returns a copy of r carrying only the photo fields of base.
func (r LibraryRecord) WithPhoto(base PhotoSet) LibraryRecord {
	r.Photo = base.Downloaded
	r.PhotoLink = base.FileName
	r.PhotoResize = base.Resize
	r.PhotoThumbnail = base.Thumbnail

	return r
}

// PhotoSet is a downloaded photo together with its derivatives.
type PhotoSet struct {
	Downloaded bool
	FileName   string
	Thumbnail  string
	Resize     string
}

// Complete reports whether the photo and both derivatives exist.
func (p PhotoSet) Complete() bool {
	return p.Downloaded && p.Thumbnail != "" && p.Resize != ""
}

// ServiceStatus is the ledger row committed once per attempted message.
// Photo holds the cover derivatives a referenced document was attempted
// with, so a replay writes the same photo fields.
type ServiceStatus struct {
	ChannelID      int64
	MessageID      int64
	MatchedFilters bool
	FullyRecorded  bool
	Photo          PhotoSet
	Date           time.Time
}

// Outcome is the result of processing one message.
type Outcome struct {
	MatchedFilters bool
	FullyRecorded  bool
	Photo          PhotoSet
}

// TrustedChannel is an allow-listed source of cross-referenced documents.
type TrustedChannel struct {
	Channel   string
	Username  string
	ChannelID int64
	Trusted   bool
}

// UnarchivedFile is a library record still waiting for an archive link.
type UnarchivedFile struct {
	ID       int64
	FileName string
}

// RunStats summarizes one ingestion pass.
type RunStats struct {
	Seen         int
	Skipped      int
	Inert        int
	Documents    int
	Downloaded   int
	Recorded     int
	RecordFailed int
	Photos       int
	Referenced   int

	// Cursors maps a home channel username to the highest message id
	// committed for it.
	Cursors map[string]int64
}

// SetCursor records the cursor reached in a home channel.
func (s *RunStats) SetCursor(channel string, messageID int64) {
	if s.Cursors == nil {
		s.Cursors = make(map[string]int64)
	}

	s.Cursors[channel] = messageID
}

// Add accumulates o into s.
func (s *RunStats) Add(o RunStats) {
	s.Seen += o.Seen
	s.Skipped += o.Skipped
	s.Inert += o.Inert
	s.Documents += o.Documents
	s.Downloaded += o.Downloaded
	s.Recorded += o.Recorded
	s.RecordFailed += o.RecordFailed
	s.Photos += o.Photos
	s.Referenced += o.Referenced

	if len(o.Cursors) > 0 {
		if s.Cursors == nil {
			s.Cursors = make(map[string]int64, len(o.Cursors))
		}

		maps.Copy(s.Cursors, o.Cursors)
	}
}

// UploadStats summarizes one sweep or sync pass.
type UploadStats struct {
	Candidates int
	Uploaded   int
	Failed     int
}
