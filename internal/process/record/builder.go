// Package record assembles library records from channel messages.
//
// The text rules are fixed heuristics kept for output compatibility with
// already stored records:
//   - title is the body up to the first blank line, truncated to a maximum length
//   - description is the whole body trimmed of surrounding newlines
//   - emoji in the pictograph, emoticon, transport and flag blocks are removed from both
//   - year is the smallest 4-digit token of the description inside the configured range
package record

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
	"github.com/lueurxax/telegram-library-keeper/internal/process/classify"
)

const (
	DefaultTitleMaxLength = 255
	DefaultYearMin        = 1800
	DefaultYearMax        = 2023
)

var (
	yearRegex = regexp.MustCompile(`[0-9]{4}`)

	emojiTable = &unicode.RangeTable{
		R32: []unicode.Range32{
			{Lo: 0x1F1E0, Hi: 0x1F1FF, Stride: 1},
			{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1},
			{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1},
			{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1},
		},
	}
)

// Options configures the Builder.
type Options struct {
	PermalinkBase  string
	TitleMaxLength int
	YearMin        int
	YearMax        int
}

// Builder turns messages into library records.
type Builder struct {
	opts Options
	now  func() time.Time
}

// NewBuilder creates a Builder, filling unset options with defaults.
func NewBuilder(opts Options) *Builder {
	if opts.TitleMaxLength <= 0 {
		opts.TitleMaxLength = DefaultTitleMaxLength
	}

	if opts.YearMin == 0 && opts.YearMax == 0 {
		opts.YearMin, opts.YearMax = DefaultYearMin, DefaultYearMax
	}

	opts.PermalinkBase = strings.TrimRight(opts.PermalinkBase, "/")

	return &Builder{opts: opts, now: time.Now}
}

// Build fills the text, channel and document fields of a record for msg.
// File fields stay empty until a download succeeds, see WithFile.
func (b *Builder) Build(msg domain.Message, ch domain.Channel) domain.LibraryRecord {
	title, description := b.Text(msg.Text)

	rec := domain.LibraryRecord{
		Title:       title,
		Description: description,
		Year:        b.Year(description),
		Channel:     ch.Title,
		ChannelID:   msg.ChannelID,
		MessageID:   msg.ID,
		NameLink:    b.Permalink(ch.Username, msg.ID),
		CreatedAt:   b.now().UTC(),
	}

	if msg.Document != nil {
		rec.DocumentID = msg.Document.ID
		rec.FileSize = msg.Document.Size
	}

	return rec
}

// WithFile records a successfully downloaded local file on rec.
func WithFile(rec domain.LibraryRecord, fileName string) domain.LibraryRecord {
	rec.FileName = fileName
	rec.TypeFile = classify.FileType(fileName)

	return rec
}

// Text splits a message body into title and description.
func (b *Builder) Text(body string) (title, description string) {
	head, _, _ := strings.Cut(body, "\n\n")
	if r := []rune(head); len(r) > b.opts.TitleMaxLength {
		head = string(r[:b.opts.TitleMaxLength])
	}

	return StripEmoji(head), StripEmoji(strings.Trim(body, "\n"))
}

// Year returns the smallest 4-digit token of text within the configured
// inclusive range, or 0 when none qualifies.
func (b *Builder) Year(text string) int {
	year := 0

	for _, tok := range yearRegex.FindAllString(text, -1) {
		y, err := strconv.Atoi(tok)
		if err != nil || y < b.opts.YearMin || y > b.opts.YearMax {
			continue
		}

		if year == 0 || y < year {
			year = y
		}
	}

	return year
}

// Permalink returns the public link of a channel post.
func (b *Builder) Permalink(username string, msgID int64) string {
	return fmt.Sprintf("%s/%s/%d", b.opts.PermalinkBase, username, msgID)
}

// StripEmoji removes emoji characters from s.
func StripEmoji(s string) string {
	out, _, err := transform.String(runes.Remove(runes.In(emojiTable)), s)
	if err != nil {
		return s
	}

	return out
}
