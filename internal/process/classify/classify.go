// Package classify holds the side-effect-free predicates that decide how a
// channel message is handled by the ingestion pipeline.
//
// The same predicates apply to messages fetched from a home channel and to
// messages resolved from cross-reference links.
package classify

import (
	"strings"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
)

// DocumentFilter is the download gate for document attachments.
type DocumentFilter struct {
	allowed map[string]struct{}
	limit   int64
}

// NewDocumentFilter builds a filter from an extension allow-list and a byte limit.
func NewDocumentFilter(extensions []string, limit int64) DocumentFilter {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[strings.TrimPrefix(strings.TrimSpace(ext), ".")] = struct{}{}
	}

	return DocumentFilter{allowed: allowed, limit: limit}
}

// Passes reports whether the document may be downloaded.
func (f DocumentFilter) Passes(doc *domain.Document) bool {
	if doc == nil {
		return false
	}

	return f.TypeAllowed(doc.FileName) && SizeAllowed(doc.Size, f.limit)
}

// TypeAllowed reports whether the suffix of fileName is in the allow-list.
func (f DocumentFilter) TypeAllowed(fileName string) bool {
	_, ok := f.allowed[FileType(fileName)]
	return ok
}

// Limit returns the byte size limit.
func (f DocumentFilter) Limit() int64 {
	return f.limit
}

// IsRepost reports whether the message is an original post of the channel:
// it carries no forward origin and its body is non-empty.
func IsRepost(msg domain.Message) bool {
	return !msg.Forwarded && msg.Text != ""
}

// HasDocument reports whether the message carries a document.
func HasDocument(msg domain.Message) bool {
	return msg.Document != nil
}

// HasPhoto reports whether the message carries a photo and no document.
func HasPhoto(msg domain.Message) bool {
	return msg.Document == nil && msg.Photo != nil
}

// FileType returns the part of fileName after the final dot.
// A name without a dot is returned unchanged.
func FileType(fileName string) string {
	if i := strings.LastIndexByte(fileName, '.'); i >= 0 {
		return fileName[i+1:]
	}

	return fileName
}

// TypeAllowed reports whether the suffix of fileName is one of extensions.
func TypeAllowed(fileName string, extensions []string) bool {
	return NewDocumentFilter(extensions, 0).TypeAllowed(fileName)
}

// SizeAllowed reports whether size is within limit, inclusive.
func SizeAllowed(size, limit int64) bool {
	return size <= limit
}

// PassesDocumentFilter is the sole gate for downloading a document.
func PassesDocumentFilter(msg domain.Message, extensions []string, limit int64) bool {
	return NewDocumentFilter(extensions, limit).Passes(msg.Document)
}
