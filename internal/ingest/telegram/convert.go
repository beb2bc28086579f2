package telegram

import (
	"time"

	"github.com/gotd/td/tg"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
)

// convertMessage maps an MTProto message to the domain message. Service
// messages become inert messages with an empty body; deleted messages are
// reported as not ok.
func convertMessage(channelID int64, m tg.MessageClass) (domain.Message, bool) {
	switch msg := m.(type) {
	case *tg.Message:
		_, forwarded := msg.GetFwdFrom()

		out := domain.Message{
			ChannelID: channelID,
			ID:        int64(msg.ID),
			Date:      time.Unix(int64(msg.Date), 0).UTC(),
			Text:      msg.Message,
			Forwarded: forwarded,
			Links:     textURLs(msg.Entities),
		}

		switch media := msg.Media.(type) {
		case *tg.MessageMediaDocument:
			if doc, ok := media.Document.(*tg.Document); ok {
				out.Document = documentFromTG(doc)
			}
		case *tg.MessageMediaPhoto:
			if photo, ok := media.Photo.(*tg.Photo); ok {
				out.Photo = photoFromTG(photo)
			}
		}

		return out, true
	case *tg.MessageService:
		return domain.Message{
			ChannelID: channelID,
			ID:        int64(msg.ID),
			Date:      time.Unix(int64(msg.Date), 0).UTC(),
		}, true
	default:
		return domain.Message{}, false
	}
}

// textURLs returns the targets of hidden hyperlinks in entity order.
func textURLs(entities []tg.MessageEntityClass) []string {
	var links []string

	for _, entity := range entities {
		if textURL, ok := entity.(*tg.MessageEntityTextURL); ok {
			links = append(links, textURL.URL)
		}
	}

	return links
}

func documentFromTG(doc *tg.Document) *domain.Document {
	out := &domain.Document{
		ID:       doc.ID,
		Size:     int64(doc.Size),
		MimeType: doc.MimeType,
		Handle: &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		},
	}

	for _, attr := range doc.Attributes {
		if name, ok := attr.(*tg.DocumentAttributeFilename); ok {
			out.FileName = name.FileName
			break
		}
	}

	return out
}

// photoFromTG points the download handle at the largest available size.
func photoFromTG(photo *tg.Photo) *domain.Photo {
	out := &domain.Photo{ID: photo.ID}

	thumbSize := largestPhotoSize(photo.Sizes)
	if thumbSize == "" {
		return out
	}

	out.Handle = &tg.InputPhotoFileLocation{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     thumbSize,
	}

	return out
}

func largestPhotoSize(sizes []tg.PhotoSizeClass) string {
	var (
		thumbSize string
		maxArea   int
	)

	for _, size := range sizes {
		switch s := size.(type) {
		case *tg.PhotoSize:
			if s.W*s.H > maxArea {
				maxArea = s.W * s.H
				thumbSize = s.Type
			}
		case *tg.PhotoSizeProgressive:
			if s.W*s.H > maxArea {
				maxArea = s.W * s.H
				thumbSize = s.Type
			}
		}
	}

	return thumbSize
}

func channelFromTG(ch *tg.Channel) domain.Channel {
	return domain.Channel{
		ID:         ch.ID,
		AccessHash: ch.AccessHash,
		Title:      ch.Title,
		Username:   ch.Username,
	}
}
