// Package notify posts a short run report to operator chats through the
// Bot API.
package notify

import (
	"context"
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
)

// Report is the outcome of one invocation.
type Report struct {
	RunID    string
	Mode     string
	Duration time.Duration
	Ingest   *domain.RunStats
	Archive  *domain.UploadStats
	Photos   *domain.UploadStats
	Err      error
}

// Notifier delivers run reports.
type Notifier interface {
	Send(ctx context.Context, r Report) error
}

// Nop drops every report.
type Nop struct{}

func (Nop) Send(context.Context, Report) error { return nil }

// Telegram sends reports to a fixed set of chats.
type Telegram struct {
	api     *tgbotapi.BotAPI
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegram(token string, chatIDs []int64, logger *zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger.Info().Str("bot_username", api.Self.UserName).Msg("Run report bot connected")

	return &Telegram{api: api, chatIDs: chatIDs, logger: logger}, nil
}

// Send posts the report to every chat. A failed chat is logged and does not
// stop delivery to the others.
func (t *Telegram) Send(ctx context.Context, r Report) error {
	text := Format(r)

	for _, chatID := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck
		}

		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		if _, err := t.api.Send(msg); err != nil {
			t.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send run report")
		}
	}

	return nil
}

// Format renders r as Telegram HTML.
func Format(r Report) string {
	var sb strings.Builder

	status := "✅"
	if r.Err != nil {
		status = "❌"
	}

	fmt.Fprintf(&sb, "%s <b>library-keeper</b> %s", status, html.EscapeString(r.Mode))

	if r.Duration > 0 {
		fmt.Fprintf(&sb, " in %s", r.Duration.Round(time.Second))
	}

	sb.WriteString("\n")

	if r.RunID != "" {
		fmt.Fprintf(&sb, "<code>%s</code>\n", html.EscapeString(r.RunID))
	}

	if s := r.Ingest; s != nil {
		fmt.Fprintf(&sb, "\n<b>Ingest</b>\nseen %d, skipped %d, inert %d\ndocuments %d, downloaded %d\nrecorded %d, failed %d\nphotos %d, referenced %d\n",
			s.Seen, s.Skipped, s.Inert, s.Documents, s.Downloaded, s.Recorded, s.RecordFailed, s.Photos, s.Referenced)

		writeCursors(&sb, s.Cursors)
	}

	writeUpload(&sb, "Archive", r.Archive)
	writeUpload(&sb, "Photo sync", r.Photos)

	if r.Err != nil {
		fmt.Fprintf(&sb, "\n<b>Error</b>: %s\n", html.EscapeString(r.Err.Error()))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func writeCursors(sb *strings.Builder, cursors map[string]int64) {
	if len(cursors) == 0 {
		return
	}

	parts := make([]string, 0, len(cursors))
	for _, channel := range slices.Sorted(maps.Keys(cursors)) {
		parts = append(parts, fmt.Sprintf("%s %d", html.EscapeString(channel), cursors[channel]))
	}

	fmt.Fprintf(sb, "cursors: %s\n", strings.Join(parts, ", "))
}

func writeUpload(sb *strings.Builder, title string, s *domain.UploadStats) {
	if s == nil {
		return
	}

	fmt.Fprintf(sb, "\n<b>%s</b>\ncandidates %d, uploaded %d, failed %d\n", title, s.Candidates, s.Uploaded, s.Failed)
}
