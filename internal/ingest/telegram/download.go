package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
	liberrors "github.com/lueurxax/telegram-library-keeper/internal/core/errors"
)

// DownloadDocument saves the document of msg into dir under its original
// file name and returns that name.
func (c *Client) DownloadDocument(ctx context.Context, msg domain.Message, dir string) (string, error) {
	if msg.Document == nil {
		return "", liberrors.ErrNoMedia
	}

	loc, ok := msg.Document.Handle.(tg.InputFileLocationClass)
	if !ok {
		return "", fmt.Errorf("%w: document handle %T", liberrors.ErrUnexpectedType, msg.Document.Handle)
	}

	name := documentFileName(msg.Document)

	if err := c.download(ctx, loc, filepath.Join(dir, name)); err != nil {
		return "", err
	}

	return name, nil
}

// DownloadPhoto saves the largest size of the photo of msg into dir as
// {channel_id}_{message_id}_{microsecond}.jpg and returns that name.
func (c *Client) DownloadPhoto(ctx context.Context, msg domain.Message, dir string) (string, error) {
	if msg.Photo == nil || msg.Photo.Handle == nil {
		return "", liberrors.ErrNoMedia
	}

	loc, ok := msg.Photo.Handle.(tg.InputFileLocationClass)
	if !ok {
		return "", fmt.Errorf("%w: photo handle %T", liberrors.ErrUnexpectedType, msg.Photo.Handle)
	}

	name := photoFileName(msg, time.Now())

	if err := c.download(ctx, loc, filepath.Join(dir, name)); err != nil {
		return "", err
	}

	return name, nil
}

func (c *Client) download(ctx context.Context, loc tg.InputFileLocationClass, path string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TransferTimeout)
	defer cancel()

	err := c.invoke(ctx, func(ctx context.Context, api *tg.Client) error {
		_, err := downloader.NewDownloader().Download(api, loc).ToPath(ctx, path)

		return err //nolint:wrapcheck
	})
	if err != nil {
		_ = os.Remove(path)

		return fmt.Errorf("download %s: %w", filepath.Base(path), err)
	}

	return nil
}

func documentFileName(doc *domain.Document) string {
	name := filepath.Base(doc.FileName)
	if doc.FileName == "" || name == "." || name == string(filepath.Separator) {
		return strconv.FormatInt(doc.ID, 10)
	}

	return name
}

func photoFileName(msg domain.Message, now time.Time) string {
	return fmt.Sprintf("%d_%d_%d.jpg", msg.ChannelID, msg.ID, now.Nanosecond()/int(time.Microsecond))
}
