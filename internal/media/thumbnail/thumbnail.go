// Package thumbnail writes the derivative images of a downloaded photo next
// to the original: a bounded thumbnail and a fixed-height resize.
package thumbnail

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	DefaultThumbnailSize = 300
	DefaultResizeHeight  = 400

	thumbnailSuffix = "_thumbnail"
	resizeSuffix    = "_resize"
)

// Generator produces photo derivatives.
type Generator struct {
	thumbnailSize int
	resizeHeight  int
}

// New creates a Generator. Non-positive sizes fall back to the defaults.
func New(thumbnailSize, resizeHeight int) *Generator {
	if thumbnailSize <= 0 {
		thumbnailSize = DefaultThumbnailSize
	}

	if resizeHeight <= 0 {
		resizeHeight = DefaultResizeHeight
	}

	return &Generator{thumbnailSize: thumbnailSize, resizeHeight: resizeHeight}
}

// Thumbnail shrinks the image at path to fit a square box, keeping its
// aspect ratio and never enlarging it. It returns the base name of the
// written file.
func (g *Generator) Thumbnail(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}

	out := DerivativePath(path, thumbnailSuffix)
	if err := imaging.Save(imaging.Fit(img, g.thumbnailSize, g.thumbnailSize, imaging.Lanczos), out); err != nil {
		return "", fmt.Errorf("save thumbnail: %w", err)
	}

	return filepath.Base(out), nil
}

// Resize scales the image at path to the configured height, keeping its
// aspect ratio. It returns the base name of the written file.
func (g *Generator) Resize(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}

	out := DerivativePath(path, resizeSuffix)
	if err := imaging.Save(imaging.Resize(img, 0, g.resizeHeight, imaging.Lanczos), out); err != nil {
		return "", fmt.Errorf("save resized image: %w", err)
	}

	return filepath.Base(out), nil
}

// DerivativePath inserts suffix before the extension of path.
func DerivativePath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}
