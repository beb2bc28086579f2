package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
	"github.com/lueurxax/telegram-library-keeper/internal/platform/observability"
)

// RemoteFS is the bulk-sync backend.
type RemoteFS interface {
	List(ctx context.Context, dir string) ([]string, error)
	Put(ctx context.Context, localPath, remoteDir, name string) error
}

// PhotoSync copies photo derivatives missing on the remote host.
type PhotoSync struct {
	remote    RemoteFS
	localDir  string
	remoteDir string
	pattern   *regexp.Regexp
	logger    *zerolog.Logger
}

func NewPhotoSync(remote RemoteFS, localDir, remoteDir string, pattern *regexp.Regexp, logger *zerolog.Logger) *PhotoSync {
	return &PhotoSync{
		remote:    remote,
		localDir:  localDir,
		remoteDir: remoteDir,
		pattern:   pattern,
		logger:    logger,
	}
}

// Run uploads local files matching the pattern that the remote directory
// does not have yet, one at a time.
func (p *PhotoSync) Run(ctx context.Context) (domain.UploadStats, error) {
	var stats domain.UploadStats

	local, err := ListLocal(p.localDir, p.pattern)
	if err != nil {
		return stats, err
	}

	remote, err := p.remote.List(ctx, p.remoteDir)
	if err != nil {
		return stats, fmt.Errorf("list remote dir %s: %w", p.remoteDir, err)
	}

	pending := Missing(local, remote)
	stats.Candidates = len(pending)

	for _, name := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err //nolint:wrapcheck
		}

		if err := p.remote.Put(ctx, filepath.Join(p.localDir, name), p.remoteDir, name); err != nil {
			stats.Failed++
			observability.Uploads.WithLabelValues(observability.SinkSFTP, observability.ResultFailed).Inc()
			p.logger.Warn().Err(err).Str("file_name", name).Msg("Photo upload failed")

			continue
		}

		stats.Uploaded++
		observability.Uploads.WithLabelValues(observability.SinkSFTP, observability.ResultSuccess).Inc()
		p.logger.Info().Str("file_name", name).Msg("Photo uploaded")
	}

	return stats, nil
}

// ListLocal returns the names of regular files in dir that contain a match
// of pattern, sorted.
func ListLocal(dir string, pattern *regexp.Regexp) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read local dir %s: %w", dir, err)
	}

	var names []string

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		if pattern == nil || pattern.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

// Missing returns the names of local absent from remote, keeping the order of local.
func Missing(local, remote []string) []string {
	have := make(map[string]struct{}, len(remote))
	for _, name := range remote {
		have[name] = struct{}{}
	}

	var out []string

	for _, name := range local {
		if _, ok := have[name]; !ok {
			out = append(out, name)
		}
	}

	return out
}
