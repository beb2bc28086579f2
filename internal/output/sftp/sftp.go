// Package sftp is the bulk-sync backend that mirrors photo derivatives to
// the web host.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

const (
	defaultDialTimeout = 30 * time.Second
	partialSuffix      = ".part"
)

var errMissingHost = errors.New("sftp host is not configured")

// Config holds the connection settings. HostKey is a public key in
// authorized_keys format; when empty the host key is not verified.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	HostKey     string
	DialTimeout time.Duration
}

// Client is one SFTP session. It is not safe for concurrent use.
type Client struct {
	ssh    *ssh.Client
	sftp   *sftp.Client
	logger *zerolog.Logger
}

// Dial opens an SSH connection with password auth and starts an SFTP
// session on it.
func Dial(ctx context.Context, cfg Config, logger *zerolog.Logger) (*Client, error) {
	if cfg.Host == "" {
		return nil, errMissingHost
	}

	hostKey, err := hostKeyCallback(cfg.HostKey)
	if err != nil {
		return nil, err
	}

	if cfg.HostKey == "" {
		logger.Warn().Str("host", cfg.Host).Msg("SFTP host key not configured, skipping verification")
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	dialer := net.Dialer{Timeout: timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("start sftp session: %w", err)
	}

	logger.Debug().Str("addr", addr).Msg("SFTP session opened")

	return &Client{ssh: sshClient, sftp: sftpClient, logger: logger}, nil
}

// List returns the entry names of dir.
func (c *Client) List(_ context.Context, dir string) ([]string, error) {
	entries, err := c.sftp.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read remote dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names, nil
}

// Put copies localPath to remoteDir/name, replacing an existing file.
// The remote name only appears once the whole file is written.
func (c *Client) Put(ctx context.Context, localPath, remoteDir, name string) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}

	defer func() {
		_ = src.Close()
	}()

	return c.put(src, path.Join(remoteDir, name))
}

// put writes src under a partial name next to target and renames it into
// place. On failure the partial file is removed.
func (c *Client) put(src io.Reader, target string) error {
	partial := target + partialSuffix

	dst, err := c.sftp.Create(partial)
	if err != nil {
		return fmt.Errorf("create remote %s: %w", partial, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		c.discard(partial)

		return fmt.Errorf("copy to %s: %w", target, err)
	}

	if err := dst.Close(); err != nil {
		c.discard(partial)
		return fmt.Errorf("close remote %s: %w", partial, err)
	}

	if err := c.sftp.PosixRename(partial, target); err != nil {
		c.discard(partial)
		return fmt.Errorf("rename %s into place: %w", target, err)
	}

	return nil
}

func (c *Client) discard(name string) {
	if err := c.sftp.Remove(name); err != nil {
		c.logger.Warn().Err(err).Str("file", name).Msg("failed to remove partial upload")
	}
}

func (c *Client) Close() error {
	sftpErr := c.sftp.Close()
	sshErr := c.ssh.Close()

	return errors.Join(sftpErr, sshErr)
}

func hostKeyCallback(authorizedKey string) (ssh.HostKeyCallback, error) {
	if authorizedKey == "" {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // verification is opt-in through SFTP_HOST_KEY
	}

	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(authorizedKey))
	if err != nil {
		return nil, fmt.Errorf("parse sftp host key: %w", err)
	}

	return ssh.FixedHostKey(key), nil
}
