package sftp

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestHostKeyCallback(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	other, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	otherKey, err := ssh.NewPublicKey(other)
	require.NoError(t, err)

	cb, err := hostKeyCallback(string(ssh.MarshalAuthorizedKey(key)))
	require.NoError(t, err)

	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 22}

	assert.NoError(t, cb("example.org:22", addr, key))
	assert.Error(t, cb("example.org:22", addr, otherKey))
}

func TestHostKeyCallbackEmptyAcceptsAny(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	cb, err := hostKeyCallback("")
	require.NoError(t, err)
	assert.NoError(t, cb("example.org:22", &net.TCPAddr{}, key))
}

func TestHostKeyCallbackInvalid(t *testing.T) {
	_, err := hostKeyCallback("not a key")
	require.Error(t, err)
}

func TestDialRequiresHost(t *testing.T) {
	logger := zerolog.Nop()

	_, err := Dial(context.Background(), Config{}, &logger)
	require.ErrorIs(t, err, errMissingHost)
}

type pipeConn struct {
	io.Reader
	io.WriteCloser
}

// newMemClient connects a Client to an in-memory SFTP server.
func newMemClient(t *testing.T) *Client {
	t.Helper()

	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	server := sftp.NewRequestServer(pipeConn{serverRead, serverWrite}, sftp.InMemHandler())

	go func() {
		_ = server.Serve()
	}()

	client, err := sftp.NewClientPipe(clientRead, clientWrite)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	logger := zerolog.Nop()

	return &Client{sftp: client, logger: &logger}
}

func readRemote(t *testing.T, c *Client, name string) string {
	t.Helper()

	f, err := c.sftp.Open(name)
	require.NoError(t, err)

	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)

	return string(data)
}

func TestPutWritesFile(t *testing.T) {
	c := newMemClient(t)

	local := filepath.Join(t.TempDir(), "100_20_1_resize.jpg")
	require.NoError(t, os.WriteFile(local, []byte("jpeg bytes"), 0o600))

	require.NoError(t, c.Put(context.Background(), local, "/", "100_20_1_resize.jpg"))

	names, err := c.List(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"100_20_1_resize.jpg"}, names)
	assert.Equal(t, "jpeg bytes", readRemote(t, c, "/100_20_1_resize.jpg"))
}

func TestPutFailedCopyLeavesNoRemoteFile(t *testing.T) {
	c := newMemClient(t)
	errRead := errors.New("read failed")

	src := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errRead))

	err := c.put(src, "/100_20_1_resize.jpg")
	require.ErrorIs(t, err, errRead)

	names, err := c.List(context.Background(), "/")
	require.NoError(t, err)
	assert.Empty(t, names)

	// The same name uploads cleanly on the next sync.
	require.NoError(t, c.put(strings.NewReader("jpeg bytes"), "/100_20_1_resize.jpg"))
	assert.Equal(t, "jpeg bytes", readRemote(t, c, "/100_20_1_resize.jpg"))
}

func TestPutCanceledContext(t *testing.T) {
	c := newMemClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Put(ctx, "/does/not/matter", "/", "a.jpg")
	require.ErrorIs(t, err, context.Canceled)
}
