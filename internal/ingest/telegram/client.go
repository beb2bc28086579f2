// Package telegram is the MTProto message source. It authenticates as a
// user account, pages channel history in ascending id order and downloads
// document and photo payloads to local directories.
package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
	liberrors "github.com/lueurxax/telegram-library-keeper/internal/core/errors"
	"github.com/lueurxax/telegram-library-keeper/internal/platform/observability"
)

const (
	defaultFetchLimit      = 100
	maxFetchLimit          = 100
	defaultTransferTimeout = 30 * time.Minute
	rateLimitBurst         = 3

	floodWaitType = "FLOOD_WAIT"
)

// Config holds the MTProto credentials and client limits.
type Config struct {
	APIID           int
	APIHash         string
	Phone           string
	Password2FA     string
	SessionPath     string
	RateLimitRPS    float64
	FetchLimit      int
	TransferTimeout time.Duration
}

// Client implements the message source on top of gotd. It is usable only
// inside the callback passed to Run.
type Client struct {
	cfg     Config
	client  *telegram.Client
	api     *tg.Client
	limiter *rate.Limiter
	logger  *zerolog.Logger

	mu        sync.Mutex
	channels  map[int64]domain.Channel
	usernames map[string]int64
}

func New(cfg Config, logger *zerolog.Logger) *Client {
	if cfg.FetchLimit <= 0 || cfg.FetchLimit > maxFetchLimit {
		cfg.FetchLimit = defaultFetchLimit
	}

	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = defaultTransferTimeout
	}

	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}

	return &Client{
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, rateLimitBurst),
		logger:    logger,
		channels:  make(map[int64]domain.Channel),
		usernames: make(map[string]int64),
	}
}

// Run connects, authenticates when the session requires it and calls fn
// with a live client. The connection is closed when fn returns.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	c.client = telegram.NewClient(c.cfg.APIID, c.cfg.APIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{
			Path: c.cfg.SessionPath,
		},
	})

	return c.client.Run(ctx, func(ctx context.Context) error { //nolint:wrapcheck
		if err := c.client.Auth().IfNecessary(ctx, c.authFlow()); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}

		c.logger.Info().Msg("Successfully authenticated as user")

		c.api = tg.NewClient(c.client)

		defer func() {
			c.api = nil
		}()

		return fn(ctx)
	})
}

// invoke runs an API call under the rate limiter. A FLOOD_WAIT answer is
// honored once by sleeping the requested time and retrying.
func (c *Client) invoke(ctx context.Context, call func(ctx context.Context, api *tg.Client) error) error {
	if c.api == nil {
		return liberrors.ErrClientNotInitialized
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err //nolint:wrapcheck
	}

	err := call(ctx, c.api)

	floodErr, ok := tgerr.As(err)
	if !ok || floodErr.Type != floodWaitType {
		return err
	}

	observability.SourceFloodWaits.Inc()
	c.logger.Warn().Int("seconds", floodErr.Argument).Msg("flood wait")

	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	case <-time.After(time.Duration(floodErr.Argument) * time.Second):
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err //nolint:wrapcheck
	}

	return call(ctx, c.api)
}

// remember adds every channel of chats to the peer cache.
func (c *Client) remember(chats []tg.ChatClass) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, chat := range chats {
		ch, ok := chat.(*tg.Channel)
		if !ok {
			continue
		}

		known := c.channels[ch.ID]

		entry := channelFromTG(ch)
		if entry.AccessHash == 0 {
			entry.AccessHash = known.AccessHash
		}

		c.channels[ch.ID] = entry

		if entry.Username != "" {
			c.usernames[entry.Username] = ch.ID
		}
	}
}

func (c *Client) cached(channelID int64) (domain.Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.channels[channelID]

	return ch, ok
}

func (c *Client) cachedByUsername(username string) (domain.Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.usernames[username]
	if !ok {
		return domain.Channel{}, false
	}

	ch, ok := c.channels[id]

	return ch, ok
}
