package telegram

import (
	"context"
	"fmt"
	"sort"

	"github.com/gotd/td/tg"

	"github.com/lueurxax/telegram-library-keeper/internal/core/domain"
	liberrors "github.com/lueurxax/telegram-library-keeper/internal/core/errors"
)

// ResolveChannel returns the channel behind a public username.
func (c *Client) ResolveChannel(ctx context.Context, username string) (domain.Channel, error) {
	if ch, ok := c.cachedByUsername(username); ok && ch.AccessHash != 0 {
		return ch, nil
	}

	var resolved *tg.ContactsResolvedPeer

	err := c.invoke(ctx, func(ctx context.Context, api *tg.Client) error {
		var err error

		resolved, err = api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})

		return err //nolint:wrapcheck
	})
	if err != nil {
		return domain.Channel{}, fmt.Errorf("resolve username %s: %w", username, err)
	}

	c.remember(resolved.Chats)

	if len(resolved.Chats) == 0 {
		return domain.Channel{}, fmt.Errorf("%w: %s", liberrors.ErrChannelNotFound, username)
	}

	channel, ok := resolved.Chats[0].(*tg.Channel)
	if !ok {
		return domain.Channel{}, fmt.Errorf("%w: %s", liberrors.ErrNotAChannel, username)
	}

	c.logger.Debug().Str("username", username).Int64("peer_id", channel.ID).Str("title", channel.Title).Msg("Caching channel info")

	return channelFromTG(channel), nil
}

// NextBatch returns up to FetchLimit messages of ch with ids above afterID,
// oldest first. Deleted messages are dropped; an empty result means the
// channel is exhausted.
func (c *Client) NextBatch(ctx context.Context, ch domain.Channel, afterID int64) ([]domain.Message, error) {
	peer := &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}

	for {
		raw, err := c.history(ctx, peer, afterID)
		if err != nil {
			return nil, err
		}

		if len(raw) == 0 {
			return nil, nil
		}

		out := make([]domain.Message, 0, len(raw))
		maxID := afterID

		for _, m := range raw {
			id := int64(m.GetID())
			if id <= afterID {
				continue
			}

			if id > maxID {
				maxID = id
			}

			if msg, ok := convertMessage(ch.ID, m); ok {
				out = append(out, msg)
			}
		}

		if len(out) > 0 {
			sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

			return out, nil
		}

		if maxID == afterID {
			return nil, nil
		}

		// Only deleted messages in this window.
		afterID = maxID
	}
}

func (c *Client) history(ctx context.Context, peer tg.InputPeerClass, afterID int64) ([]tg.MessageClass, error) {
	limit := c.cfg.FetchLimit

	req := &tg.MessagesGetHistoryRequest{
		Peer:      peer,
		OffsetID:  int(afterID) + 1,
		AddOffset: -limit,
		Limit:     limit,
		MinID:     int(afterID),
	}

	var res tg.MessagesMessagesClass

	err := c.invoke(ctx, func(ctx context.Context, api *tg.Client) error {
		var err error

		res, err = api.MessagesGetHistory(ctx, req)

		return err //nolint:wrapcheck
	})
	if err != nil {
		return nil, fmt.Errorf("get history after %d: %w", afterID, err)
	}

	messages, chats := unpackMessages(res)
	c.remember(chats)

	return messages, nil
}

// FetchOne returns a single message of the channel with the given username.
func (c *Client) FetchOne(ctx context.Context, username string, messageID int64) (domain.Message, error) {
	ch, err := c.ResolveChannel(ctx, username)
	if err != nil {
		return domain.Message{}, err
	}

	var res tg.MessagesMessagesClass

	err = c.invoke(ctx, func(ctx context.Context, api *tg.Client) error {
		var err error

		res, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
			ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: int(messageID)}},
		})

		return err //nolint:wrapcheck
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("get message %s/%d: %w", username, messageID, err)
	}

	messages, chats := unpackMessages(res)
	c.remember(chats)

	for _, m := range messages {
		if int64(m.GetID()) != messageID {
			continue
		}

		if msg, ok := convertMessage(ch.ID, m); ok {
			return msg, nil
		}
	}

	return domain.Message{}, fmt.Errorf("%w: %s/%d", liberrors.ErrMessageNotFound, username, messageID)
}

// ChannelMetadata returns the title and username of a channel, asking the
// server only when the channel has not been seen in this session.
func (c *Client) ChannelMetadata(ctx context.Context, channelID int64) (domain.Channel, error) {
	if ch, ok := c.cached(channelID); ok {
		return ch, nil
	}

	var res tg.MessagesChatsClass

	err := c.invoke(ctx, func(ctx context.Context, api *tg.Client) error {
		var err error

		res, err = api.ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: channelID}})

		return err //nolint:wrapcheck
	})
	if err != nil {
		return domain.Channel{}, fmt.Errorf("get channel %d: %w", channelID, err)
	}

	c.remember(res.GetChats())

	if ch, ok := c.cached(channelID); ok {
		return ch, nil
	}

	return domain.Channel{}, fmt.Errorf("%w: %d", liberrors.ErrChannelNotFound, channelID)
}

func unpackMessages(res tg.MessagesMessagesClass) ([]tg.MessageClass, []tg.ChatClass) {
	switch h := res.(type) {
	case *tg.MessagesMessages:
		return h.Messages, h.Chats
	case *tg.MessagesMessagesSlice:
		return h.Messages, h.Chats
	case *tg.MessagesChannelMessages:
		return h.Messages, h.Chats
	default:
		return nil, nil
	}
}
