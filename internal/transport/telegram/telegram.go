// Package telegram adapts the Bot API onto the transport contract and maps
// its error codes onto the core taxonomy (429 with retry_after, 403, 400).
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/14kear/voteGateBot/internal/transport"
)

type Client struct {
	api *tgbotapi.BotAPI
}

func NewClient(api *tgbotapi.BotAPI) *Client {
	return &Client{api: api}
}

func (c *Client) GetMembership(ctx context.Context, channelRef string, userID int64) (transport.MemberStatus, error) {
	const op = "transport.telegram.GetMembership"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	cfg := tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{UserID: userID},
	}
	applyChatRef(&cfg.ChatConfigWithUser.ChatID, &cfg.ChatConfigWithUser.SuperGroupUsername, channelRef)

	member, err := c.api.GetChatMember(cfg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}

	return transport.MemberStatus(member.Status), nil
}

func (c *Client) GetChannelInfo(ctx context.Context, channelRef string) (transport.ChannelInfo, error) {
	const op = "transport.telegram.GetChannelInfo"

	if err := ctx.Err(); err != nil {
		return transport.ChannelInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	cfg := tgbotapi.ChatInfoConfig{}
	applyChatRef(&cfg.ChatConfig.ChatID, &cfg.ChatConfig.SuperGroupUsername, channelRef)

	chat, err := c.api.GetChat(cfg)
	if err != nil {
		return transport.ChannelInfo{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return transport.ChannelInfo{
		Title:      chat.Title,
		InviteLink: chat.InviteLink,
		Username:   chat.UserName,
	}, nil
}

func (c *Client) Send(ctx context.Context, userID int64, payload transport.Payload) error {
	const op = "transport.telegram.Send"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var msg tgbotapi.Chattable
	if payload.PhotoID != "" {
		photo := tgbotapi.NewPhoto(userID, tgbotapi.FileID(payload.PhotoID))
		photo.Caption = payload.Text
		msg = photo
	} else {
		msg = tgbotapi.NewMessage(userID, payload.Text)
	}

	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}

	return nil
}

// applyChatRef routes "@handle" refs through the username field and numeric
// ids ("-100...") through the chat id field, as the Bot API expects.
func applyChatRef(chatID *int64, username *string, channelRef string) {
	if strings.HasPrefix(channelRef, "@") {
		*username = channelRef
		return
	}
	if id, err := strconv.ParseInt(channelRef, 10, 64); err == nil {
		*chatID = id
		return
	}
	*username = "@" + channelRef
}

func mapError(err error) error {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return err
	}

	switch tgErr.Code {
	case 429:
		return &transport.RateLimitedError{RetryAfter: time.Duration(tgErr.RetryAfter) * time.Second}
	case 403:
		return fmt.Errorf("%w: %s", transport.ErrForbidden, tgErr.Message)
	case 400:
		return fmt.Errorf("%w: %s", transport.ErrBadRequest, tgErr.Message)
	}
	return err
}
