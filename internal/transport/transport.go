// Package transport is the contract the core holds against the chat service.
// The services consume narrow slices of Client; the telegram subpackage is the
// real implementation.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type MemberStatus string

const (
	MemberStatusCreator       MemberStatus = "creator"
	MemberStatusAdministrator MemberStatus = "administrator"
	MemberStatusMember        MemberStatus = "member"
	MemberStatusRestricted    MemberStatus = "restricted"
	MemberStatusLeft          MemberStatus = "left"
	MemberStatusKicked        MemberStatus = "kicked"
)

type ChannelInfo struct {
	Title      string
	InviteLink string
	Username   string
}

// Payload is one outbound message: text, optionally attached to an image
// reference the transport already knows.
type Payload struct {
	Text    string
	PhotoID string
}

var (
	// ErrForbidden: the recipient blocked the bot or the bot lacks access.
	// Permanent for this recipient, never retried.
	ErrForbidden = errors.New("transport: forbidden")
	// ErrBadRequest: malformed or unknown target. Permanent, never retried.
	ErrBadRequest = errors.New("transport: bad request")
)

// RateLimitedError carries the server-dictated pause before the next attempt.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("transport: rate limited, retry after %s", e.RetryAfter)
}

type Client interface {
	GetMembership(ctx context.Context, channelRef string, userID int64) (MemberStatus, error)
	GetChannelInfo(ctx context.Context, channelRef string) (ChannelInfo, error)
	Send(ctx context.Context, userID int64, payload Payload) error
}
