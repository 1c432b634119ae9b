// Package gate checks mandatory-channel membership before admission.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sl "github.com/14kear/sso-prettyslog/slogpretty/errors"

	"github.com/14kear/voteGateBot/internal/entity"
	"github.com/14kear/voteGateBot/internal/transport"
)

type MembershipProvider interface {
	GetMembership(ctx context.Context, channelRef string, userID int64) (transport.MemberStatus, error)
	GetChannelInfo(ctx context.Context, channelRef string) (transport.ChannelInfo, error)
}

type Service struct {
	log       *slog.Logger
	transport MembershipProvider
	channels  []string
}

func New(log *slog.Logger, transport MembershipProvider, channels []string) *Service {
	return &Service{
		log:       log,
		transport: transport,
		channels:  channels,
	}
}

// Unsatisfied returns the configured channels the user has not joined, in
// configuration order, each resolved to a title and join reference on a
// best-effort basis. A transient transport failure (network/5xx) is returned
// as an error: "cannot verify" must never admit the user. A membership lookup
// that fails with a bad-request class error means the transport does not know
// the user in that channel and counts as unsatisfied.
//
// Zero configured channels is the common case and returns without any
// transport calls.
func (s *Service) Unsatisfied(ctx context.Context, userID int64) ([]entity.RequiredChannel, error) {
	const op = "gate.Unsatisfied"

	if len(s.channels) == 0 {
		return nil, nil
	}

	var unsatisfied []entity.RequiredChannel
	for _, channelRef := range s.channels {
		status, err := s.transport.GetMembership(ctx, channelRef, userID)
		if err != nil {
			if !errors.Is(err, transport.ErrBadRequest) {
				return nil, fmt.Errorf("%s: membership check failed for %s: %w", op, channelRef, err)
			}
			// Not-found class: treat as not a member.
		} else if satisfies(status) {
			continue
		}

		unsatisfied = append(unsatisfied, s.resolve(ctx, channelRef))
	}

	return unsatisfied, nil
}

func satisfies(status transport.MemberStatus) bool {
	switch status {
	case transport.MemberStatusMember, transport.MemberStatusAdministrator, transport.MemberStatusCreator:
		return true
	}
	return false
}

// resolve never fails: when channel info is unavailable the channel is still
// listed with a placeholder label, so the user is not silently let through.
func (s *Service) resolve(ctx context.Context, channelRef string) entity.RequiredChannel {
	info, err := s.transport.GetChannelInfo(ctx, channelRef)
	if err != nil {
		s.log.Error("failed to resolve required channel info", slog.String("channel", channelRef), sl.Err(err))
		return entity.RequiredChannel{Title: fmt.Sprintf("Channel (%s)", channelRef)}
	}

	joinURL := info.InviteLink
	if joinURL == "" && info.Username != "" {
		joinURL = "https://t.me/" + strings.TrimPrefix(info.Username, "@")
	}

	return entity.RequiredChannel{Title: info.Title, JoinURL: joinURL}
}
