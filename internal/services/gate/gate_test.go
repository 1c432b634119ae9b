package gate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/14kear/voteGateBot/internal/services/mocks"
	"github.com/14kear/voteGateBot/internal/transport"
)

func newTestService(t *testing.T, channels []string) (*Service, *mocks.MockClient) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	client := mocks.NewMockClient(ctrl)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, client, channels), client
}

func TestService_Unsatisfied_NoChannelsConfigured(t *testing.T) {
	service, _ := newTestService(t, nil)

	unsatisfied, err := service.Unsatisfied(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, unsatisfied)
}

func TestService_Unsatisfied_MemberStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    transport.MemberStatus
		satisfied bool
	}{
		{"member", transport.MemberStatusMember, true},
		{"administrator", transport.MemberStatusAdministrator, true},
		{"creator", transport.MemberStatusCreator, true},
		{"left", transport.MemberStatusLeft, false},
		{"kicked", transport.MemberStatusKicked, false},
		{"restricted", transport.MemberStatusRestricted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, client := newTestService(t, []string{"@news"})

			client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).Return(tt.status, nil)
			if !tt.satisfied {
				client.EXPECT().GetChannelInfo(gomock.Any(), "@news").
					Return(transport.ChannelInfo{Title: "News", Username: "news"}, nil)
			}

			unsatisfied, err := service.Unsatisfied(context.Background(), 1)
			require.NoError(t, err)

			if tt.satisfied {
				assert.Empty(t, unsatisfied)
			} else {
				require.Len(t, unsatisfied, 1)
				assert.Equal(t, "News", unsatisfied[0].Title)
				assert.Equal(t, "https://t.me/news", unsatisfied[0].JoinURL)
			}
		})
	}
}

func TestService_Unsatisfied_BadRequestCountsAsNotMember(t *testing.T) {
	service, client := newTestService(t, []string{"@news"})

	client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).
		Return(transport.MemberStatus(""), transport.ErrBadRequest)
	client.EXPECT().GetChannelInfo(gomock.Any(), "@news").
		Return(transport.ChannelInfo{Title: "News", InviteLink: "https://t.me/+abc"}, nil)

	unsatisfied, err := service.Unsatisfied(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, unsatisfied, 1)
	assert.Equal(t, "https://t.me/+abc", unsatisfied[0].JoinURL)
}

func TestService_Unsatisfied_TransientFailureNeverAdmits(t *testing.T) {
	service, client := newTestService(t, []string{"@news", "@updates"})

	client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).
		Return(transport.MemberStatus(""), errors.New("connection reset"))

	unsatisfied, err := service.Unsatisfied(context.Background(), 1)
	require.Error(t, err)
	assert.Nil(t, unsatisfied)
}

func TestService_Unsatisfied_InfoFailureKeepsChannelListed(t *testing.T) {
	service, client := newTestService(t, []string{"@news"})

	client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).Return(transport.MemberStatusLeft, nil)
	client.EXPECT().GetChannelInfo(gomock.Any(), "@news").
		Return(transport.ChannelInfo{}, errors.New("chat not found"))

	unsatisfied, err := service.Unsatisfied(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, unsatisfied, 1)
	assert.Equal(t, "Channel (@news)", unsatisfied[0].Title)
	assert.Empty(t, unsatisfied[0].JoinURL)
}

func TestService_Unsatisfied_PreservesConfigurationOrder(t *testing.T) {
	service, client := newTestService(t, []string{"@first", "@second"})

	client.EXPECT().GetMembership(gomock.Any(), "@first", int64(1)).Return(transport.MemberStatusLeft, nil)
	client.EXPECT().GetMembership(gomock.Any(), "@second", int64(1)).Return(transport.MemberStatusLeft, nil)
	client.EXPECT().GetChannelInfo(gomock.Any(), "@first").Return(transport.ChannelInfo{Title: "First"}, nil)
	client.EXPECT().GetChannelInfo(gomock.Any(), "@second").Return(transport.ChannelInfo{Title: "Second"}, nil)

	unsatisfied, err := service.Unsatisfied(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, unsatisfied, 2)
	assert.Equal(t, "First", unsatisfied[0].Title)
	assert.Equal(t, "Second", unsatisfied[1].Title)
}
