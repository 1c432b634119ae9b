package admission

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/14kear/voteGateBot/internal/entity"
	"github.com/14kear/voteGateBot/internal/kv/memstore"
	"github.com/14kear/voteGateBot/internal/lib/crypto"
	"github.com/14kear/voteGateBot/internal/services/captcha"
	"github.com/14kear/voteGateBot/internal/services/gate"
	"github.com/14kear/voteGateBot/internal/services/mocks"
	"github.com/14kear/voteGateBot/internal/services/voting"
	"github.com/14kear/voteGateBot/internal/storage/memory"
	"github.com/14kear/voteGateBot/internal/transport"
)

const (
	captchaTimeout       = time.Minute
	captchaMaxAttempts   = 3
	captchaBlockDuration = 5 * time.Minute
	sessionTTL           = 30 * time.Minute
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	machine *Machine
	ledger  *voting.Ledger
	storage *memory.Storage
	client  *mocks.MockClient
	clock   *fakeClock
	sealer  *crypto.Sealer
}

func newFixture(t *testing.T, channels []string) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := memstore.NewWithClock(clock.Now)
	storage := memory.New()
	client := mocks.NewMockClient(ctrl)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	sealer, err := crypto.New(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)

	gateService := gate.New(log, client, channels)
	captchaService := captcha.New(log, store, captchaTimeout, captchaMaxAttempts, captchaBlockDuration)
	ledger := voting.NewLedger(log, storage, storage)
	machine := NewMachine(log, gateService, captchaService, ledger, storage, sealer, store, sessionTTL)

	return &fixture{
		machine: machine,
		ledger:  ledger,
		storage: storage,
		client:  client,
		clock:   clock,
		sealer:  sealer,
	}
}

func (f *fixture) createActivePoll(t *testing.T) entity.Poll {
	t.Helper()

	poll, err := f.ledger.CreatePoll(context.Background(), "Favorite color?", []string{"Red", "Blue"}, 1, true)
	require.NoError(t, err)
	return poll
}

func solve(t *testing.T, question string) string {
	t.Helper()

	var a, b int
	var op string
	_, err := fmt.Sscanf(question, "%d %s %d = ?", &a, &op, &b)
	require.NoError(t, err)

	switch op {
	case "+":
		return fmt.Sprintf("%d", a+b)
	case "-":
		return fmt.Sprintf("%d", a-b)
	case "*":
		return fmt.Sprintf("%d", a*b)
	}
	t.Fatalf("unexpected operator %q", op)
	return ""
}

func testUser(id int64) entity.User {
	return entity.User{ID: id, Username: "voter", FirstName: "Test"}
}

// passCaptcha walks a user from SubmitContact through a solved captcha.
func (f *fixture) passCaptcha(t *testing.T, userID int64) Result {
	t.Helper()
	ctx := context.Background()

	result, err := f.machine.SubmitContact(ctx, userID, "+15550001122")
	require.NoError(t, err)
	require.Equal(t, OutcomeCaptchaIssued, result.Outcome)

	result, err = f.machine.SubmitCaptcha(ctx, userID, solve(t, result.Question))
	require.NoError(t, err)
	return result
}

func TestMachine_FullAdmissionFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	poll := f.createActivePoll(t)

	result, err := f.machine.Start(ctx, testUser(1), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeContactRequested, result.Outcome)

	state, ok, err := f.machine.CurrentState(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateAwaitingContact, state)

	result = f.passCaptcha(t, 1)
	require.Equal(t, OutcomeChoicePrompt, result.Outcome)
	assert.Equal(t, poll.ID, result.Poll.ID)

	result, err = f.machine.SubmitChoice(ctx, 1, poll.ID, "1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeVoteAccepted, result.Outcome)
	assert.Equal(t, "1", result.OptionKey)

	// Session is gone, the flow is terminal.
	_, ok, err = f.machine.CurrentState(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	voted, err := f.ledger.HasVoted(ctx, 1, poll.ID)
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestMachine_StoresEncryptedPhone(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.createActivePoll(t)

	_, err := f.machine.Start(ctx, testUser(1), nil)
	require.NoError(t, err)

	const phone = "+15550001122"
	result, err := f.machine.SubmitContact(ctx, 1, phone)
	require.NoError(t, err)
	require.Equal(t, OutcomeCaptchaIssued, result.Outcome)

	user, err := f.storage.GetUser(ctx, 1)
	require.NoError(t, err)
	require.NotEmpty(t, user.PhoneEncrypted)
	assert.NotContains(t, string(user.PhoneEncrypted), phone)

	decrypted, err := f.sealer.Decrypt(user.PhoneEncrypted)
	require.NoError(t, err)
	assert.Equal(t, phone, decrypted)
}

func TestMachine_SubscriptionGate(t *testing.T) {
	f := newFixture(t, []string{"@news"})
	ctx := context.Background()
	f.createActivePoll(t)

	f.client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).Return(transport.MemberStatusLeft, nil)
	f.client.EXPECT().GetChannelInfo(gomock.Any(), "@news").
		Return(transport.ChannelInfo{Title: "News", Username: "news"}, nil)

	result, err := f.machine.Start(ctx, testUser(1), nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeSubscribeRequired, result.Outcome)
	require.Len(t, result.Channels, 1)
	assert.Equal(t, "News", result.Channels[0].Title)

	// Still not joined: self-loop.
	f.client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).Return(transport.MemberStatusLeft, nil)
	f.client.EXPECT().GetChannelInfo(gomock.Any(), "@news").
		Return(transport.ChannelInfo{Title: "News", Username: "news"}, nil)

	result, err = f.machine.RecheckSubscription(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubscribeRequired, result.Outcome)

	// Joined now: proceeds to contact capture.
	f.client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).Return(transport.MemberStatusMember, nil)

	result, err = f.machine.RecheckSubscription(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeContactRequested, result.Outcome)
}

func TestMachine_SubscriptionCheckFailureDoesNotAdmit(t *testing.T) {
	f := newFixture(t, []string{"@news"})
	ctx := context.Background()

	f.client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).
		Return(transport.MemberStatus(""), fmt.Errorf("gateway timeout"))

	_, err := f.machine.Start(ctx, testUser(1), nil)
	require.Error(t, err)
}

func TestMachine_CaptchaBlockClearsSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.createActivePoll(t)

	_, err := f.machine.Start(ctx, testUser(1), nil)
	require.NoError(t, err)

	result, err := f.machine.SubmitContact(ctx, 1, "+15550001122")
	require.NoError(t, err)
	require.Equal(t, OutcomeCaptchaIssued, result.Outcome)

	for i := 0; i < captchaMaxAttempts-1; i++ {
		result, err = f.machine.SubmitCaptcha(ctx, 1, "wrong")
		require.NoError(t, err)
		assert.Equal(t, OutcomeCaptchaRetry, result.Outcome)
		assert.Equal(t, captchaMaxAttempts-i-1, result.AttemptsLeft)
	}

	result, err = f.machine.SubmitCaptcha(ctx, 1, "wrong")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, result.Outcome)
	assert.Equal(t, captchaBlockDuration, result.BlockedFor)

	// Session is cleared, further answers demand a restart.
	result, err = f.machine.SubmitCaptcha(ctx, 1, "wrong")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestartRequired, result.Outcome)

	// Restart while blocked parks the user at the contact step and bounces.
	result, err = f.machine.Start(ctx, testUser(1), nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeContactRequested, result.Outcome)

	result, err = f.machine.SubmitContact(ctx, 1, "+15550001122")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, result.Outcome)

	// Block expires with time.
	f.clock.Advance(captchaBlockDuration + time.Second)

	result, err = f.machine.Start(ctx, testUser(1), nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeContactRequested, result.Outcome)

	result = f.passCaptcha(t, 1)
	assert.Equal(t, OutcomeChoicePrompt, result.Outcome)
}

func TestMachine_CaptchaExpiryRequiresRestart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.createActivePoll(t)

	_, err := f.machine.Start(ctx, testUser(1), nil)
	require.NoError(t, err)

	result, err := f.machine.SubmitContact(ctx, 1, "+15550001122")
	require.NoError(t, err)
	question := result.Question

	f.clock.Advance(captchaTimeout + time.Second)

	result, err = f.machine.SubmitCaptcha(ctx, 1, solve(t, question))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestartRequired, result.Outcome)
}

func TestMachine_SessionExpiry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.createActivePoll(t)

	_, err := f.machine.Start(ctx, testUser(1), nil)
	require.NoError(t, err)

	f.clock.Advance(sessionTTL + time.Second)

	_, ok, err := f.machine.CurrentState(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	result, err := f.machine.SubmitContact(ctx, 1, "+15550001122")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestartRequired, result.Outcome)
}

func TestMachine_NoActivePoll(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.machine.Start(ctx, testUser(1), nil)
	require.NoError(t, err)

	result := f.passCaptcha(t, 1)
	assert.Equal(t, OutcomeNoActivePoll, result.Outcome)

	_, ok, err := f.machine.CurrentState(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMachine_AlreadyVotedShortCircuits(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	poll := f.createActivePoll(t)

	_, err := f.ledger.RecordVote(ctx, 1, poll.ID, "1")
	require.NoError(t, err)

	_, err = f.machine.Start(ctx, testUser(1), nil)
	require.NoError(t, err)

	result := f.passCaptcha(t, 1)
	assert.Equal(t, OutcomeAlreadyVoted, result.Outcome)
}

func TestMachine_ChoiceRechecksSubscription(t *testing.T) {
	f := newFixture(t, []string{"@news"})
	ctx := context.Background()
	poll := f.createActivePoll(t)

	f.client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).Return(transport.MemberStatusMember, nil)

	_, err := f.machine.Start(ctx, testUser(1), nil)
	require.NoError(t, err)

	result := f.passCaptcha(t, 1)
	require.Equal(t, OutcomeChoicePrompt, result.Outcome)

	// Left the channel between the prompt and the tap.
	f.client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).Return(transport.MemberStatusLeft, nil)
	f.client.EXPECT().GetChannelInfo(gomock.Any(), "@news").
		Return(transport.ChannelInfo{Title: "News"}, nil)

	result, err = f.machine.SubmitChoice(ctx, 1, poll.ID, "1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubscribeRequired, result.Outcome)

	voted, err := f.ledger.HasVoted(ctx, 1, poll.ID)
	require.NoError(t, err)
	assert.False(t, voted)

	// Re-joined: the same tap goes through.
	f.client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).Return(transport.MemberStatusMember, nil)

	result, err = f.machine.SubmitChoice(ctx, 1, poll.ID, "1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeVoteAccepted, result.Outcome)
}

func TestMachine_DeepLinkVotesImmediately(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	poll := f.createActivePoll(t)

	result, err := f.machine.Start(ctx, testUser(1), &DeepLinkVote{PollID: poll.ID, OptionKey: "2"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeVoteAccepted, result.Outcome)
	assert.Equal(t, "2", result.OptionKey)

	// A second deep-link tap is a duplicate.
	result, err = f.machine.Start(ctx, testUser(1), &DeepLinkVote{PollID: poll.ID, OptionKey: "1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyVoted, result.Outcome)
}

func TestMachine_DeepLinkParkedBehindGate(t *testing.T) {
	f := newFixture(t, []string{"@news"})
	ctx := context.Background()
	poll := f.createActivePoll(t)

	f.client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).Return(transport.MemberStatusLeft, nil)
	f.client.EXPECT().GetChannelInfo(gomock.Any(), "@news").
		Return(transport.ChannelInfo{Title: "News"}, nil)

	result, err := f.machine.Start(ctx, testUser(1), &DeepLinkVote{PollID: poll.ID, OptionKey: "1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSubscribeRequired, result.Outcome)

	// Joining resumes the parked vote without contact or captcha.
	f.client.EXPECT().GetMembership(gomock.Any(), "@news", int64(1)).Return(transport.MemberStatusMember, nil)

	result, err = f.machine.RecheckSubscription(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVoteAccepted, result.Outcome)
	assert.Equal(t, "1", result.OptionKey)
}

func TestMachine_DeepLinkClosedPoll(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	poll := f.createActivePoll(t)

	_, err := f.ledger.SetPollActive(ctx, poll.ID, false)
	require.NoError(t, err)

	result, err := f.machine.Start(ctx, testUser(1), &DeepLinkVote{PollID: poll.ID, OptionKey: "1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomePollClosed, result.Outcome)

	result, err = f.machine.Start(ctx, testUser(1), &DeepLinkVote{PollID: 404, OptionKey: "1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomePollClosed, result.Outcome)
}

func TestMachine_StartUpsertsUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.machine.Start(ctx, testUser(42), nil)
	require.NoError(t, err)

	ids, err := f.storage.GetUserIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, int64(42))

	// Restart does not duplicate.
	_, err = f.machine.Start(ctx, testUser(42), nil)
	require.NoError(t, err)

	ids, err = f.storage.GetUserIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestParseDeepLink(t *testing.T) {
	tests := []struct {
		args string
		want *DeepLinkVote
	}{
		{"vote_12_3", &DeepLinkVote{PollID: 12, OptionKey: "3"}},
		{"vote_12_", nil},
		{"vote_abc_1", nil},
		{"poll_12_1", nil},
		{"vote_12", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got, ok := ParseDeepLink(tt.args)
		if tt.want == nil {
			assert.False(t, ok, "args %q", tt.args)
			continue
		}
		require.True(t, ok, "args %q", tt.args)
		assert.Equal(t, tt.want, got)
	}
}
