// Package admission runs the per-user gate a voter must pass: mandatory
// channels, contact capture, captcha, then a single vote. Sessions live in
// the TTL key/value store, so a user who goes silent simply expires.
//
// The machine returns outcome values; rendering them into chat messages is
// the transport layer's job.
package admission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	sl "github.com/14kear/sso-prettyslog/slogpretty/errors"

	"github.com/14kear/voteGateBot/internal/entity"
	"github.com/14kear/voteGateBot/internal/kv"
	"github.com/14kear/voteGateBot/internal/services/voting"
	"github.com/14kear/voteGateBot/internal/storage"
)

type State string

const (
	StateAwaitingSubscription State = "awaiting_subscription"
	StateAwaitingContact      State = "awaiting_contact"
	StateAwaitingCaptcha      State = "awaiting_captcha"
	StateAwaitingVoteChoice   State = "awaiting_vote_choice"
)

type Outcome int

const (
	// OutcomeSubscribeRequired: user must join the listed channels first.
	OutcomeSubscribeRequired Outcome = iota
	// OutcomeContactRequested: prompt for the phone contact.
	OutcomeContactRequested
	// OutcomeCaptchaIssued: a fresh challenge question awaits an answer.
	OutcomeCaptchaIssued
	// OutcomeCaptchaRetry: wrong answer, attempts remain.
	OutcomeCaptchaRetry
	// OutcomeBlocked: captcha attempts exhausted, session cleared.
	OutcomeBlocked
	// OutcomeRestartRequired: no live session/challenge, user must /start.
	OutcomeRestartRequired
	// OutcomeNoActivePoll: admission passed but nothing to vote on.
	OutcomeNoActivePoll
	// OutcomePollClosed: the targeted poll is inactive or gone.
	OutcomePollClosed
	// OutcomeAlreadyVoted: terminal, vote exists for this user and poll.
	OutcomeAlreadyVoted
	// OutcomeChoicePrompt: show the active poll's options.
	OutcomeChoicePrompt
	// OutcomeVoteAccepted: terminal, vote recorded.
	OutcomeVoteAccepted
)

type Result struct {
	Outcome      Outcome
	Channels     []entity.RequiredChannel
	Question     string
	AttemptsLeft int
	BlockedFor   time.Duration
	Poll         entity.Poll
	OptionKey    string
}

// DeepLinkVote is the pre-selected target carried by a shared voting link.
type DeepLinkVote struct {
	PollID    int64  `json:"poll_id"`
	OptionKey string `json:"option_key"`
}

const deepLinkTag = "vote"

// ParseDeepLink parses start-command args of the form vote_<pollID>_<key>.
func ParseDeepLink(args string) (*DeepLinkVote, bool) {
	parts := strings.Split(args, "_")
	if len(parts) != 3 || parts[0] != deepLinkTag {
		return nil, false
	}

	pollID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || parts[2] == "" {
		return nil, false
	}

	return &DeepLinkVote{PollID: pollID, OptionKey: parts[2]}, true
}

type session struct {
	State    State         `json:"state"`
	DeepLink *DeepLinkVote `json:"deep_link,omitempty"`
}

type Gate interface {
	Unsatisfied(ctx context.Context, userID int64) ([]entity.RequiredChannel, error)
}

type Captcha interface {
	Issue(ctx context.Context, userID int64) (string, error)
	Verify(ctx context.Context, userID int64, answer string) (bool, error)
	HasChallenge(ctx context.Context, userID int64) (bool, error)
	IsBlocked(ctx context.Context, userID int64) (bool, error)
	AttemptsLeft(ctx context.Context, userID int64) (int, error)
	BlockDuration() time.Duration
}

type Ledger interface {
	ActivePoll(ctx context.Context) (entity.Poll, error)
	PollByID(ctx context.Context, pollID int64) (entity.Poll, error)
	HasVoted(ctx context.Context, userID, pollID int64) (bool, error)
	RecordVote(ctx context.Context, userID, pollID int64, optionKey string) (entity.Vote, error)
}

type UserStorage interface {
	SaveUser(ctx context.Context, user entity.User) error
	SaveUserPhone(ctx context.Context, userID int64, encryptedPhone []byte) error
}

type Sealer interface {
	Encrypt(plaintext string) ([]byte, error)
}

type Machine struct {
	log        *slog.Logger
	gate       Gate
	captcha    Captcha
	ledger     Ledger
	users      UserStorage
	sealer     Sealer
	sessions   kv.Store
	sessionTTL time.Duration
}

func NewMachine(
	log *slog.Logger,
	gate Gate,
	captcha Captcha,
	ledger Ledger,
	users UserStorage,
	sealer Sealer,
	sessions kv.Store,
	sessionTTL time.Duration,
) *Machine {
	return &Machine{
		log:        log,
		gate:       gate,
		captcha:    captcha,
		ledger:     ledger,
		users:      users,
		sealer:     sealer,
		sessions:   sessions,
		sessionTTL: sessionTTL,
	}
}

// Start enters the machine for a user, clearing any previous session first
// (a restart command is unconditional). With a deep link the contact and
// captcha steps are skipped: either the vote is attempted immediately or the
// pending pair is parked behind the subscription gate.
func (m *Machine) Start(ctx context.Context, user entity.User, deepLink *DeepLinkVote) (Result, error) {
	const op = "admission.Start"

	log := m.log.With(slog.String("op", op), slog.Int64("userID", user.ID))

	if err := m.clearSession(ctx, user.ID); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := m.users.SaveUser(ctx, user); err != nil {
		log.Error("failed to save user", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	unsatisfied, err := m.gate.Unsatisfied(ctx, user.ID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	if deepLink != nil {
		if len(unsatisfied) > 0 {
			if err := m.saveSession(ctx, user.ID, session{State: StateAwaitingSubscription, DeepLink: deepLink}); err != nil {
				return Result{}, fmt.Errorf("%s: %w", op, err)
			}
			return Result{Outcome: OutcomeSubscribeRequired, Channels: unsatisfied}, nil
		}
		return m.attemptVote(ctx, user.ID, deepLink.PollID, deepLink.OptionKey)
	}

	if len(unsatisfied) > 0 {
		if err := m.saveSession(ctx, user.ID, session{State: StateAwaitingSubscription}); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		return Result{Outcome: OutcomeSubscribeRequired, Channels: unsatisfied}, nil
	}

	if err := m.saveSession(ctx, user.ID, session{State: StateAwaitingContact}); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return Result{Outcome: OutcomeContactRequested}, nil
}

// RecheckSubscription handles the "I joined" button. Still unsatisfied is a
// self-loop; satisfied resumes a parked deep-link vote or moves to contact
// capture.
func (m *Machine) RecheckSubscription(ctx context.Context, userID int64) (Result, error) {
	const op = "admission.RecheckSubscription"

	sess, ok, err := m.loadSession(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok || sess.State != StateAwaitingSubscription {
		return Result{Outcome: OutcomeRestartRequired}, nil
	}

	unsatisfied, err := m.gate.Unsatisfied(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	if len(unsatisfied) > 0 {
		// Refresh the idle TTL, state unchanged.
		if err := m.saveSession(ctx, userID, sess); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		return Result{Outcome: OutcomeSubscribeRequired, Channels: unsatisfied}, nil
	}

	if sess.DeepLink != nil {
		if err := m.clearSession(ctx, userID); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		return m.attemptVote(ctx, userID, sess.DeepLink.PollID, sess.DeepLink.OptionKey)
	}

	if err := m.saveSession(ctx, userID, session{State: StateAwaitingContact}); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return Result{Outcome: OutcomeContactRequested}, nil
}

// SubmitContact stores the encrypted phone and issues the captcha.
func (m *Machine) SubmitContact(ctx context.Context, userID int64, phone string) (Result, error) {
	const op = "admission.SubmitContact"

	log := m.log.With(slog.String("op", op), slog.Int64("userID", userID))

	sess, ok, err := m.loadSession(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok || sess.State != StateAwaitingContact {
		return Result{Outcome: OutcomeRestartRequired}, nil
	}

	blocked, err := m.captcha.IsBlocked(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if blocked {
		if err := m.clearSession(ctx, userID); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		return Result{Outcome: OutcomeBlocked, BlockedFor: m.captcha.BlockDuration()}, nil
	}

	if strings.TrimSpace(phone) == "" {
		return Result{Outcome: OutcomeContactRequested}, nil
	}

	encrypted, err := m.sealer.Encrypt(phone)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := m.users.SaveUserPhone(ctx, userID, encrypted); err != nil {
		log.Error("failed to save phone", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	question, err := m.captcha.Issue(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := m.saveSession(ctx, userID, session{State: StateAwaitingCaptcha}); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return Result{Outcome: OutcomeCaptchaIssued, Question: question}, nil
}

// SubmitCaptcha verifies the answer and, on success, routes to the active
// poll's choice prompt.
func (m *Machine) SubmitCaptcha(ctx context.Context, userID int64, answer string) (Result, error) {
	const op = "admission.SubmitCaptcha"

	sess, ok, err := m.loadSession(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok || sess.State != StateAwaitingCaptcha {
		return Result{Outcome: OutcomeRestartRequired}, nil
	}

	blocked, err := m.captcha.IsBlocked(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if blocked {
		if err := m.clearSession(ctx, userID); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		return Result{Outcome: OutcomeBlocked, BlockedFor: m.captcha.BlockDuration()}, nil
	}

	live, err := m.captcha.HasChallenge(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if !live {
		// Challenge expired before the answer arrived.
		if err := m.clearSession(ctx, userID); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		return Result{Outcome: OutcomeRestartRequired}, nil
	}

	correct, err := m.captcha.Verify(ctx, userID, answer)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	if !correct {
		blocked, err := m.captcha.IsBlocked(ctx, userID)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		if blocked {
			if err := m.clearSession(ctx, userID); err != nil {
				return Result{}, fmt.Errorf("%s: %w", op, err)
			}
			return Result{Outcome: OutcomeBlocked, BlockedFor: m.captcha.BlockDuration()}, nil
		}

		left, err := m.captcha.AttemptsLeft(ctx, userID)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		return Result{Outcome: OutcomeCaptchaRetry, AttemptsLeft: left}, nil
	}

	poll, err := m.ledger.ActivePoll(ctx)
	if err != nil {
		if errors.Is(err, voting.ErrNoActivePoll) {
			if err := m.clearSession(ctx, userID); err != nil {
				return Result{}, fmt.Errorf("%s: %w", op, err)
			}
			return Result{Outcome: OutcomeNoActivePoll}, nil
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	voted, err := m.ledger.HasVoted(ctx, userID, poll.ID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if voted {
		if err := m.clearSession(ctx, userID); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		return Result{Outcome: OutcomeAlreadyVoted, Poll: poll}, nil
	}

	if err := m.saveSession(ctx, userID, session{State: StateAwaitingVoteChoice}); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return Result{Outcome: OutcomeChoicePrompt, Poll: poll}, nil
}

// SubmitChoice records the chosen option. Channels are re-checked first: a
// user who left a mandatory channel after entry is re-prompted to subscribe
// and stays in this state.
func (m *Machine) SubmitChoice(ctx context.Context, userID, pollID int64, optionKey string) (Result, error) {
	const op = "admission.SubmitChoice"

	sess, ok, err := m.loadSession(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok || sess.State != StateAwaitingVoteChoice {
		return Result{Outcome: OutcomeRestartRequired}, nil
	}

	unsatisfied, err := m.gate.Unsatisfied(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(unsatisfied) > 0 {
		if err := m.saveSession(ctx, userID, sess); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		return Result{Outcome: OutcomeSubscribeRequired, Channels: unsatisfied}, nil
	}

	if err := m.clearSession(ctx, userID); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return m.attemptVote(ctx, userID, pollID, optionKey)
}

// CurrentState routes free-form messages: the transport layer needs to know
// whether a text is a contact reprompt or a captcha answer.
func (m *Machine) CurrentState(ctx context.Context, userID int64) (State, bool, error) {
	const op = "admission.CurrentState"

	sess, ok, err := m.loadSession(ctx, userID)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return sess.State, ok, nil
}

// Cancel clears the session unconditionally.
func (m *Machine) Cancel(ctx context.Context, userID int64) error {
	const op = "admission.Cancel"

	if err := m.clearSession(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// attemptVote is the single shared vote path: both the full admission flow
// and the deep-link shortcut end here with identical checks.
func (m *Machine) attemptVote(ctx context.Context, userID, pollID int64, optionKey string) (Result, error) {
	const op = "admission.attemptVote"

	poll, err := m.ledger.PollByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			return Result{Outcome: OutcomePollClosed}, nil
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	_, err = m.ledger.RecordVote(ctx, userID, pollID, optionKey)
	if err != nil {
		switch {
		case errors.Is(err, voting.ErrPollNotActive):
			return Result{Outcome: OutcomePollClosed, Poll: poll}, nil
		case errors.Is(err, voting.ErrAlreadyVoted):
			return Result{Outcome: OutcomeAlreadyVoted, Poll: poll}, nil
		case errors.Is(err, voting.ErrUnknownOption):
			return Result{Outcome: OutcomeRestartRequired}, nil
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	return Result{Outcome: OutcomeVoteAccepted, Poll: poll, OptionKey: optionKey}, nil
}

func (m *Machine) loadSession(ctx context.Context, userID int64) (session, bool, error) {
	raw, err := m.sessions.Get(ctx, sessionKey(userID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return session{}, false, nil
		}
		return session{}, false, err
	}

	var sess session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return session{}, false, err
	}
	return sess, true, nil
}

func (m *Machine) saveSession(ctx context.Context, userID int64, sess session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return m.sessions.Set(ctx, sessionKey(userID), string(raw), m.sessionTTL)
}

func (m *Machine) clearSession(ctx context.Context, userID int64) error {
	return m.sessions.Delete(ctx, sessionKey(userID))
}

func sessionKey(userID int64) string { return fmt.Sprintf("session:%d", userID) }
