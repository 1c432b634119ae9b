// Package voting is the vote ledger: poll lifecycle, at-most-one-vote-per-user
// enforcement and result aggregation.
package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	sl "github.com/14kear/sso-prettyslog/slogpretty/errors"

	"github.com/14kear/voteGateBot/internal/entity"
	"github.com/14kear/voteGateBot/internal/storage"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNoActivePoll  = errors.New("no active poll")
	ErrPollNotActive = errors.New("poll is not active")
	ErrAlreadyVoted  = errors.New("user already voted in this poll")
	ErrUnknownOption = errors.New("unknown option key")
)

type PollStorage interface {
	SavePoll(ctx context.Context, question string, options []entity.PollOption, adminID int64, active bool) (entity.Poll, error)
	GetPollByID(ctx context.Context, id int64) (entity.Poll, error)
	GetActivePoll(ctx context.Context) (entity.Poll, error)
	GetPolls(ctx context.Context) ([]entity.Poll, error)
	SetPollActive(ctx context.Context, pollID int64, active bool) (entity.Poll, error)
}

type VoteStorage interface {
	SaveVote(ctx context.Context, userID, pollID int64, optionKey string) (entity.Vote, error)
	HasVoted(ctx context.Context, userID, pollID int64) (bool, error)
	GetPollResults(ctx context.Context, pollID int64) (map[string]int64, error)
}

type Ledger struct {
	log         *slog.Logger
	pollStorage PollStorage
	voteStorage VoteStorage
}

func NewLedger(log *slog.Logger, pollStorage PollStorage, voteStorage VoteStorage) *Ledger {
	return &Ledger{
		log:         log,
		pollStorage: pollStorage,
		voteStorage: voteStorage,
	}
}

// CreatePoll stores a new poll with option keys "1".."N" in the given order.
// Activation within creation is atomic against every other poll.
func (l *Ledger) CreatePoll(ctx context.Context, question string, optionLabels []string, adminID int64, makeActive bool) (entity.Poll, error) {
	const op = "voting.CreatePoll"

	log := l.log.With(slog.String("op", op), slog.Int64("adminID", adminID))

	if question == "" {
		return entity.Poll{}, fmt.Errorf("%w: question is empty", ErrValidation)
	}
	if len(optionLabels) < 2 {
		return entity.Poll{}, fmt.Errorf("%w: at least 2 options required", ErrValidation)
	}

	options := make([]entity.PollOption, 0, len(optionLabels))
	for i, label := range optionLabels {
		if label == "" {
			return entity.Poll{}, fmt.Errorf("%w: option %d is empty", ErrValidation, i+1)
		}
		options = append(options, entity.PollOption{Key: strconv.Itoa(i + 1), Label: label})
	}

	poll, err := l.pollStorage.SavePoll(ctx, question, options, adminID, makeActive)
	if err != nil {
		log.Error("failed to save poll", sl.Err(err))
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("poll created", slog.Int64("pollID", poll.ID), slog.Bool("active", poll.IsActive))
	return poll, nil
}

// SetPollActive toggles the active flag; activating one poll atomically
// deactivates all others.
func (l *Ledger) SetPollActive(ctx context.Context, pollID int64, active bool) (entity.Poll, error) {
	const op = "voting.SetPollActive"

	poll, err := l.pollStorage.SetPollActive(ctx, pollID, active)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, storage.ErrPollNotFound)
		}
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	l.log.Info("poll active flag changed", slog.Int64("pollID", pollID), slog.Bool("active", active))
	return poll, nil
}

// ActivePoll returns the most recently created active poll or ErrNoActivePoll.
func (l *Ledger) ActivePoll(ctx context.Context) (entity.Poll, error) {
	const op = "voting.ActivePoll"

	poll, err := l.pollStorage.GetActivePoll(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, ErrNoActivePoll)
		}
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (l *Ledger) PollByID(ctx context.Context, pollID int64) (entity.Poll, error) {
	const op = "voting.PollByID"

	poll, err := l.pollStorage.GetPollByID(ctx, pollID)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (l *Ledger) Polls(ctx context.Context) ([]entity.Poll, error) {
	const op = "voting.Polls"

	polls, err := l.pollStorage.GetPolls(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return polls, nil
}

func (l *Ledger) HasVoted(ctx context.Context, userID, pollID int64) (bool, error) {
	const op = "voting.HasVoted"

	voted, err := l.voteStorage.HasVoted(ctx, userID, pollID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return voted, nil
}

// RecordVote writes the user's single vote. Poll activity and duplicates are
// re-checked right before the write as a fast path; the storage uniqueness
// constraint on (userID, pollID) stays the authoritative guard, and its
// violation surfaces as ErrAlreadyVoted rather than a generic failure.
func (l *Ledger) RecordVote(ctx context.Context, userID, pollID int64, optionKey string) (entity.Vote, error) {
	const op = "voting.RecordVote"

	log := l.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("pollID", pollID))

	poll, err := l.pollStorage.GetPollByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			return entity.Vote{}, fmt.Errorf("%s: %w", op, ErrPollNotActive)
		}
		return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
	}

	if !poll.IsActive {
		return entity.Vote{}, fmt.Errorf("%s: %w", op, ErrPollNotActive)
	}

	if _, ok := poll.OptionLabel(optionKey); !ok {
		return entity.Vote{}, fmt.Errorf("%s: %w: %q", op, ErrUnknownOption, optionKey)
	}

	voted, err := l.voteStorage.HasVoted(ctx, userID, pollID)
	if err != nil {
		return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
	}
	if voted {
		return entity.Vote{}, fmt.Errorf("%s: %w", op, ErrAlreadyVoted)
	}

	vote, err := l.voteStorage.SaveVote(ctx, userID, pollID, optionKey)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateVote) {
			log.Warn("duplicate vote caught by storage constraint", sl.Err(err))
			return entity.Vote{}, fmt.Errorf("%s: %w", op, ErrAlreadyVoted)
		}
		log.Error("failed to save vote", sl.Err(err))
		return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("vote recorded", slog.String("optionKey", optionKey))
	return vote, nil
}

// Results returns vote counts grouped by option key. Keys with zero votes are
// absent; display layers merge against the poll's option list.
func (l *Ledger) Results(ctx context.Context, pollID int64) (map[string]int64, error) {
	const op = "voting.Results"

	if _, err := l.pollStorage.GetPollByID(ctx, pollID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	results, err := l.voteStorage.GetPollResults(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return results, nil
}
