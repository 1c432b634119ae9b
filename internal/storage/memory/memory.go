// Package memory is an in-process Storage used by tests and local runs
// without postgres. It enforces the same invariants as the SQL schema:
// the (user_id, poll_id) unique constraint and atomic poll activation.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/14kear/voteGateBot/internal/entity"
	"github.com/14kear/voteGateBot/internal/storage"
)

type voteKey struct {
	userID int64
	pollID int64
}

type Storage struct {
	mu         sync.Mutex
	users      map[int64]entity.User
	userOrder  []int64
	polls      map[int64]entity.Poll
	pollOrder  []int64
	votes      map[voteKey]entity.Vote
	nextPollID int64
	nextVoteID int64
}

func New() *Storage {
	return &Storage{
		users: make(map[int64]entity.User),
		polls: make(map[int64]entity.Poll),
		votes: make(map[voteKey]entity.Vote),
	}
}

func (s *Storage) SaveUser(_ context.Context, user entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return nil
	}

	user.CreatedAt = time.Now()
	s.users[user.ID] = user
	s.userOrder = append(s.userOrder, user.ID)
	return nil
}

func (s *Storage) SaveUserPhone(_ context.Context, userID int64, encryptedPhone []byte) error {
	const op = "storage.memory.SaveUserPhone"

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	user.PhoneEncrypted = encryptedPhone
	s.users[userID] = user
	return nil
}

func (s *Storage) GetUser(_ context.Context, userID int64) (entity.User, error) {
	const op = "storage.memory.GetUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return entity.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return user, nil
}

func (s *Storage) GetUserIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, len(s.userOrder))
	copy(ids, s.userOrder)
	return ids, nil
}

func (s *Storage) SavePoll(_ context.Context, question string, options []entity.PollOption, adminID int64, active bool) (entity.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if active {
		s.deactivateAllLocked()
	}

	s.nextPollID++
	poll := entity.Poll{
		ID:        s.nextPollID,
		Question:  question,
		Options:   append([]entity.PollOption(nil), options...),
		IsActive:  active,
		CreatedBy: adminID,
		CreatedAt: time.Now(),
	}
	s.polls[poll.ID] = poll
	s.pollOrder = append(s.pollOrder, poll.ID)
	return poll, nil
}

func (s *Storage) GetPollByID(_ context.Context, id int64) (entity.Poll, error) {
	const op = "storage.memory.GetPollByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[id]
	if !ok {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, storage.ErrPollNotFound)
	}
	return poll, nil
}

func (s *Storage) GetActivePoll(_ context.Context) (entity.Poll, error) {
	const op = "storage.memory.GetActivePoll"

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.pollOrder) - 1; i >= 0; i-- {
		if poll := s.polls[s.pollOrder[i]]; poll.IsActive {
			return poll, nil
		}
	}
	return entity.Poll{}, fmt.Errorf("%s: %w", op, storage.ErrPollNotFound)
}

func (s *Storage) GetPolls(_ context.Context) ([]entity.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	polls := make([]entity.Poll, 0, len(s.pollOrder))
	for i := len(s.pollOrder) - 1; i >= 0; i-- {
		polls = append(polls, s.polls[s.pollOrder[i]])
	}
	return polls, nil
}

func (s *Storage) SetPollActive(_ context.Context, pollID int64, active bool) (entity.Poll, error) {
	const op = "storage.memory.SetPollActive"

	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[pollID]
	if !ok {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, storage.ErrPollNotFound)
	}

	if active {
		s.deactivateAllLocked()
	}

	poll.IsActive = active
	s.polls[pollID] = poll
	return poll, nil
}

func (s *Storage) HasVoted(_ context.Context, userID, pollID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.votes[voteKey{userID: userID, pollID: pollID}]
	return ok, nil
}

func (s *Storage) SaveVote(_ context.Context, userID, pollID int64, optionKey string) (entity.Vote, error) {
	const op = "storage.memory.SaveVote"

	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey{userID: userID, pollID: pollID}
	if _, ok := s.votes[key]; ok {
		return entity.Vote{}, fmt.Errorf("%s: %w", op, storage.ErrDuplicateVote)
	}

	s.nextVoteID++
	vote := entity.Vote{
		ID:        s.nextVoteID,
		UserID:    userID,
		PollID:    pollID,
		OptionKey: optionKey,
		CreatedAt: time.Now(),
	}
	s.votes[key] = vote
	return vote, nil
}

func (s *Storage) GetPollResults(_ context.Context, pollID int64) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make(map[string]int64)
	for key, vote := range s.votes {
		if key.pollID == pollID {
			results[vote.OptionKey]++
		}
	}
	return results, nil
}

func (s *Storage) deactivateAllLocked() {
	for id, poll := range s.polls {
		if poll.IsActive {
			poll.IsActive = false
			s.polls[id] = poll
		}
	}
}
