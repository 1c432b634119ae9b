// Package captcha issues and verifies the arithmetic anti-automation
// challenge. It is a low-friction human check, not a cryptographic gate.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	sl "github.com/14kear/sso-prettyslog/slogpretty/errors"

	"github.com/14kear/voteGateBot/internal/kv"
)

// attemptsGrace keeps the attempt counter alive slightly longer than the
// answer so a verify at the timeout boundary still sees it.
const attemptsGrace = 10 * time.Second

type Service struct {
	log           *slog.Logger
	store         kv.Store
	timeout       time.Duration
	maxAttempts   int
	blockDuration time.Duration
}

func New(log *slog.Logger, store kv.Store, timeout time.Duration, maxAttempts int, blockDuration time.Duration) *Service {
	return &Service{
		log:           log,
		store:         store,
		timeout:       timeout,
		maxAttempts:   maxAttempts,
		blockDuration: blockDuration,
	}
}

// Issue generates a fresh challenge for the user, replacing any previous one,
// and returns the printable question.
func (s *Service) Issue(ctx context.Context, userID int64) (string, error) {
	const op = "captcha.Issue"

	question, answer := generate()

	if err := s.store.Set(ctx, answerKey(userID), answer, s.timeout); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.Set(ctx, attemptsKey(userID), "0", s.timeout+attemptsGrace); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return question, nil
}

// Verify checks the submitted answer. With no live challenge it returns false
// without touching state: the caller must re-issue. A wrong answer increments
// the attempt counter and, once maxAttempts is reached, sets the block record
// and clears the challenge. The bool alone does not distinguish the branches;
// callers use IsBlocked/AttemptsLeft for messaging.
func (s *Service) Verify(ctx context.Context, userID int64, answer string) (bool, error) {
	const op = "captcha.Verify"

	stored, err := s.store.Get(ctx, answerKey(userID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if strings.TrimSpace(answer) == stored {
		if err := s.store.Delete(ctx, answerKey(userID), attemptsKey(userID)); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		return true, nil
	}

	attempts, err := s.store.Incr(ctx, attemptsKey(userID))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if attempts >= int64(s.maxAttempts) {
		s.log.Warn("captcha attempts exhausted, blocking user", slog.Int64("userID", userID))

		if err := s.store.Set(ctx, blockKey(userID), "blocked", s.blockDuration); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.store.Delete(ctx, answerKey(userID), attemptsKey(userID)); err != nil {
			s.log.Error("failed to clear challenge state", sl.Err(err))
		}
	}

	return false, nil
}

// HasChallenge reports whether a live (unexpired) challenge exists.
func (s *Service) HasChallenge(ctx context.Context, userID int64) (bool, error) {
	const op = "captcha.HasChallenge"

	_, err := s.store.Get(ctx, answerKey(userID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// IsBlocked treats an elapsed block record as absent; the store expires it.
func (s *Service) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	const op = "captcha.IsBlocked"

	_, err := s.store.Get(ctx, blockKey(userID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

func (s *Service) AttemptsLeft(ctx context.Context, userID int64) (int, error) {
	const op = "captcha.AttemptsLeft"

	value, err := s.store.Get(ctx, attemptsKey(userID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return s.maxAttempts, nil
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	made, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return s.maxAttempts - made, nil
}

func (s *Service) BlockDuration() time.Duration {
	return s.blockDuration
}

// generate draws two operands in [1,10] and an operator from {+, -, *};
// subtraction uses the absolute difference so the answer is never negative.
// The larger operand is printed first, which is cosmetic only.
func generate() (question, answer string) {
	a, b := rand.IntN(10)+1, rand.IntN(10)+1

	var op string
	var result int
	switch rand.IntN(3) {
	case 0:
		op, result = "+", a+b
	case 1:
		op, result = "-", a-b
		if result < 0 {
			result = -result
		}
	default:
		op, result = "*", a*b
	}

	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}

	return fmt.Sprintf("%d %s %d = ?", hi, op, lo), strconv.Itoa(result)
}

func answerKey(userID int64) string   { return fmt.Sprintf("captcha:%d:answer", userID) }
func attemptsKey(userID int64) string { return fmt.Sprintf("captcha:%d:attempts", userID) }
func blockKey(userID int64) string    { return fmt.Sprintf("captcha_block:%d", userID) }
