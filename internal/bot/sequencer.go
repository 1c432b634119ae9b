package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sequencer hands updates to the handler with per-user FIFO order: one user's
// updates are processed strictly in arrival order, distinct users run
// concurrently. A user's worker goroutine lives only while that user has
// updates pending.
type sequencer struct {
	handle func(ctx context.Context, update tgbotapi.Update)

	mu      sync.Mutex
	pending map[int64][]tgbotapi.Update
}

func newSequencer(handle func(ctx context.Context, update tgbotapi.Update)) *sequencer {
	return &sequencer{
		handle:  handle,
		pending: make(map[int64][]tgbotapi.Update),
	}
}

// dispatch enqueues the update for its user and starts a worker if none is
// draining that user's queue. Updates without an identifiable user carry no
// admission event and are dropped.
func (s *sequencer) dispatch(ctx context.Context, update tgbotapi.Update) {
	userID := updateUserID(update)
	if userID == 0 {
		return
	}

	s.mu.Lock()
	queue, running := s.pending[userID]
	s.pending[userID] = append(queue, update)
	s.mu.Unlock()

	if !running {
		go s.drain(ctx, userID)
	}
}

// drain processes one user's queue to exhaustion. The map entry doubles as
// the worker-running flag: it is removed only once the queue is empty, under
// the same lock dispatch appends with, so no update can slip in unhandled.
func (s *sequencer) drain(ctx context.Context, userID int64) {
	for {
		s.mu.Lock()
		queue := s.pending[userID]
		if len(queue) == 0 {
			delete(s.pending, userID)
			s.mu.Unlock()
			return
		}
		update := queue[0]
		s.pending[userID] = queue[1:]
		s.mu.Unlock()

		s.handle(ctx, update)
	}
}

func updateUserID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}
