// Package broadcast fans a payload out to the known user set, sequentially,
// under the external per-account send-rate limit.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	sl "github.com/14kear/sso-prettyslog/slogpretty/errors"

	"github.com/14kear/voteGateBot/internal/transport"
)

// ErrInFlight: a run is already active. One broadcast at a time keeps the
// combined send rate within the transport's limit.
var ErrInFlight = errors.New("broadcast already in flight")

type Sender interface {
	Send(ctx context.Context, userID int64, payload transport.Payload) error
}

type Report struct {
	Success int
	Failure int
}

type Dispatcher struct {
	log       *slog.Logger
	sender    Sender
	sendPause time.Duration
	running   atomic.Bool
	sleep     func(ctx context.Context, d time.Duration)
}

func NewDispatcher(log *slog.Logger, sender Sender, sendPause time.Duration) *Dispatcher {
	return &Dispatcher{
		log:       log,
		sender:    sender,
		sendPause: sendPause,
		sleep:     sleepCtx,
	}
}

func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// Run sends payload to every id in order. A rate-limit response is honored by
// sleeping exactly the server-given duration and retrying that recipient once;
// the retry's failure, of any kind, counts as a failure — never a loop.
// Forbidden and bad-request responses are permanent for the recipient in this
// run and are not retried. Cancelling ctx stops the loop between sends and
// returns the partial tally with ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, payload transport.Payload, userIDs []int64) (Report, error) {
	const op = "broadcast.Run"

	if !d.running.CompareAndSwap(false, true) {
		return Report{}, fmt.Errorf("%s: %w", op, ErrInFlight)
	}
	defer d.running.Store(false)

	log := d.log.With(slog.String("op", op), slog.Int("targets", len(userIDs)))
	log.Info("broadcast started")

	var report Report
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			log.Warn("broadcast cancelled", slog.Int("success", report.Success), slog.Int("failure", report.Failure))
			return report, fmt.Errorf("%s: %w", op, err)
		}

		err := d.sender.Send(ctx, userID, payload)

		var rateLimited *transport.RateLimitedError
		if errors.As(err, &rateLimited) {
			log.Warn("rate limited", slog.Int64("userID", userID), slog.Duration("retryAfter", rateLimited.RetryAfter))
			d.sleep(ctx, rateLimited.RetryAfter)
			err = d.sender.Send(ctx, userID, payload)
		}

		switch {
		case err == nil:
			report.Success++
			d.sleep(ctx, d.sendPause)
		case errors.Is(err, transport.ErrForbidden), errors.Is(err, transport.ErrBadRequest):
			report.Failure++
		default:
			log.Error("failed to send", slog.Int64("userID", userID), sl.Err(err))
			report.Failure++
		}
	}

	log.Info("broadcast finished", slog.Int("success", report.Success), slog.Int("failure", report.Failure))
	return report, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
