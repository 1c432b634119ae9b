package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	sl "github.com/14kear/sso-prettyslog/slogpretty/errors"

	"github.com/14kear/voteGateBot/internal/services/broadcast"
	"github.com/14kear/voteGateBot/internal/transport"
)

// UserDirectory lists every user who has ever started the bot.
type UserDirectory interface {
	GetUserIDs(ctx context.Context) ([]int64, error)
}

type BroadcastHandler struct {
	// runCtx outlives the HTTP request and scopes detached runs to the
	// process lifecycle: shutting down cancels an in-flight broadcast
	// between sends.
	runCtx     context.Context
	log        *slog.Logger
	dispatcher *broadcast.Dispatcher
	users      UserDirectory
}

func NewBroadcastHandler(runCtx context.Context, log *slog.Logger, dispatcher *broadcast.Dispatcher, users UserDirectory) *BroadcastHandler {
	return &BroadcastHandler{runCtx: runCtx, log: log, dispatcher: dispatcher, users: users}
}

type BroadcastRequest struct {
	Text    string `json:"text"`
	PhotoID string `json:"photo_id"`
}

// Broadcast snapshots the recipient list and kicks the run off in the
// background; the pacing makes large runs far too slow to hold the request
// open for. 409 while a previous run is still draining.
func (h *BroadcastHandler) Broadcast(c *gin.Context) {
	const op = "handlers.Broadcast"

	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if req.Text == "" && req.PhotoID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text or photo_id is required"})
		return
	}

	if h.dispatcher.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "broadcast already in flight"})
		return
	}

	userIDs, err := h.users.GetUserIDs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load recipients"})
		return
	}

	payload := transport.Payload{Text: req.Text, PhotoID: req.PhotoID}

	go func() {
		report, err := h.dispatcher.Run(h.runCtx, payload, userIDs)
		if err != nil {
			h.log.Error("broadcast run failed", slog.String("op", op), sl.Err(err))
			return
		}
		h.log.Info("broadcast report",
			slog.String("op", op),
			slog.Int("success", report.Success),
			slog.Int("failure", report.Failure),
		)
	}()

	c.JSON(http.StatusAccepted, gin.H{"targets": len(userIDs)})
}
