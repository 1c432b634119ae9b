package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/14kear/voteGateBot/internal/entity"
	"github.com/14kear/voteGateBot/internal/services/voting"
	"github.com/14kear/voteGateBot/internal/storage"
)

type PollHandler struct {
	ledger      *voting.Ledger
	botUsername string
}

func NewPollHandler(ledger *voting.Ledger, botUsername string) *PollHandler {
	return &PollHandler{ledger: ledger, botUsername: botUsername}
}

type CreatePollRequest struct {
	Question string   `json:"question" binding:"required"`
	Options  []string `json:"options"  binding:"required,min=2"`
	Activate bool     `json:"activate"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type PollOptionResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type PollResponse struct {
	ID        int64                `json:"id"`
	Question  string               `json:"question"`
	Options   []PollOptionResponse `json:"options"`
	IsActive  bool                 `json:"is_active"`
	CreatedBy int64                `json:"created_by"`
	CreatedAt time.Time            `json:"created_at"`
}

func toPollResponse(poll entity.Poll) PollResponse {
	options := make([]PollOptionResponse, 0, len(poll.Options))
	for _, opt := range poll.Options {
		options = append(options, PollOptionResponse{Key: opt.Key, Label: opt.Label})
	}
	return PollResponse{
		ID:        poll.ID,
		Question:  poll.Question,
		Options:   options,
		IsActive:  poll.IsActive,
		CreatedBy: poll.CreatedBy,
		CreatedAt: poll.CreatedAt,
	}
}

func (h *PollHandler) CreatePoll(c *gin.Context) {
	var req CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	// Console polls have no Telegram author, creator 0 marks them as such.
	poll, err := h.ledger.CreatePoll(c.Request.Context(), req.Question, req.Options, 0, req.Activate)
	if err != nil {
		if errors.Is(err, voting.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create poll"})
		return
	}

	c.JSON(http.StatusCreated, toPollResponse(poll))
}

func (h *PollHandler) GetPolls(c *gin.Context) {
	polls, err := h.ledger.Polls(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load polls"})
		return
	}

	resp := make([]PollResponse, 0, len(polls))
	for _, poll := range polls {
		resp = append(resp, toPollResponse(poll))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PollHandler) GetPollByID(c *gin.Context) {
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}

	poll, err := h.ledger.PollByID(c.Request.Context(), pollID)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "poll not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load poll"})
		return
	}

	c.JSON(http.StatusOK, toPollResponse(poll))
}

func (h *PollHandler) SetPollActive(c *gin.Context) {
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	poll, err := h.ledger.SetPollActive(c.Request.Context(), pollID, *req.Active)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "poll not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change poll status"})
		return
	}

	c.JSON(http.StatusOK, toPollResponse(poll))
}

type OptionResultResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type ResultsResponse struct {
	PollID   int64                  `json:"poll_id"`
	Question string                 `json:"question"`
	Total    int64                  `json:"total"`
	Options  []OptionResultResponse `json:"options"`
}

// GetPollResults merges raw counts against the poll's option list, so keys
// nobody voted for show up with a zero.
func (h *PollHandler) GetPollResults(c *gin.Context) {
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}

	poll, err := h.ledger.PollByID(c.Request.Context(), pollID)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "poll not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load poll"})
		return
	}

	counts, err := h.ledger.Results(c.Request.Context(), pollID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load results"})
		return
	}

	resp := ResultsResponse{PollID: poll.ID, Question: poll.Question}
	for _, opt := range poll.Options {
		count := counts[opt.Key]
		resp.Total += count
		resp.Options = append(resp.Options, OptionResultResponse{Key: opt.Key, Label: opt.Label, Count: count})
	}

	c.JSON(http.StatusOK, resp)
}

type PollLinkResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// GetPollLinks returns per-option deep links for promo posts; each link drops
// the follower straight into the deep-link admission path.
func (h *PollHandler) GetPollLinks(c *gin.Context) {
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}

	poll, err := h.ledger.PollByID(c.Request.Context(), pollID)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "poll not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load poll"})
		return
	}

	links := make([]PollLinkResponse, 0, len(poll.Options))
	for _, opt := range poll.Options {
		links = append(links, PollLinkResponse{
			Key:   opt.Key,
			Label: opt.Label,
			URL:   fmt.Sprintf("https://t.me/%s?start=vote_%d_%s", h.botUsername, poll.ID, opt.Key),
		})
	}

	c.JSON(http.StatusOK, links)
}

func pollIDParam(c *gin.Context) (int64, bool) {
	pollID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poll id"})
		return 0, false
	}
	return pollID, true
}
