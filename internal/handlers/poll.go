package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"delivery-service/internal/models"
	"delivery-service/internal/observability"
	"delivery-service/internal/repositories"
	"delivery-service/internal/service"
)

// QueueService is the queue manager surface the handlers consume.
type QueueService interface {
	EnqueueMessage(ctx context.Context, userID, messageID int64) error
	EnqueueSystem(ctx context.Context, userID int64, input service.NoticeInput) (models.SystemNotice, error)
	Drain(ctx context.Context, userID int64) (service.DrainResult, error)
}

// SessionService is the session tracker surface the handlers consume.
type SessionService interface {
	Touch(ctx context.Context, sessionID string, userID int64, info models.ClientInfo) error
	ActiveFor(ctx context.Context, userID int64) ([]models.Session, error)
}

const (
	maxPollWait      = 30 * time.Second
	pollWaitInterval = time.Second
)

// PollHandler serves the client-facing delivery endpoints.
type PollHandler struct {
	queues       QueueService
	sessions     SessionService
	waitInterval time.Duration
}

// NewPollHandler builds a PollHandler.
func NewPollHandler(queues QueueService, sessions SessionService) *PollHandler {
	return &PollHandler{queues: queues, sessions: sessions, waitInterval: pollWaitInterval}
}

// Poll refreshes the caller's session and returns all pending items,
// marking them delivered. With ?wait=<seconds> it blocks until an item
// arrives, the wait elapses, or the client disconnects.
func (h *PollHandler) Poll(c *gin.Context) {
	userID := c.GetInt64("userID")

	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info := observability.ClientInfoFromRequest(c.Request)
	if err := h.sessions.Touch(c.Request.Context(), req.SessionID, userID, info); err != nil {
		if errors.Is(err, repositories.ErrSessionOwnerMismatch) || errors.Is(err, repositories.ErrSessionExpired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session"})
			return
		}
		// Session tracking is best-effort, never a gate on delivery.
		log.Printf("poll: session touch degraded user_id=%d: %v", userID, err)
	}

	wait := parseWait(c.Query("wait"))
	deadline := time.Now().Add(wait)
	for {
		result, err := h.queues.Drain(c.Request.Context(), userID)
		if err != nil {
			c.JSON(storageStatus(err), gin.H{"error": "failed to drain queue"})
			return
		}

		if !result.Empty() || time.Now().Add(h.waitInterval).After(deadline) {
			c.JSON(http.StatusOK, result)
			return
		}

		select {
		case <-c.Request.Context().Done():
			return
		case <-time.After(h.waitInterval):
		}
	}
}

// ListSessions returns the caller's active sessions.
func (h *PollHandler) ListSessions(c *gin.Context) {
	userID := c.GetInt64("userID")

	sessions, err := h.sessions.ActiveFor(c.Request.Context(), userID)
	if err != nil {
		c.JSON(storageStatus(err), gin.H{"error": "failed to load sessions"})
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func parseWait(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0
	}
	wait := time.Duration(seconds) * time.Second
	if wait > maxPollWait {
		return maxPollWait
	}
	return wait
}

func storageStatus(err error) int {
	if errors.Is(err, repositories.ErrStorageUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
