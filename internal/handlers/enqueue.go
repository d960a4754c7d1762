package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"delivery-service/internal/models"
	"delivery-service/internal/service"
)

// EnqueueHandler serves the internal producer-facing endpoints.
type EnqueueHandler struct {
	queues   QueueService
	sessions SessionService
}

// NewEnqueueHandler builds an EnqueueHandler.
func NewEnqueueHandler(queues QueueService, sessions SessionService) *EnqueueHandler {
	return &EnqueueHandler{queues: queues, sessions: sessions}
}

// EnqueueMessage appends a stored chat message to the recipient's queue.
// Called by the chat send path after the message is durable.
func (h *EnqueueHandler) EnqueueMessage(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req struct {
		MessageID int64 `json:"message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.queues.EnqueueMessage(c.Request.Context(), userID, req.MessageID); err != nil {
		c.JSON(storageStatus(err), gin.H{"error": "failed to enqueue message"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// EnqueueSystem appends a system notice to the user's queue.
func (h *EnqueueHandler) EnqueueSystem(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req service.NoticeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notice, err := h.queues.EnqueueSystem(c.Request.Context(), userID, req)
	if err != nil {
		if errors.Is(err, service.ErrEmptyContent) || errors.Is(err, service.ErrInvalidKind) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(storageStatus(err), gin.H{"error": "failed to enqueue notice"})
		return
	}

	c.JSON(http.StatusAccepted, notice)
}

// UserSessions answers presence queries from other backend components.
func (h *EnqueueHandler) UserSessions(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.ActiveFor(c.Request.Context(), userID)
	if err != nil {
		c.JSON(storageStatus(err), gin.H{"error": "failed to load sessions"})
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "online": len(sessions) > 0})
}

func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return userID, true
}
