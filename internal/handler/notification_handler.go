package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusevents/internal/repository"
)

// NotificationHandler serves the signed-in user's notification mirror.
type NotificationHandler struct {
	repo   *repository.NotificationRepository
	logger *zap.Logger
}

func NewNotificationHandler(repo *repository.NotificationRepository, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{repo: repo, logger: logger}
}

// List returns the newest 20 notifications plus the unread count.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString("user_id")

	notifications, err := h.repo.ListLatest(c.Request.Context(), userID, 20)
	if err != nil {
		h.logger.Error("Failed to list notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}

	unread, err := h.repo.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to count unread notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "unread": unread})
}

// UnreadCount returns just the unread badge number.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := c.GetString("user_id")

	unread, err := h.repo.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to count unread notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": unread})
}

// MarkRead flags one notification read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetString("user_id")
	id := c.Param("id")

	if err := h.repo.MarkRead(c.Request.Context(), id, userID); err != nil {
		h.logger.Error("Failed to mark notification read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead flags all of the user's notifications read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetString("user_id")

	if err := h.repo.MarkAllRead(c.Request.Context(), userID); err != nil {
		h.logger.Error("Failed to mark notifications read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	c.Status(http.StatusNoContent)
}
