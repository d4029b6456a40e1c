package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusevents/internal/repository"
)

// ReminderHandler manages a user's reminder opt-in per event.
type ReminderHandler struct {
	repo   *repository.ReminderRepository
	logger *zap.Logger
}

func NewReminderHandler(repo *repository.ReminderRepository, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{repo: repo, logger: logger}
}

// OptIn creates the 1_day and 1_hour reminder rows for the event.
func (h *ReminderHandler) OptIn(c *gin.Context) {
	userID := c.GetString("user_id")
	eventID := c.Param("id")

	if err := h.repo.CreateForUser(c.Request.Context(), userID, eventID); err != nil {
		h.logger.Error("Failed to create reminders",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create reminders"})
		return
	}
	c.Status(http.StatusCreated)
}

// OptOut removes the user's unsent reminder rows for the event.
func (h *ReminderHandler) OptOut(c *gin.Context) {
	userID := c.GetString("user_id")
	eventID := c.Param("id")

	if err := h.repo.DeleteForUser(c.Request.Context(), userID, eventID); err != nil {
		h.logger.Error("Failed to delete reminders",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete reminders"})
		return
	}
	c.Status(http.StatusNoContent)
}
