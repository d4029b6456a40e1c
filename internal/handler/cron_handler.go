package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusevents/internal/reminder"
	"campusevents/pkg/util"
)

// CronSecretHeader carries the shared secret set by the external scheduler.
const CronSecretHeader = "X-Cron-Secret"

// DispatchRunner is the piece of the pipeline the handler drives.
type DispatchRunner interface {
	Run(ctx context.Context) (*reminder.Summary, error)
}

// CronHandler exposes the reminder pipeline to the external scheduler.
type CronHandler struct {
	runner  DispatchRunner
	deduper *util.Deduper
	secret  string
	logger  *zap.Logger
}

func NewCronHandler(runner DispatchRunner, deduper *util.Deduper, secret string, logger *zap.Logger) *CronHandler {
	return &CronHandler{runner: runner, deduper: deduper, secret: secret, logger: logger}
}

// Run handles GET/POST /api/cron/reminders. Registered via router.Any so
// other methods can answer 405 instead of gin's default 404.
func (h *CronHandler) Run(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
		return
	}

	given := c.GetHeader(CronSecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Drop overlapping ticks early. The atomic claim would keep them disjoint
	// anyway; this just avoids burning the deadline budget twice.
	if h.deduper != nil {
		tick := time.Now().UTC().Format("200601021504")
		if !h.deduper.AcquireOnce(c.Request.Context(), "cron_reminders", tick) {
			c.JSON(http.StatusOK, gin.H{"duplicate": true})
			return
		}
	}

	summary, err := h.runner.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("Reminder dispatch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}
