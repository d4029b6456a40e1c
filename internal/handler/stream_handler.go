package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusevents/internal/notify"
)

// StreamHandler bridges a ChannelSession onto a server-sent events response:
// one session per connection, torn down when the client goes away.
type StreamHandler struct {
	feed    notify.Feed
	fetcher notify.Fetcher
	logger  *zap.Logger
}

func NewStreamHandler(feed notify.Feed, fetcher notify.Fetcher, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{feed: feed, fetcher: fetcher, logger: logger}
}

// Stream handles GET /api/notifications/stream.
func (h *StreamHandler) Stream(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	userID := c.GetString("user_id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	snapshots := make(chan *notify.Snapshot, 1)
	session := notify.NewChannelSession(userID, h.feed, h.fetcher, h.logger, func(snap *notify.Snapshot) {
		select {
		case snapshots <- snap:
		default:
			// Writer is behind; the next snapshot supersedes this one.
		}
	})
	session.Start()
	session.ScheduleRefresh()
	defer session.Close()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case snap := <-snapshots:
			data, err := json.Marshal(snap)
			if err != nil {
				h.logger.Error("Failed to marshal snapshot", zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
