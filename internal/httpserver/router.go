package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusevents/internal/handler"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	db *pgxpool.Pool,
	cronHandler *handler.CronHandler,
	notificationHandler *handler.NotificationHandler,
	reminderHandler *handler.ReminderHandler,
	streamHandler *handler.StreamHandler,
	jwtSecret string,
) *Router {
	r := gin.Default()

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Scheduler trigger; the handler answers 405 for other methods itself.
	r.Any("/api/cron/reminders", cronHandler.Run)

	// User-facing API
	api := r.Group("/api")
	api.Use(AuthMiddleware(jwtSecret))
	{
		api.GET("/notifications", notificationHandler.List)
		api.GET("/notifications/unread_count", notificationHandler.UnreadCount)
		api.GET("/notifications/stream", streamHandler.Stream)
		api.POST("/notifications/:id/read", notificationHandler.MarkRead)
		api.POST("/notifications/read_all", notificationHandler.MarkAllRead)
		api.POST("/events/:id/reminders", reminderHandler.OptIn)
		api.DELETE("/events/:id/reminders", reminderHandler.OptOut)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
