package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	mqcontracts "campusevents/contracts/mq"
	"campusevents/internal/config"
	"campusevents/internal/handler"
	"campusevents/internal/httpserver"
	"campusevents/internal/mailer"
	"campusevents/internal/notify"
	"campusevents/internal/reminder"
	"campusevents/internal/repository"
	"campusevents/pkg/db"
	"campusevents/pkg/logger"
	"campusevents/pkg/mq"
	"campusevents/pkg/redis"
	"campusevents/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger("reminderd")
	defer log.Sync()

	log.Info("Starting reminderd...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("mq_url", cfg.MQ.URL),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis
	rdb, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()

	// MQ
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Repositories
	reminderRepo := repository.NewReminderRepository(dbConn, log)
	notificationRepo := repository.NewNotificationRepository(dbConn, log)

	// Reminder pipeline
	mailClient := mailer.NewResendClient(cfg.Mail)
	dispatcher := reminder.NewDispatcher(reminderRepo, mailClient, log).
		WithPublisher(publisher)
	deduper := util.NewDeduper(rdb, 5*time.Minute, log)

	// Realtime notification plumbing
	feed := notify.NewRedisFeed(rdb, log)
	fetcher := notify.NewRepoFetcher(notificationRepo)
	fanout := notify.NewFanout(notificationRepo, func(ctx context.Context, userID string) error {
		return notify.PublishChange(ctx, rdb, userID)
	}, log)

	consumer, err := mq.NewConsumer(cfg.MQ.URL, "reminder.sent.q", mqcontracts.RoutingKeyReminderSent, log)
	if err != nil {
		log.Fatal("Failed to init MQ consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(fanout.Handle)

	go func() {
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("reminder.sent consumer failed", zap.Error(err))
		}
	}()

	// HTTP
	cronHandler := handler.NewCronHandler(dispatcher, deduper, cfg.Cron.Secret, log)
	notificationHandler := handler.NewNotificationHandler(notificationRepo, log)
	reminderHandler := handler.NewReminderHandler(reminderRepo, log)
	streamHandler := handler.NewStreamHandler(feed, fetcher, log)

	router := httpserver.NewRouter(dbConn, cronHandler, notificationHandler, reminderHandler, streamHandler, cfg.JWT.Secret)
	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("reminderd is running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down reminderd...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("reminderd shutdown complete")
}
