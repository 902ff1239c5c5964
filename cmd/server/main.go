package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booking-service/config"
	"booking-service/internal/api"
	"booking-service/internal/broker"
	"booking-service/internal/gateway"
	"booking-service/internal/redisclient"
	"booking-service/internal/service"
	"booking-service/internal/store"
	"booking-service/internal/util"
	"booking-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting booking service")

	tp, err := util.InitTracer("booking-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicBooking)
	defer producer.Close()
	logger.Info("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	gatewayClient := gateway.NewClient(
		cfg.Gateway.BaseURL,
		cfg.Gateway.KeyID,
		cfg.Gateway.KeySecret,
		time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second,
	)

	taxPolicy := service.TaxPolicy{
		ThresholdPaise: cfg.Tax.ThresholdPaise,
		LowRateBP:      cfg.Tax.LowRateBP,
		HighRateBP:     cfg.Tax.HighRateBP,
	}

	bookingService := service.NewBookingService(db, redisClient, eventPublisher,
		time.Duration(cfg.Business.HoldTTLSeconds)*time.Second)
	paymentService := service.NewPaymentService(db, redisClient, gatewayClient, taxPolicy)
	reconciler := service.NewSettlementReconciler(db, eventPublisher, cfg.Gateway.WebhookSecret)
	notifications := service.NewNotificationService()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	notificationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicBooking, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(notificationConsumer, notifications)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			logger.Warn("Notification worker stopped", zap.Error(err))
		}
	}()

	if cfg.Business.ExpirySweepMinutes > 0 {
		go runExpirySweep(workerCtx, db,
			time.Duration(cfg.Business.ExpirySweepMinutes)*time.Minute,
			time.Duration(cfg.Business.PendingExpiryHours)*time.Hour)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(bookingService, paymentService, reconciler, cfg.Gateway.AppBaseURL)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	notificationWorker.Stop()

	logger.Info("Server exited")
}

// runExpirySweep periodically fails PENDING transactions whose gateway
// callback never arrived, releasing their bookings
func runExpirySweep(ctx context.Context, db *store.Store, interval, maxAge time.Duration) {
	logger := util.GetLogger()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			expired, err := db.ExpireStalePending(sweepCtx, time.Now().Add(-maxAge))
			cancel()
			if err != nil {
				logger.Warn("Expiry sweep failed", zap.Error(err))
				continue
			}
			if expired > 0 {
				util.TransactionsExpiredTotal.Add(float64(expired))
				logger.Info("Expired stale pending transactions", zap.Int64("count", expired))
			}
		}
	}
}
