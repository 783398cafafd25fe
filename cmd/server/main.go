package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/media"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront")

	tp, err := util.InitTracer(util.TracingOptions{
		Endpoint:    cfg.Observ.JaegerEndpoint,
		Environment: cfg.Server.Env,
		SampleRatio: cfg.Observ.TraceSampleRatio,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	records := store.NewStore(store.Paths{
		Users:    cfg.Storage.UsersFile,
		Products: cfg.Storage.ProductsFile,
		History:  cfg.Storage.HistoryFile,
	})
	if err := records.EnsureLayout(); err != nil {
		logger.Fatal("Failed to prepare data files", zap.Error(err))
	}

	images := media.NewStorage(cfg.Storage.ImagesDir)
	if err := images.EnsureDir(); err != nil {
		logger.Fatal("Failed to prepare image directory", zap.Error(err))
	}

	var integrations service.Integrations

	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		integrations.Mirror = redisClient
		integrations.Sessions = redisClient
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		integrations.Publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var archiveWorker *worker.ArchiveWorker
	if cfg.Database.URL != "" {
		archive, err := store.NewArchive(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer archive.Close()
		if err := archive.EnsureSchema(workerCtx); err != nil {
			logger.Fatal("Failed to prepare archive schema", zap.Error(err))
		}
		logger.Info("Sales archive connected")

		if len(cfg.Kafka.Brokers) > 0 {
			consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
			archiveWorker = worker.NewArchiveWorker(consumer, archive)
			go func() {
				if err := archiveWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Archive worker stopped", zap.Error(err))
				}
			}()
		} else {
			logger.Warn("Sales archive configured without Kafka brokers; purchases will not be archived")
		}
	}

	state := service.NewState()
	authService := service.NewAuthService(state, records, images, integrations, service.AuthOptions{
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		BcryptCost:        cfg.Auth.BcryptCost,
		SessionTTL:        cfg.Auth.TokenTTL,
	})
	catalogService := service.NewCatalogService(state, records, images, integrations)
	cartService := service.NewCartService(state, integrations)
	checkoutService := service.NewCheckoutService(state, records, integrations)
	reportService := service.NewReportService(records, cfg.Business.TopProductsLimit)

	warning, err := catalogService.Load(workerCtx)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}
	if warning != nil {
		logger.Warn("Products file was replaced with the default catalog", zap.Error(warning))
	}

	scheduler := worker.NewScheduler(catalogService, reportService, cfg.Business.StockSyncInterval, cfg.Business.DailyReportAt)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Auth:     authService,
		Catalog:  catalogService,
		Cart:     cartService,
		Checkout: checkoutService,
		Reports:  reportService,
		Images:   images,
	}, api.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), cfg.Auth.AdminUsers, cfg.Server.CORSOrigins)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	scheduler.Stop()
	workerCancel()
	if archiveWorker != nil {
		archiveWorker.Stop()
	}

	// releases any cart still held so the products file matches what was sold
	authService.Logout(shutdownCtx)

	logger.Info("Server exited")
}
