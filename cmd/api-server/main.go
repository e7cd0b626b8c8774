package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"

	"github.com/mediscanner/api/pkg/common/config"
	"github.com/mediscanner/api/pkg/common/database"
	"github.com/mediscanner/api/pkg/common/kafka"
	"github.com/mediscanner/api/pkg/common/logger"
	"github.com/mediscanner/api/pkg/extraction"
	"github.com/mediscanner/api/pkg/gateway/auth"
	"github.com/mediscanner/api/pkg/gateway/middleware"
	"github.com/mediscanner/api/pkg/gateway/routes"
	"github.com/mediscanner/api/pkg/identity"
	"github.com/mediscanner/api/pkg/prescription"
	"github.com/mediscanner/api/pkg/storage"
)

const maxImageBytes = 20 << 20

func main() {
	logger.Init()
	cfg := config.Load()
	ctx := context.Background()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			Release:     routes.ServiceVersion,
		}); err != nil {
			logger.Log.WithError(err).Warn("Sentry not initialized")
		}
		defer sentry.Flush(2 * time.Second)
	}

	tokens, err := auth.NewJWTManager(cfg.SecretKey, cfg.Algorithm, cfg.TokenIssuer, cfg.AccessTokenTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid token configuration")
	}

	// Prescriptions
	mongoDB, err := database.OpenMongo(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	records := prescription.NewRepository(mongoDB.Database)
	if err := records.EnsureIndexes(ctx); err != nil {
		logger.Log.WithError(err).Warn("Failed to create medical record indexes")
	}

	// Accounts
	db, err := database.OpenPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}
	users := identity.NewRepository(db)
	if err := users.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate account tables")
	}
	redisClient := database.OpenRedis(ctx, cfg)
	accounts := identity.NewService(users, identity.NewRedisSessionCache(redisClient, cfg.SessionTTL))

	var events prescription.EventPublisher
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaPrescriptionTopic)
		events = producer
	} else {
		logger.Log.Info("KAFKA_BROKERS not set; prescription events disabled")
	}

	uploads := prescription.NewService(
		prescription.NewValidator(prescription.DefaultExtensions),
		prescription.NewFetcher(cfg.ImageFetchTimeout, cfg.ImageFetchAttempts, maxImageBytes),
		extraction.NewProcessor(extraction.NewClient(extraction.ConfigFrom(cfg))),
		records,
		events,
	)

	var objects storage.ObjectStore
	if storeCfg := storage.ConfigFrom(cfg); storeCfg.Enabled() {
		s3Store, err := storage.NewS3Store(ctx, storeCfg)
		if err != nil {
			logger.Log.WithError(err).Warn("Object storage unavailable")
		} else {
			objects = s3Store
		}
	}

	authenticate := middleware.Authenticate(tokens, accounts)

	// Setup router
	router := mux.NewRouter()

	// Middleware
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	routes.NewSystemHandler(mongoDB).Register(router)
	routes.NewAuthHandler(accounts, tokens, authenticate).Register(router)
	prescription.NewHTTPHandler(uploads, authenticate, cfg.MaxRequestBody).Register(router)
	storage.NewHTTPHandler(objects, authenticate).Register(router)

	// Server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("MediScanner API started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down MediScanner API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Log.WithError(err).Warn("Failed to close Kafka producer")
		}
	}
	if err := redisClient.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close Redis client")
	}
	if err := database.ClosePostgres(db); err != nil {
		logger.Log.WithError(err).Warn("Failed to close Postgres")
	}
	if err := mongoDB.Close(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("Failed to close MongoDB")
	}

	logger.Log.Info("MediScanner API stopped")
}
