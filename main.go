package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"enrollment-service/catalog"
	"enrollment-service/config"
	"enrollment-service/controllers"
	"enrollment-service/database"
	"enrollment-service/kafka"
	"enrollment-service/logger"
	"enrollment-service/middleware"
	"enrollment-service/models"
	aws_pkg "enrollment-service/pkg/aws"
	"enrollment-service/repository"
	"enrollment-service/routes"
	"enrollment-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "enrollment-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()

	// --- Logging ---
	var sink io.Writer
	cwLogs, err := aws_pkg.NewCloudWatchLogsClient(ctx, serviceName)
	if err != nil {
		log.Printf("CloudWatch Logs init failed (non-fatal): %v", err)
	} else if cwLogs.IsEnabled() {
		sink = cwLogs
	}
	zl, err := logger.New(cfg.AppEnv, sink)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	// --- Catalog ---
	cat, err := catalog.Load(cfg.CatalogFile, cfg.Currency)
	if err != nil {
		zl.Fatal("Catalog load failed", zap.Error(err))
	}
	zl.Info("Catalog loaded", zap.Int("products", len(cat.Products())), zap.String("file", cfg.CatalogFile))

	// --- Database ---
	db, err := database.ConnectPostgres(cfg.DSN(), zl, &models.Enrollment{})
	if err != nil {
		zl.Fatal("DB connection failed", zap.Error(err))
	}
	enrollmentRepo := repository.NewGormEnrollmentRepo(db)

	// --- Redis dedupe (optional) ---
	var dedupe repository.NotificationDedupe
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			zl.Warn("Redis unavailable, webhook dedupe disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			dedupe = repository.NewRedisNotificationDedupe(redisClient, repository.DefaultDedupeTTL)
		}
	}

	// --- CloudWatch metrics (non-fatal) ---
	var metrics services.MetricsRecorder
	metricsClient, err := aws_pkg.NewMetricsClient(ctx)
	if err != nil {
		zl.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
	} else if metricsClient.IsEnabled() {
		metrics = metricsClient
	}

	// --- Event bus ---
	var publisher services.EventPublisher
	switch cfg.EventBus {
	case config.EventBusSNS:
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			zl.Fatal("Failed to load AWS config", zap.Error(err))
		}
		publisher = services.NewSNSEventPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.EnrollmentSNSTopicARN)
		zl.Info("Publishing enrollment events to SNS", zap.String("topic", cfg.EnrollmentSNSTopicARN))
	case config.EventBusKafka:
		producer := kafka.NewEnrollmentEventProducer(cfg.KafkaBrokers, cfg.KafkaTopic, zl)
		defer producer.Close()
		publisher = producer
	default:
		zl.Info("Enrollment event publishing disabled")
	}

	// --- Dependency injection ---
	gateway := services.NewStripeGateway(services.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.SuccessURL(),
		CancelURL:     cfg.CancelURL(),
		Timeout:       cfg.GatewayTimeout,
	})
	settlement := services.NewSettlement(enrollmentRepo, publisher, metrics, zl)

	checkoutService := services.NewCheckoutService(cat, enrollmentRepo, gateway, cfg.GatewayTimeout, metrics, zl)
	webhookService := services.NewWebhookService(gateway, enrollmentRepo, settlement, dedupe, metrics, zl)
	verifier := services.NewSessionVerifier(enrollmentRepo, gateway, settlement, cfg.GatewayTimeout, zl)
	reader := services.NewEnrollmentReader(enrollmentRepo, zl)

	enrollmentController := controllers.NewEnrollmentController(cat, checkoutService, verifier, reader)
	webhookController := controllers.NewWebhookController(webhookService, zl)

	// --- Stale session sweeper (optional) ---
	var job *services.ReconcileJob
	if cfg.ReconcileSchedule != "" {
		job = services.NewReconcileJob(enrollmentRepo, gateway, settlement,
			cfg.ReconcileStaleAfter, cfg.ReconcileBatch, cfg.GatewayTimeout, metrics, zl)
		if err := job.Start(cfg.ReconcileSchedule); err != nil {
			zl.Fatal("Invalid RECONCILE_SCHEDULE", zap.String("schedule", cfg.ReconcileSchedule), zap.Error(err))
		}
	}

	// --- HTTP router ---
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))
	r.Use(middleware.RequestLogger(zl))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterPaymentRoutes(r, enrollmentController, webhookController, routes.Options{
		Auth: middleware.AuthConfig{
			JWTSecret:           []byte(cfg.JWTSecret),
			TrustGatewayHeaders: cfg.TrustGatewayHeaders,
		},
		RateLimiter: middleware.NewRateLimiter(rate.Every(time.Minute/60), 20, 5*time.Minute),
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})

	// --- HTTP server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zl.Info("Enrollment Service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server shutdown error", zap.Error(err))
	}

	if job != nil {
		select {
		case <-job.Stop().Done():
		case <-shutdownCtx.Done():
			zl.Warn("Reconcile job still running at shutdown")
		}
	}

	if err := database.Close(db); err != nil {
		zl.Error("Database close error", zap.Error(err))
	}

	zl.Info("Enrollment Service stopped gracefully")
}
