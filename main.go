package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"telehealth-server/internal/cache"
	"telehealth-server/internal/config"
	"telehealth-server/internal/events"
	"telehealth-server/internal/metrics"
	"telehealth-server/internal/middleware"
	"telehealth-server/internal/models"
	"telehealth-server/internal/repository"
	"telehealth-server/internal/routes"
	"telehealth-server/internal/services"
	"telehealth-server/internal/video"
	"telehealth-server/pkg/logging"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	tokens := cache.TokenCache(cache.Noop{})
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, join tokens will not be cached", "error", err)
		} else {
			tokens = cache.NewRedisTokenCache(client, logger)
		}
	}

	gateway, err := video.New(video.Config{
		ApplicationID: cfg.Vonage.ApplicationID,
		PrivateKey:    cfg.Vonage.PrivateKey,
		BaseURL:       cfg.Vonage.APIBaseURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("video gateway: %w", err)
	}

	publisher := events.Publisher(events.Noop{})
	if cfg.RabbitMQ.URL != "" {
		p, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Warn("rabbitmq unavailable, domain events disabled", "error", err)
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	svc := services.New(services.Deps{
		Repo:     repo,
		Video:    gateway,
		Tokens:   tokens,
		Events:   publisher,
		Metrics:  metrics.NewBookingMetrics(nil),
		Logger:   logger,
		Location: cfg.Location(),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, svc, cfg, nil)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "db_driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openRepository selects the storage backend named by DB_DRIVER.
func openRepository(ctx context.Context, cfg *config.Config, logger *logging.Logger) (repository.Repository, func(), error) {
	if strings.EqualFold(cfg.Database.Driver, "memory") {
		if cfg.IsProduction() {
			return nil, nil, errors.New("the memory driver is not allowed in production")
		}
		repo := repository.NewMemoryRepository()
		if err := seedDevUsers(ctx, repo); err != nil {
			return nil, nil, err
		}
		logger.Warn("using in-memory storage; data is lost on restart")
		return repo, func() {}, nil
	}

	db, err := models.InitDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return repository.NewGormRepository(db), func() { _ = sqlDB.Close() }, nil
}

// seedDevUsers creates one verified doctor and one patient so the memory
// driver is usable with tokens whose subjects are dev_doctor and dev_patient.
func seedDevUsers(ctx context.Context, repo repository.Repository) error {
	users := []*models.User{
		{
			ExternalID:         "dev_doctor",
			Name:               "Dr. Dev",
			Email:              "doctor@example.com",
			Role:               models.RoleDoctor,
			Specialty:          "General Practice",
			VerificationStatus: models.VerificationVerified,
		},
		{
			ExternalID:         "dev_patient",
			Name:               "Pat Dev",
			Email:              "patient@example.com",
			Role:               models.RolePatient,
			VerificationStatus: models.VerificationVerified,
			Credits:            10,
		},
	}
	for _, u := range users {
		if err := repo.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("seeding %s: %w", u.ExternalID, err)
		}
	}
	return nil
}
