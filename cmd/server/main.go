package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/college-housing/internal/config"
	"github.com/iliyamo/college-housing/internal/database"
	"github.com/iliyamo/college-housing/internal/handler"
	"github.com/iliyamo/college-housing/internal/logging"
	"github.com/iliyamo/college-housing/internal/mail"
	"github.com/iliyamo/college-housing/internal/middleware"
	"github.com/iliyamo/college-housing/internal/oauth"
	"github.com/iliyamo/college-housing/internal/queue"
	"github.com/iliyamo/college-housing/internal/repository"
	"github.com/iliyamo/college-housing/internal/router"
	"github.com/iliyamo/college-housing/internal/service"
	"github.com/iliyamo/college-housing/internal/storage"
)

func main() {
	cfg := config.Load() // Load environment config
	logger := logging.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	// Redis is optional; without it caching and rate limiting pass through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn(ctx, "redis unavailable; cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	mailer, err := mail.NewSMTPMailer(cfg.Mail, logger)
	if err != nil {
		log.Fatalf("mail: %v", err)
	}
	var google oauth.Provider
	if cfg.Google.Enabled() {
		google = oauth.NewGoogle(cfg.Google)
	}

	events := queue.NewRabbitPublisher(cfg.RabbitURL)
	consumer := queue.NewConsumer(cfg.RabbitURL, cfg.EventsLog, logger)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "event consumer stopped", "err", err)
		}
	}()

	store := repository.NewMySQLStore(db)
	authSvc := service.NewAuthService(store, mailer, google, service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, logger)
	userSvc := service.NewUserService(store, logger)
	unitSvc := service.NewUnitService(store, blobs, mailer, events, logger, cfg.PublicURL)
	apptSvc := service.NewAppointmentService(store, mailer, events, logger)
	reviewSvc := service.NewReviewService(store, logger)

	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(userSvc)
	unitH := handler.NewUnitHandler(unitSvc)
	apptH := handler.NewAppointmentHandler(apptSvc)
	reviewH := handler.NewReviewHandler(reviewSvc)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(logger)
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency.String(), "request_id", v.RequestID}
			if v.Error != nil {
				args = append(args, "err", v.Error)
			}
			logger.Info(c.Request().Context(), "request", args...)
			return nil
		},
	}))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger))
	e.Use(echomw.BodyLimit("50M"))

	auth := router.Auth{Secret: cfg.JWTSecret, Users: store.Users()}
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger)
	router.RegisterRoutes(e, db) // Register application routes
	router.RegisterUsers(e, authH, userH, apptH, auth)
	router.RegisterUnits(e, unitH, apptH, reviewH, auth, cache)
	router.RegisterAdmin(e, authH, userH, unitH, auth)

	addr := ":" + cfg.Port                                                                      // Address string with port
	logger.Info(ctx, "listening", "addr", addr, "env", cfg.Env, "storage", cfg.Storage.Backend) // Print startup info

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) { // Start HTTP server
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "shutdown", "err", err)
	}
	logger.Info(shutdownCtx, "server stopped")
}
