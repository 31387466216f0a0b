package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-rsvp/internal/auth"
	"ms-rsvp/internal/checkin"
	"ms-rsvp/internal/checkin/checkin_api"
	checkin_db "ms-rsvp/internal/checkin/db"
	"ms-rsvp/internal/checkin/qr"
	"ms-rsvp/internal/config"
	"ms-rsvp/internal/database/migrations"
	"ms-rsvp/internal/kafka"
	"ms-rsvp/internal/logger"
	"ms-rsvp/internal/rsvp"
	rsvp_db "ms-rsvp/internal/rsvp/db"
	rediswrap "ms-rsvp/internal/rsvp/redis"
	"ms-rsvp/internal/rsvp/rsvp_api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err == nil {
			err = sqldb.Ping()
		}
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting RSVP Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx := context.Background()
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		log.Info("DATABASE", "Migrations applied")
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		defer producer.Close()
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.RequiredTopics(cfg.Kafka.TopicPrefix)); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, domain events will not be published")
	}

	eventLock := rediswrap.NewRedis(redisClient)
	eventLock.TTL = cfg.Admission.LockTTL

	var rsvpPublisher rsvp.Publisher
	var checkinPublisher checkin.Publisher
	if producer != nil {
		rsvpPublisher = producer
		checkinPublisher = producer
	}

	rsvpService := rsvp.NewRsvpService(
		rsvp_db.New(bunDB),
		eventLock,
		rsvpPublisher,
		cfg.Admission.MaxAttempts,
		cfg.Admission.RetryBackoff,
	)
	checkinService := checkin.NewCheckinService(checkin_db.New(bunDB), checkinPublisher)

	rsvpHandler := &rsvp_api.Handler{
		RsvpService: rsvpService,
		Logger:      log,
	}
	checkinHandler := &checkin_api.Handler{
		CheckinService: checkinService,
		QR:             qr.NewGenerator(),
		Logger:         log,
	}

	var authMiddleware func(http.Handler) http.Handler
	if cfg.Auth.OIDCIssuer == "" {
		log.Warn("AUTH", "OIDC_ISSUER not set, accepting unverified dev tokens")
		authMiddleware = auth.DevMiddleware()
	} else {
		var err error
		authMiddleware, err = auth.Middleware(cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("Auth middleware setup failed: %v", err))
		}
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/api/events/{eventId}/rsvps/summary", rsvpHandler.GetSummary)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Route("/api/events/{eventId}", func(r chi.Router) {
			r.Get("/rsvp", rsvpHandler.GetStatus)
			r.Post("/rsvp", rsvpHandler.CreateRsvp)
			r.Delete("/rsvp", rsvpHandler.CancelRsvp)

			r.Post("/checkin-codes", checkinHandler.CreateCode)
			r.Get("/checkin-codes", checkinHandler.ListCodes)
		})

		r.Route("/api/checkin", func(r chi.Router) {
			r.Post("/", checkinHandler.Redeem)
			r.Get("/codes/{code}", checkinHandler.ValidateCode)
			r.Get("/codes/{code}/qr", checkinHandler.CodeQR)
		})
	})
	log.Info("ROUTER", "RSVP and check-in routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("RSVP Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "RSVP Service shutdown complete")
	}
}
