package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"quarterdeck-booking/internal/auth"
	"quarterdeck-booking/internal/booking"
	"quarterdeck-booking/internal/booking/booking_api"
	bookingdb "quarterdeck-booking/internal/booking/db"
	"quarterdeck-booking/internal/booking/pass"
	bookingredis "quarterdeck-booking/internal/booking/redis"
	"quarterdeck-booking/internal/catalog"
	"quarterdeck-booking/internal/catalog/catalog_api"
	catalogdb "quarterdeck-booking/internal/catalog/db"
	"quarterdeck-booking/internal/config"
	"quarterdeck-booking/internal/database"
	"quarterdeck-booking/internal/database/migrations"
	"quarterdeck-booking/internal/kafka"
	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/notify"
	notifydb "quarterdeck-booking/internal/notify/db"
	"quarterdeck-booking/internal/outbox"
	outboxdb "quarterdeck-booking/internal/outbox/db"
	"quarterdeck-booking/internal/outbox/outbox_api"
	"quarterdeck-booking/internal/utils"
)

const (
	facilityCacheTTL  = time.Minute
	principalCacheTTL = 2 * time.Minute
)

// requestLogger logs every request through the service logger.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", ww.Status()), time.Since(start).String())
		})
	}
}

func healthHandler(bunDB *bun.DB, redisClient *redis.Client, outboxStore *outboxdb.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]interface{}{"database": "ok"}
		code := http.StatusOK
		if err := bunDB.PingContext(ctx); err != nil {
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if redisClient != nil {
			status["redis"] = "ok"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				status["redis"] = err.Error()
			}
		}
		if counts, err := outboxStore.CountByStatus(ctx); err == nil {
			status["outbox"] = counts
		}

		if code != http.StatusOK {
			utils.WriteJSON(w, code, utils.APIResponse{Success: false, Message: "Unhealthy", Data: status, Timestamp: time.Now()})
			return
		}
		utils.WriteJSON(w, code, utils.SuccessResponse("Healthy", status))
	}
}

func buildVerifier(ctx context.Context, cfg config.AuthConfig, redisClient *redis.Client, log *logger.Logger) (auth.TokenVerifier, error) {
	var verifier auth.TokenVerifier
	switch {
	case cfg.OIDCIssuer != "":
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return nil, err
		}
		log.Info("AUTH", fmt.Sprintf("Verifying bearer tokens against OIDC issuer %s", cfg.OIDCIssuer))
		verifier = v
	case cfg.JWTSecret != "":
		v, err := auth.NewHMACVerifier(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		log.Info("AUTH", "Verifying bearer tokens with the shared HMAC secret")
		verifier = v
	default:
		return nil, fmt.Errorf("neither OIDC_ISSUER nor AUTH_JWT_SECRET is set")
	}

	if redisClient != nil {
		verifier = auth.NewCachingVerifier(verifier, redisClient, principalCacheTTL, log)
	}
	return verifier, nil
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Booking Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Unknown FACILITY_TIMEZONE %q: %v", cfg.Booking.Timezone, err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
	bunDB, err := database.OpenPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		// The runner shares bunDB's *sql.DB, so it is deliberately not closed here.
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Failed to run migrations: %v", err))
		}
	}

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = database.ConnectRedis(ctx, cfg.Redis.Addr, log)
		if err != nil {
			log.Warn("REDIS", fmt.Sprintf("Running without Redis (slot holds and caches disabled): %v", err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// --- Stores and services ---
	bookingStore := &bookingdb.DB{Bun: bunDB}
	catalogStore := &catalogdb.DB{Bun: bunDB}
	outboxStore := &outboxdb.DB{Bun: bunDB}
	notifyStore := &notifydb.DB{Bun: bunDB}

	var facilityCache *catalog.FacilityCache
	var locker booking.SlotLocker
	if redisClient != nil {
		facilityCache = catalog.NewFacilityCache(redisClient, facilityCacheTTL)
		locker = bookingredis.NewRedis(redisClient, log, cfg.Redis.HoldTTL, cfg.Redis.HoldWait)
	}
	catalogService := catalog.NewService(catalogStore, facilityCache, log)

	bookingService := booking.NewService(bookingStore, catalogService, catalogService, locker, booking.Options{
		Location:           loc,
		DefaultAdvanceDays: cfg.Booking.DefaultAdvanceDays,
		Topics:             cfg.Kafka.Topics,
	})

	var passes booking_api.PassIssuer
	if cfg.Pass.Secret != "" {
		gen, err := pass.NewGenerator(cfg.Pass.Secret)
		if err != nil {
			log.Fatal("CONFIG", fmt.Sprintf("Invalid PASS_SECRET_KEY: %v", err))
		}
		passes = gen
	} else {
		log.Warn("CONFIG", "PASS_SECRET_KEY not set, booking passes are disabled")
	}

	verifier, err := buildVerifier(ctx, cfg.Auth, redisClient, log)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	// --- Kafka ---
	var workers sync.WaitGroup
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, append(cfg.Kafka.Topics.All(), cfg.Kafka.Topics.DeadLetters()...), 3, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		if topics, err := kafka.ListTopics(ctx, cfg.Kafka.Brokers); err == nil {
			log.LogKafka("TOPICS", "", fmt.Sprintf("Broker topics: %s", strings.Join(topics, ", ")))
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()

		relay := outbox.NewRelay(outboxStore, producer, cfg.Outbox, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			relay.Run(ctx)
		}()

		if cfg.Kafka.ConsumeNotify {
			dispatcher := notify.NewDispatcher(notifyStore, log, notify.LogSender{Logger: log})
			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), cfg.Kafka.GroupID, log).
				WithDeadLetter(producer.DeadLetterTo(cfg.Kafka.Topics.DeadLetterSuffix))
			workers.Add(1)
			go func() {
				defer workers.Done()
				defer consumer.Close()
				if err := consumer.Run(ctx, dispatcher.HandleMessage); err != nil {
					log.Error("KAFKA", fmt.Sprintf("Notification consumer stopped: %v", err))
				}
			}()
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, outbox events will accumulate until a relay runs")
	}

	// --- HTTP ---
	catalogHandler := catalog_api.NewHandler(catalogService, log)
	bookingHandler := booking_api.NewHandler(bookingService, passes, notifyStore, log, cfg.Auth.AdminRole)
	outboxHandler := &outbox_api.Handler{Outbox: outboxStore, Logger: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/health", healthHandler(bunDB, redisClient, outboxStore))
	catalogHandler.Register(r)
	bookingHandler.RegisterPublic(r)
	log.Info("ROUTER", "Public catalog, availability and quote routes registered")

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))
		bookingHandler.RegisterUser(r)
		log.Info("ROUTER", "Booking routes registered under /api/bookings")

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(cfg.Auth.AdminRole, log))
			bookingHandler.RegisterAdmin(r)
			outboxHandler.Register(r)
		})
		log.Info("ROUTER", fmt.Sprintf("Admin routes registered under /api/admin (role %s)", cfg.Auth.AdminRole))
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}
	workers.Wait()
	log.Info("APP", "Booking Service shutdown complete")
}
