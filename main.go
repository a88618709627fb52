package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"ms-reservation/internal/auth"
	"ms-reservation/internal/cache"
	"ms-reservation/internal/config"
	"ms-reservation/internal/database"
	"ms-reservation/internal/inventory/db"
	"ms-reservation/internal/kafka"
	"ms-reservation/internal/lock"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/reservation"
	"ms-reservation/internal/reservation/reservation_api"
	"ms-reservation/internal/sse"
	"ms-reservation/internal/tickets/qr"
)

const principalCacheTTL = 30 * time.Second

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		logger.Info("REDIS", "Redis disabled, using in-process cache and locks")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func buildResolver(ctx context.Context, cfg config.AuthConfig, sessions *auth.SessionStore, redisClient *redis.Client, logger *logger.Logger) auth.SessionResolver {
	chain := auth.ChainResolver{sessions}
	logger.Info("AUTH", "Session table resolver enabled")

	if cfg.JWTSecret != "" {
		chain = append(chain, auth.NewJWTResolver(cfg.JWTSecret))
		logger.Info("AUTH", "HS256 bearer token resolver enabled")
	}
	if cfg.OIDCIssuer != "" {
		oidcResolver, err := auth.NewOIDCResolver(ctx, cfg.OIDCIssuer)
		if err != nil {
			logger.Error("AUTH", fmt.Sprintf("OIDC provider %s unavailable: %v", cfg.OIDCIssuer, err))
		} else {
			chain = append(chain, oidcResolver)
			logger.Info("AUTH", fmt.Sprintf("OIDC resolver enabled for %s", cfg.OIDCIssuer))
		}
	}

	if redisClient == nil {
		return chain
	}
	return auth.NewCachedResolver(chain, redisClient, principalCacheTTL, logger)
}

func main() {
	logger := logger.NewLogger("reservation-service")
	defer logger.Close()

	logger.Info("APP", "Starting Reservation Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	logger.Info("APP", "Verifying database connections")
	bunDB, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	if err := database.Prepare(ctx, bunDB, cfg.Database, logger); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Schema preparation failed: %v", err))
	}

	redisClient := connectRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Lock.Backend == "redis" {
		if redisClient == nil {
			logger.Fatal("CONFIG", "LOCK_BACKEND=redis requires REDIS_ENABLED=true")
		}
		locker = lock.NewRedisLocker(redisClient, cfg.Lock.TTL, cfg.Lock.RetryInterval, logger)
	}
	logger.Info("LOCK", fmt.Sprintf("Per-event lock backend: %s", cfg.Lock.Backend))

	var backend cache.Backend = cache.NewMemoryBackend()
	if redisClient != nil {
		backend = cache.NewRedisBackend(redisClient)
	}

	store := db.NewDB(bunDB, locker)
	seatCache := cache.NewSeatCache(backend, reservation.SeatLoader(store), cfg.Cache.TTL, cfg.Cache.Prefix, logger)
	logger.Info("CACHE", fmt.Sprintf("Seat cache ready (ttl=%s prefix=%s)", cfg.Cache.TTL, cfg.Cache.Prefix))

	instanceID := uuid.New().String()

	var publisher reservation.Publisher
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.OrderCreated, cfg.Kafka.Topics.OrderCancelled, cfg.Kafka.Topics.SeatStatus}
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, topics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, logger)
		defer producer.Close()
		publisher = producer
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.SeatStatus, cfg.Kafka.GroupID, logger)
		defer consumer.Close()
		logger.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Kafka.Brokers))
	} else {
		logger.Warn("KAFKA", "Kafka disabled, seat changes stay local to this instance")
	}

	service := reservation.NewService(store, seatCache, publisher, qr.NewQRGenerator(cfg.Reservation.QRSecret), reservation.Options{
		MaxSeatsPerOrder:        cfg.Reservation.MaxSeatsPerOrder,
		CancelRequiresOwnership: cfg.Reservation.CancelRequiresOwnership,
		InstanceID:              instanceID,
	}, logger)
	seatEvents := sse.NewSeatEventEmitter()
	service.Notifier = seatEvents

	if consumer != nil {
		go func() {
			if err := consumer.Start(ctx, service.ApplyRemoteSeatStatus); err != nil {
				logger.Error("KAFKA", fmt.Sprintf("Seat status consumer stopped: %v", err))
			}
		}()
		logger.Info("KAFKA", fmt.Sprintf("Seat status consumer started (instance %s)", instanceID))
	}

	resolver := buildResolver(ctx, cfg.Auth, auth.NewSessionStore(bunDB), redisClient, logger)
	handler := reservation_api.NewHandler(service, seatEvents, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(reservation_api.LogRequests(logger))
	handler.RegisterRoutes(r, resolver)
	logger.Info("ROUTER", "Reservation routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Reservation Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancelBackground()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Reservation Service shutdown complete")
	}

	stats := seatCache.Stats()
	logger.LogCacheStats(stats.Hits, stats.Misses, stats.Loads, stats.BackendErrors)
}
