package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Cache       CacheConfig
	Lock        LockConfig
	Auth        AuthConfig
	Reservation ReservationConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver         string // sqlite | postgres | mysql
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	AutoMigrate    bool
	MigrationsPath string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	GroupID string
	Topics  TopicConfig
}

type TopicConfig struct {
	OrderCreated   string
	OrderCancelled string
	SeatStatus     string
}

// CacheConfig controls the per-event seat availability cache.
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
}

type LockConfig struct {
	Backend       string // memory | redis
	TTL           time.Duration
	RetryInterval time.Duration
}

type AuthConfig struct {
	JWTSecret  string
	OIDCIssuer string
}

type ReservationConfig struct {
	MaxSeatsPerOrder        int
	CancelRequiresOwnership bool
	QRSecret                string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8084"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         getEnv("DB_DRIVER", "sqlite"),
			DSN:            getEnv("DB_DSN", "file:reservation.db?cache=shared&_pragma=foreign_keys(1)"),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:    time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			AutoMigrate:    getEnvBool("MIGRATIONS_AUTO", true),
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getEnv("KAFKA_GROUP_ID", "reservation-cache-"+hostname()),
			Topics: TopicConfig{
				OrderCreated:   getEnv("KAFKA_TOPIC_ORDER_CREATED", "reservation.order.created"),
				OrderCancelled: getEnv("KAFKA_TOPIC_ORDER_CANCELLED", "reservation.order.cancelled"),
				SeatStatus:     getEnv("KAFKA_TOPIC_SEAT_STATUS", "reservation.seats.status"),
			},
		},
		Cache: CacheConfig{
			TTL:    getEnvDuration("SEAT_CACHE_TTL", 300*time.Second),
			Prefix: getEnv("SEAT_CACHE_PREFIX", "event:seats:"),
		},
		Lock: LockConfig{
			Backend:       getEnv("LOCK_BACKEND", "memory"),
			TTL:           getEnvDuration("LOCK_TTL", 10*time.Second),
			RetryInterval: getEnvDuration("LOCK_RETRY_INTERVAL", 10*time.Millisecond),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("AUTH_JWT_SECRET", ""),
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
		Reservation: ReservationConfig{
			MaxSeatsPerOrder:        getEnvInt("MAX_SEATS_PER_ORDER", 4),
			CancelRequiresOwnership: getEnvBool("CANCEL_REQUIRES_OWNERSHIP", false),
			QRSecret:                getEnv("QR_SECRET", "reservation-qr"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "local"
	}
	return name
}
