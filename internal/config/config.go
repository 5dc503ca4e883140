package config

import (
	"os"
	"strconv"
	"time"

	"geoconnect/internal/cache"
	"geoconnect/internal/database"
	"geoconnect/internal/external"
	"geoconnect/internal/messaging"
)

// Config holds the full application configuration, loaded from environment
// variables with local-development defaults.
type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	// Base URL used to build payment webhook callback URLs.
	PublicBaseURL string

	Booking BookingConfig

	Database database.Config
	NATS     messaging.Config
	Redis    cache.Config
	Payment  external.PaymentConfig
}

// BookingConfig carries the reservation-engine knobs.
type BookingConfig struct {
	// How long a PENDING_PAYMENT booking holds its seats.
	ReservationTTL time.Duration
	// TTL for idempotency-key registrations on booking creation.
	IdempotencyTTL time.Duration
	// When true, requested seat numbers are checked against other active
	// bookings on the same trip. Off by default: the historical behavior
	// assigns seats positionally with no cross-booking check.
	SeatUniquenessCheck bool
	// Sweeper cadence for expiring stale reservations.
	ExpirySweepInterval time.Duration
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "debug"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		Booking: BookingConfig{
			ReservationTTL:      time.Duration(getEnvInt("BOOKING_RESERVATION_TTL_MIN", 15)) * time.Minute,
			IdempotencyTTL:      time.Duration(getEnvInt("BOOKING_IDEMPOTENCY_TTL_SEC", 600)) * time.Second,
			SeatUniquenessCheck: getEnv("BOOKING_SEAT_UNIQUENESS", "false") == "true",
			ExpirySweepInterval: time.Duration(getEnvInt("BOOKING_EXPIRY_SWEEP_SEC", 30)) * time.Second,
		},

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "geoconnect"),
			Password:           getEnv("DB_PASSWORD", "geoconnect"),
			DBName:             getEnv("DB_NAME", "geoconnect"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "geoconnect"),
			ClientID:  getEnv("NATS_CLIENT_ID", "geoconnect-api"),
		},

		Redis: cache.Config{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			RulesTTL: time.Duration(getEnvInt("PRICING_RULES_CACHE_TTL_SEC", 60)) * time.Second,
		},

		Payment: external.PaymentConfig{
			GatewayURL: getEnv("PAYMENT_GATEWAY_URL", ""),
			Timeout:    time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
