package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the delivery service.
type Config struct {
	App     AppConfig
	Store   StoreConfig
	Janitor JanitorConfig
	Auth    AuthConfig
	AMQP    AMQPConfig
	Redis   RedisConfig
	Tracing TracingConfig
}

type AppConfig struct {
	Env              string
	Port             string
	InternalAPIToken string
}

type StoreConfig struct {
	// URI is the Postgres connection string. Required.
	URI string
	// OpTimeout bounds every store call.
	OpTimeout time.Duration
}

type JanitorConfig struct {
	MessageInterval     time.Duration
	SessionInterval     time.Duration
	MessageTTL          time.Duration
	SessionIdleTTL      time.Duration
	SessionActiveWindow time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type AMQPConfig struct {
	URL            string
	EventsExchange string
	ChatExchange   string
	ConsumerQueue  string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type TracingConfig struct {
	OTLPEndpoint string
}

// ErrMissingStorageURI is returned when STORAGE_URI is not set.
var ErrMissingStorageURI = errors.New("STORAGE_URI is required")

// Load reads configuration from the environment, honoring a local .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := &Config{
		App: AppConfig{
			Env:              getEnv("ENVIRONMENT", "development"),
			Port:             getEnv("PORT", "8083"),
			InternalAPIToken: getEnv("INTERNAL_API_TOKEN", ""),
		},
		Store: StoreConfig{
			URI:       getEnv("STORAGE_URI", ""),
			OpTimeout: getDuration("STORE_OP_TIMEOUT", 5*time.Second),
		},
		Janitor: JanitorConfig{
			MessageInterval:     getDuration("JANITOR_MSG_INTERVAL", 15*time.Minute),
			SessionInterval:     getDuration("JANITOR_SESSION_INTERVAL", 5*time.Minute),
			MessageTTL:          getDuration("MSG_TTL", 24*time.Hour),
			SessionIdleTTL:      getDuration("SESSION_IDLE_TTL", 60*time.Minute),
			SessionActiveWindow: getDuration("SESSION_ACTIVE_WINDOW", 30*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret"),
		},
		AMQP: AMQPConfig{
			URL:            getEnv("AMQP_URL", ""),
			EventsExchange: getEnv("DELIVERY_EVENTS_EXCHANGE", "delivery.events"),
			ChatExchange:   getEnv("CHAT_EVENTS_EXCHANGE", "chat.events"),
			ConsumerQueue:  getEnv("DELIVERY_CONSUMER_QUEUE", "delivery-service.enqueue"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
		},
	}

	if cfg.Store.URI == "" {
		return nil, ErrMissingStorageURI
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("invalid duration for %s: %q, using default %s", key, val, fallback)
		return fallback
	}
	return d
}
