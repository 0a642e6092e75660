package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	Postgres     PostgresConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Compliance   ComplianceConfig
	Notification NotificationConfig
	Sweep        SweepConfig
	Tracing      TracingConfig
}

// PostgresConfig selects the PostgreSQL entity store. An empty DSN keeps all
// state in memory.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables distributed rate-limit buckets and cross-instance feed fan-out.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the lifecycle event and audit streams.
type KafkaConfig struct {
	Brokers           []string
	ClientID          string
	AuditTopic        string
	EventsTopic       string
	Partitions        int32
	ReplicationFactor int16
}

type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	// ServiceKeyHash is the bcrypt hash of the X-Service-Key secret.
	ServiceKeyHash string
	ServiceActorID string
}

type RateLimitConfig struct {
	Window        time.Duration
	ReviewLimit   int
	ShopLimit     int
	FavoriteLimit int
	DocumentLimit int
	PruneInterval time.Duration
}

type ComplianceConfig struct {
	RequiredDocumentTypes []string
	RecomputeQueueSize    int
}

type NotificationConfig struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	SendRatePerSec   float64
	SendBurst        int
	BreakerThreshold int
	BreakerCooldown  time.Duration
	DispatchTimeout  time.Duration
}

type SweepConfig struct {
	Enabled           bool
	Interval          time.Duration
	ExpiryWarningLead time.Duration
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

// Load reads an optional .env file and then the process environment.
func Load() (Server, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:        envString("GOVDASH_ADDR", ":8080"),
		Environment: envString("ENVIRONMENT", "development"),
		LogLevel:    envString("LOG_LEVEL", "info"),
		Postgres: PostgresConfig{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           envList("KAFKA_BROKERS", nil),
			ClientID:          envString("KAFKA_CLIENT_ID", "govdash"),
			AuditTopic:        envString("KAFKA_AUDIT_TOPIC", "govdash.audit"),
			EventsTopic:       envString("KAFKA_EVENTS_TOPIC", "govdash.lifecycle"),
			Partitions:        int32(envInt("KAFKA_TOPIC_PARTITIONS", 3)),
			ReplicationFactor: int16(envInt("KAFKA_TOPIC_REPLICATION", 1)),
		},
		Auth: AuthConfig{
			JWTSigningKey:  os.Getenv("JWT_SIGNING_KEY"),
			JWTIssuer:      os.Getenv("JWT_ISSUER"),
			JWTAudience:    os.Getenv("JWT_AUDIENCE"),
			ServiceKeyHash: os.Getenv("SERVICE_KEY_HASH"),
			ServiceActorID: envString("SERVICE_ACTOR_ID", "00000000-0000-0000-0000-00000000000a"),
		},
		RateLimit: RateLimitConfig{
			Window:        envDuration("RATE_LIMIT_WINDOW", time.Hour),
			ReviewLimit:   envInt("RATE_LIMIT_REVIEWS", 10),
			ShopLimit:     envInt("RATE_LIMIT_SHOPS", 5),
			FavoriteLimit: envInt("RATE_LIMIT_FAVORITES", 60),
			DocumentLimit: envInt("RATE_LIMIT_DOCUMENTS", 30),
			PruneInterval: envDuration("RATE_LIMIT_PRUNE_INTERVAL", 5*time.Minute),
		},
		Compliance: ComplianceConfig{
			RequiredDocumentTypes: envList("REQUIRED_DOCUMENT_TYPES",
				[]string{"business_license", "tax_clearance", "health_certificate"}),
			RecomputeQueueSize: envInt("RECOMPUTE_QUEUE_SIZE", 64),
		},
		Notification: NotificationConfig{
			MaxAttempts:      envInt("NOTIFY_MAX_ATTEMPTS", 4),
			InitialBackoff:   envDuration("NOTIFY_INITIAL_BACKOFF", 200*time.Millisecond),
			MaxBackoff:       envDuration("NOTIFY_MAX_BACKOFF", 5*time.Second),
			SendRatePerSec:   envFloat("NOTIFY_SEND_RATE", 20),
			SendBurst:        envInt("NOTIFY_SEND_BURST", 5),
			BreakerThreshold: envInt("NOTIFY_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  envDuration("NOTIFY_BREAKER_COOLDOWN", 30*time.Second),
			DispatchTimeout:  envDuration("NOTIFY_DISPATCH_TIMEOUT", 30*time.Second),
		},
		Sweep: SweepConfig{
			Enabled:           envBool("SWEEP_ENABLED", true),
			Interval:          envDuration("SWEEP_INTERVAL", 15*time.Minute),
			ExpiryWarningLead: envDuration("EXPIRY_WARNING_LEAD", 30*24*time.Hour),
		},
		Tracing: TracingConfig{
			Enabled:     envBool("TRACING_ENABLED", false),
			ServiceName: envString("OTEL_SERVICE_NAME", "govdash"),
		},
	}

	if cfg.Auth.JWTSigningKey == "" {
		if cfg.IsProduction() {
			return Server{}, fmt.Errorf("JWT_SIGNING_KEY is required in production")
		}
		// Use a default for development - should be overridden in production
		cfg.Auth.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if len(cfg.Compliance.RequiredDocumentTypes) == 0 {
		return Server{}, fmt.Errorf("REQUIRED_DOCUMENT_TYPES must name at least one document type")
	}
	return cfg, nil
}

func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
