package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "covenant/pkg/platform/strings"
)

// Config captures process-level configuration. Values come from the
// environment with development defaults so main stays lean.
type Config struct {
	Addr          string
	JWTSigningKey string

	// PostgresURL enables the postgres stores when set; empty keeps the
	// in-memory stores (development, tests).
	PostgresURL string

	Redis RedisConfig
	Kafka KafkaConfig

	// Governance bootstrap parameters. Mutable at runtime through the
	// governance admin surface; these are only the initial values.
	VotingPeriod   time.Duration
	ExecutionDelay time.Duration
	RequiredVotes  int

	// AdminAccount receives the Administrator capability at startup.
	AdminAccount string
}

// RedisConfig configures the optional redis daily-quota store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional kafka event publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	addr := os.Getenv("COVENANT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("KAFKA_EVENTS_TOPIC")
	if topic == "" {
		topic = "covenant.ledger.events"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = pstrings.DedupeAndTrim(strings.Split(raw, ","))
	}

	return Config{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
		VotingPeriod:   envDuration("GOVERNANCE_VOTING_PERIOD", 24*time.Hour),
		ExecutionDelay: envDuration("GOVERNANCE_EXECUTION_DELAY", time.Hour),
		RequiredVotes:  envInt("GOVERNANCE_REQUIRED_VOTES", 1),
		AdminAccount:   os.Getenv("COVENANT_ADMIN_ACCOUNT"),
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}
