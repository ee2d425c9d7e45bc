package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Outbox   OutboxConfig
	Booking  BookingConfig
	Auth     AuthConfig
	Pass     PassConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
	ConnRetries  int
}

type RedisConfig struct {
	Addr     string
	Enabled  bool
	HoldTTL  time.Duration
	HoldWait time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	GroupID       string
	Topics        TopicConfig
	Enabled       bool
	ConsumeNotify bool
}

type TopicConfig struct {
	BookingCreated   string
	BookingCancelled string
	PaymentVerified  string
	DeadLetterSuffix string
}

func (t TopicConfig) All() []string {
	return []string{t.BookingCreated, t.BookingCancelled, t.PaymentVerified}
}

// DeadLetters names the parking topic of every topic in All.
func (t TopicConfig) DeadLetters() []string {
	out := make([]string, 0, 3)
	for _, topic := range t.All() {
		out = append(out, topic+t.DeadLetterSuffix)
	}
	return out
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
}

type BookingConfig struct {
	Timezone           string
	DefaultAdvanceDays int
}

type AuthConfig struct {
	OIDCIssuer   string
	OIDCClientID string
	JWTSecret    string
	AdminRole    string
}

type PassConfig struct {
	Secret string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8084"),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
			ConnRetries:  getEnvInt("DB_CONNECT_RETRIES", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			HoldTTL:  getEnvDuration("SLOT_HOLD_TTL", 10*time.Second),
			HoldWait: getEnvDuration("SLOT_HOLD_WAIT", 500*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID:       getEnv("KAFKA_GROUP_ID", "quarterdeck-notify"),
			Enabled:       getEnvBool("KAFKA_ENABLED", true),
			ConsumeNotify: getEnvBool("NOTIFY_WORKER_ENABLED", true),
			Topics: TopicConfig{
				BookingCreated:   getEnv("KAFKA_TOPIC_BOOKING_CREATED", "quarterdeck.booking.created"),
				BookingCancelled: getEnv("KAFKA_TOPIC_BOOKING_CANCELLED", "quarterdeck.booking.cancelled"),
				PaymentVerified:  getEnv("KAFKA_TOPIC_PAYMENT_VERIFIED", "quarterdeck.booking.payment_verified"),
				DeadLetterSuffix: getEnv("KAFKA_DEAD_LETTER_SUFFIX", ".dead"),
			},
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 50),
			MaxAttempts:  getEnvInt("OUTBOX_MAX_ATTEMPTS", 8),
			BaseBackoff:  getEnvDuration("OUTBOX_BASE_BACKOFF", 5*time.Second),
		},
		Booking: BookingConfig{
			Timezone:           getEnv("FACILITY_TIMEZONE", "Europe/London"),
			DefaultAdvanceDays: getEnvInt("DEFAULT_ADVANCE_BOOKING_DAYS", 7),
		},
		Auth: AuthConfig{
			OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
			OIDCClientID: getEnv("OIDC_CLIENT_ID", ""),
			JWTSecret:    getEnv("AUTH_JWT_SECRET", ""),
			AdminRole:    getEnv("AUTH_ADMIN_ROLE", "admin"),
		},
		Pass: PassConfig{
			Secret: getEnv("PASS_SECRET_KEY", ""),
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

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
