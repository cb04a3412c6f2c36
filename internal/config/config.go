package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ms-storefront/internal/apperr"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Email      EmailConfig
	Gateway    GatewayConfig
	Storefront StorefrontConfig
	Scheduler  SchedulerConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type LogConfig struct {
	Dir     string
	Level   string
	NoColor bool
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
	ConnRetries  int
}

// DSN builds the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	OrderCreated       string
	OrderStatusChanged string
	TicketCreated      string
	TicketStatus       string
}

type EmailConfig struct {
	From         string
	FromName     string
	ReplyTo      string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	ResendAPIKey string
	Timeout      time.Duration
}

// Configured reports whether either transport has credentials.
func (e EmailConfig) Configured() bool {
	return e.ResendAPIKey != "" || (e.SMTPHost != "" && e.SMTPUsername != "" && e.SMTPPassword != "")
}

type GatewayConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
	MaxRetries    int
}

// Validate reports a ConfigurationError when checkout sessions cannot be created.
func (g GatewayConfig) Validate() error {
	var missing []string
	if g.BaseURL == "" {
		missing = append(missing, "GATEWAY_BASE_URL")
	}
	if g.SecretKey == "" {
		missing = append(missing, "GATEWAY_SECRET_KEY")
	}
	if len(missing) > 0 {
		return &apperr.ConfigurationError{Component: "payment gateway", Missing: missing}
	}
	return nil
}

type StorefrontConfig struct {
	PublicURL        string
	ProductName      string
	BookUnitAmount   int64
	PaxiFee          int64
	DoorToDoorFee    int64
	TicketUnitAmount int64
	EventName        string
	EventDate        string
	EventVenue       string
	SupportEmail     string
}

type SchedulerConfig struct {
	ProcessingDelay time.Duration
	SweepInterval   time.Duration
	QueueKey        string
	BatchSize       int
}

type AuthConfig struct {
	JWTSecret    string
	OIDCIssuer   string
	OIDCClientID string
	AdminRole    string
}

type RateLimitConfig struct {
	PromoVerifyPerMinute int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8080"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
			AllowedOrigins:  getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Log: LogConfig{
			Dir:     getEnv("LOG_DIR", "logs"),
			Level:   getEnv("LOG_LEVEL", "INFO"),
			NoColor: getEnvBool("LOG_NO_COLOR", false),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "storefront"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "storefront"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", false),
			ConnRetries:  getEnvInt("DB_CONN_RETRIES", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				OrderCreated:       getEnv("KAFKA_TOPIC_ORDER_CREATED", "storefront.order.created"),
				OrderStatusChanged: getEnv("KAFKA_TOPIC_ORDER_STATUS", "storefront.order.status_changed"),
				TicketCreated:      getEnv("KAFKA_TOPIC_TICKET_CREATED", "storefront.ticket.created"),
				TicketStatus:       getEnv("KAFKA_TOPIC_TICKET_STATUS", "storefront.ticket.status_changed"),
			},
		},
		Email: EmailConfig{
			From:         getEnv("EMAIL_FROM", "orders@example.com"),
			FromName:     getEnv("EMAIL_FROM_NAME", "Storefront"),
			ReplyTo:      getEnv("EMAIL_REPLY_TO", ""),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			Timeout:      getEnvDuration("EMAIL_TIMEOUT", 15*time.Second),
		},
		Gateway: GatewayConfig{
			BaseURL:       strings.TrimRight(getEnv("GATEWAY_BASE_URL", "https://payments.yoco.com/api"), "/"),
			SecretKey:     getEnv("GATEWAY_SECRET_KEY", ""),
			WebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
			Currency:      getEnv("GATEWAY_CURRENCY", "ZAR"),
			Timeout:       getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
			MaxRetries:    getEnvInt("GATEWAY_MAX_RETRIES", 2),
		},
		Storefront: StorefrontConfig{
			PublicURL:        strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:3000"), "/"),
			ProductName:      getEnv("PRODUCT_NAME", "Study Guide"),
			BookUnitAmount:   getEnvInt64("BOOK_UNIT_AMOUNT", 45000),
			PaxiFee:          getEnvInt64("PAXI_FEE", 6000),
			DoorToDoorFee:    getEnvInt64("DOOR_TO_DOOR_FEE", 10000),
			TicketUnitAmount: getEnvInt64("TICKET_UNIT_AMOUNT", 15000),
			EventName:        getEnv("EVENT_NAME", "Book Launch"),
			EventDate:        getEnv("EVENT_DATE", "2026-12-05 10:00"),
			EventVenue:       getEnv("EVENT_VENUE", "Main Hall"),
			SupportEmail:     getEnv("SUPPORT_EMAIL", "support@example.com"),
		},
		Scheduler: SchedulerConfig{
			ProcessingDelay: getEnvDuration("PROCESSING_DELAY", 30*time.Second),
			SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 10*time.Second),
			QueueKey:        getEnv("SCHEDULER_QUEUE_KEY", "storefront:orders:advance"),
			BatchSize:       getEnvInt("SCHEDULER_BATCH_SIZE", 100),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
			OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
			OIDCClientID: getEnv("OIDC_CLIENT_ID", ""),
			AdminRole:    getEnv("ADMIN_ROLE", "admin"),
		},
		RateLimit: RateLimitConfig{
			PromoVerifyPerMinute: getEnvInt("PROMO_VERIFY_PER_MINUTE", 20),
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
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

func getEnvSlice(key string, defaultValue []string) []string {
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
	return out
}
