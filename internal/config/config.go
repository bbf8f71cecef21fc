package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	GRPCHealthPort  string        `envconfig:"GRPC_HEALTH_PORT" default:"50060"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	PublicBaseURL   string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	DBHost         string `envconfig:"DB_HOST" default:"localhost"`
	DBPort         int    `envconfig:"DB_PORT" default:"5432"`
	DBUser         string `envconfig:"DB_USER" default:"postgres"`
	DBPassword     string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName         string `envconfig:"DB_NAME" default:"marketplace"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"./internal/repository/migrations"`

	RedisAddr    string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	KafkaBrokers string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`

	// TokenKey must be exactly 32 bytes (PASETO v2 local).
	TokenKey      string        `envconfig:"TOKEN_SYMMETRIC_KEY" required:"true"`
	TokenDuration time.Duration `envconfig:"TOKEN_DURATION" default:"24h"`

	StripeSecretKey   string        `envconfig:"STRIPE_SECRET_KEY"`
	PaymentSuccessURL string        `envconfig:"PAYMENT_SUCCESS_URL" default:"http://localhost:8080/api/orders/payment/success/?session_id={CHECKOUT_SESSION_ID}"`
	PaymentCancelURL  string        `envconfig:"PAYMENT_CANCEL_URL" default:"http://localhost:8080/api/orders/payment/cancel/?session_id={CHECKOUT_SESSION_ID}"`
	PaymentTimeout    time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10s"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	MailFrom     string `envconfig:"MAIL_FROM" default:"Marketplace <noreply@marketplace.local>"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if len(cfg.TokenKey) != 32 {
		return nil, fmt.Errorf("TOKEN_SYMMETRIC_KEY must be 32 characters, got %d", len(cfg.TokenKey))
	}
	return &cfg, nil
}

func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
