// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Prefix is prepended to every variable name, e.g. STOREFRONT_PORT.
const Prefix = "STOREFRONT"

const (
	RunLocal  = "local"
	RunLambda = "lambda"
)

type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	Port     string `envconfig:"PORT" default:"3000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	RunMode  string `envconfig:"RUN_MODE" default:"local"`
	Version  string `envconfig:"VERSION" default:"1.0.0"`

	AWSRegion   string `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSEndpoint string `envconfig:"AWS_ENDPOINT"`

	ProductsTable    string        `envconfig:"PRODUCTS_TABLE" default:"products"`
	OrdersTable      string        `envconfig:"ORDERS_TABLE" default:"orders"`
	UsersTable       string        `envconfig:"USERS_TABLE" default:"users"`
	IdempotencyTable string        `envconfig:"IDEMPOTENCY_TABLE" default:"idempotency"`
	IdempotencyTTL   time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"48h"`

	JWTSecret  string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL     time.Duration `envconfig:"JWT_TTL" default:"24h"`
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"12"`

	RateLimitAttempts int           `envconfig:"RATE_LIMIT_ATTEMPTS" default:"5"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"15m"`
	RateLimitCapacity int           `envconfig:"RATE_LIMIT_CAPACITY" default:"10000"`

	MetricsEnabled   bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"Storefront"`

	ProductPageSize int `envconfig:"PRODUCT_PAGE_SIZE" default:"12"`
	OrderPageSize   int `envconfig:"ORDER_PAGE_SIZE" default:"10"`
}

// Load reads dotenv (when the file exists) and then the process environment.
// Variables already set in the environment win over the file.
func Load(dotenv string) (*Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.RunMode {
	case RunLocal, RunLambda:
	default:
		return fmt.Errorf("invalid run mode %q: want %s or %s", c.RunMode, RunLocal, RunLambda)
	}
	if c.RateLimitAttempts <= 0 || c.RateLimitCapacity <= 0 {
		return errors.New("rate limit attempts and capacity must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

func (c *Config) Production() bool { return c.Env == "production" }

// NewLogger builds the process logger: JSON in production, text otherwise.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if lvl, err := logrus.ParseLevel(strings.ToLower(c.LogLevel)); err == nil {
		log.SetLevel(lvl)
	}
	if c.Production() {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
