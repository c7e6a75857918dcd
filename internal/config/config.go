package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrMissingStripeKey = errors.New("STRIPE_SECRET_KEY is not set")

type Config struct {
	HTTPPort           string        `mapstructure:"HTTP_PORT"`
	GRPCPort           string        `mapstructure:"GRPC_PORT"`
	BaseURL            string        `mapstructure:"BASE_URL"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	MaxRequestBodySize int64         `mapstructure:"MAX_REQUEST_BODY_SIZE"`

	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         int    `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`

	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDBName   string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	CatalogDBPath         string `mapstructure:"CATALOG_DB_PATH"`
	CatalogMigrationsPath string `mapstructure:"CATALOG_MIGRATIONS_PATH"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`

	StripeSecretKey     string        `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	ProviderTimeout     time.Duration `mapstructure:"PROVIDER_TIMEOUT"`
	Currency            string        `mapstructure:"CURRENCY"`
	OrderPrefix         string        `mapstructure:"ORDER_PREFIX"`

	ReconcileInterval   time.Duration `mapstructure:"RECONCILE_INTERVAL"`
	ReconcilePendingAge time.Duration `mapstructure:"RECONCILE_PENDING_AGE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"HTTP_PORT":             "8080",
	"GRPC_PORT":             "50060",
	"BASE_URL":              "http://localhost:3000",
	"REQUEST_TIMEOUT":       "30s",
	"SHUTDOWN_TIMEOUT":      "10s",
	"MAX_REQUEST_BODY_SIZE": int64(1 << 20),

	"DB_HOST":         "localhost",
	"DB_PORT":         5432,
	"DB_USER":         "postgres",
	"DB_PASSWORD":     "postgres",
	"DB_NAME":         "era_store",
	"MIGRATIONS_PATH": "./internal/repository/migrations",

	"MONGO_URI":      "mongodb://localhost:27017",
	"MONGO_DB_NAME":  "cartdb",
	"REDIS_ADDR":     "localhost:6379",
	"REDIS_PASSWORD": "",

	"CATALOG_DB_PATH":         "./catalog.db",
	"CATALOG_MIGRATIONS_PATH": "./internal/catalog/migrations",

	"KAFKA_BROKERS": "localhost:9092",

	"STRIPE_SECRET_KEY":     "",
	"STRIPE_WEBHOOK_SECRET": "",
	"PROVIDER_TIMEOUT":      "10s",
	"CURRENCY":              "jpy",
	"ORDER_PREFIX":          "ERA",

	"RECONCILE_INTERVAL":    "1m",
	"RECONCILE_PENDING_AGE": "30m",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",
}

// Load reads defaults, then an optional file named by CONFIG_FILE, then the environment.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.StripeSecretKey == "" {
		return ErrMissingStripeKey
	}
	if c.DBPort <= 0 {
		return fmt.Errorf("invalid DB_PORT: %d", c.DBPort)
	}
	return nil
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

func (c *Config) SuccessURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/cart?status=success"
}

func (c *Config) CancelURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/cart?status=cancel"
}
