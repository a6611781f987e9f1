package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fjod/go_checkout/internal/pricing"
	"github.com/fjod/go_checkout/internal/recurring"
	r "github.com/fjod/go_checkout/internal/repository"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	HTTPPort string `mapstructure:"HTTP_PORT"`
	GRPCPort string `mapstructure:"GRPC_PORT"`

	StorefrontBaseURL      string        `mapstructure:"STOREFRONT_BASE_URL"`
	StorefrontTimeout      time.Duration `mapstructure:"STOREFRONT_TIMEOUT"`
	StorefrontServiceToken string        `mapstructure:"STOREFRONT_SERVICE_TOKEN"`
	ShippingCacheTTL       time.Duration `mapstructure:"SHIPPING_CACHE_TTL"`
	StripeSecretKey        string        `mapstructure:"STRIPE_SECRET_KEY"`

	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         int    `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`

	MongoURI     string        `mapstructure:"MONGO_URI"`
	MongoDB      string        `mapstructure:"MONGO_DB"`
	RedisAddr    string        `mapstructure:"REDIS_ADDR"`
	CartCacheTTL time.Duration `mapstructure:"CART_CACHE_TTL"`
	KafkaBrokers string        `mapstructure:"KAFKA_BROKERS"`
	OutboxTopic  string        `mapstructure:"OUTBOX_TOPIC"`
	RecoveryTick time.Duration `mapstructure:"RECOVERY_TICK"`
	RecoveryIdle time.Duration `mapstructure:"RECOVERY_IDLE"`

	PollInterval    time.Duration `mapstructure:"POLL_INTERVAL"`
	PollMaxAttempts int           `mapstructure:"POLL_MAX_ATTEMPTS"`
	GuardTTL        time.Duration `mapstructure:"GUARD_TTL"`

	RecurringWindowStart string `mapstructure:"RECURRING_WINDOW_START"`
	RecurringWindowEnd   string `mapstructure:"RECURRING_WINDOW_END"`

	INRToGBPRate                 string `mapstructure:"INR_TO_GBP_RATE"`
	DefaultShippingCharge        string `mapstructure:"DEFAULT_SHIPPING_CHARGE"`
	DefaultFreeShippingThreshold string `mapstructure:"DEFAULT_FREE_SHIPPING_THRESHOLD"`
}

var defaults = map[string]any{
	"APP_ENV":                         "local",
	"LOG_LEVEL":                       "info",
	"HTTP_PORT":                       "8080",
	"GRPC_PORT":                       "50057",
	"STOREFRONT_BASE_URL":             "http://localhost:3000/api",
	"STOREFRONT_TIMEOUT":              "5s",
	"STOREFRONT_SERVICE_TOKEN":        "",
	"SHIPPING_CACHE_TTL":              "5m",
	"STRIPE_SECRET_KEY":               "",
	"DB_HOST":                         "localhost",
	"DB_PORT":                         5432,
	"DB_USER":                         "postgres",
	"DB_PASSWORD":                     "postgres",
	"DB_NAME":                         "checkout",
	"MIGRATIONS_PATH":                 "./internal/repository/migrations",
	"MONGO_URI":                       "mongodb://localhost:27017",
	"MONGO_DB":                        "checkout",
	"REDIS_ADDR":                      "localhost:6379",
	"CART_CACHE_TTL":                  "15m",
	"KAFKA_BROKERS":                   "localhost:9092",
	"OUTBOX_TOPIC":                    "checkout-outbox",
	"RECOVERY_TICK":                   "30s",
	"RECOVERY_IDLE":                   "2m",
	"POLL_INTERVAL":                   "2s",
	"POLL_MAX_ATTEMPTS":               30,
	"GUARD_TTL":                       "2m",
	"RECURRING_WINDOW_START":          "06:00",
	"RECURRING_WINDOW_END":            "22:00",
	"INR_TO_GBP_RATE":                 "0.0095",
	"DEFAULT_SHIPPING_CHARGE":         pricing.DefaultShippingCharge.String(),
	"DEFAULT_FREE_SHIPPING_THRESHOLD": pricing.DefaultFreeShippingThreshold.String(),
}

// Load reads envFile when it exists, then the process environment. Environment
// variables win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.StorefrontBaseURL == "" {
		return errors.New("STOREFRONT_BASE_URL is required")
	}
	if c.PollMaxAttempts < 1 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive, got %d", c.PollMaxAttempts)
	}
	if c.GuardTTL < c.PollBudget() {
		return fmt.Errorf("GUARD_TTL %s must cover POLL_INTERVAL * POLL_MAX_ATTEMPTS (%s)", c.GuardTTL, c.PollBudget())
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	if _, err := c.Converter(); err != nil {
		return err
	}
	if _, err := c.ShippingDefaults(); err != nil {
		return err
	}
	return nil
}

// PollBudget is the longest a payment verification may keep polling.
func (c *Config) PollBudget() time.Duration {
	return c.PollInterval * time.Duration(c.PollMaxAttempts)
}

func (c *Config) Credentials() *r.Credentials {
	return &r.Credentials{
		Host:              c.DBHost,
		Port:              c.DBPort,
		User:              c.DBUser,
		Password:          c.DBPassword,
		DBName:            c.DBName,
		MigrationsDirPath: c.MigrationsPath,
	}
}

func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c *Config) Window() (recurring.Window, error) {
	w, err := recurring.ParseWindow(c.RecurringWindowStart, c.RecurringWindowEnd)
	if err != nil {
		return recurring.Window{}, fmt.Errorf("RECURRING_WINDOW: %w", err)
	}
	return w, nil
}

func (c *Config) Converter() (pricing.Converter, error) {
	rate, err := decimal.NewFromString(c.INRToGBPRate)
	if err != nil || !rate.IsPositive() {
		return pricing.Converter{}, fmt.Errorf("INR_TO_GBP_RATE must be a positive number, got %q", c.INRToGBPRate)
	}
	return pricing.NewConverter("INR", "GBP", rate), nil
}

func (c *Config) ShippingDefaults() (pricing.ShippingConfig, error) {
	charge, err := decimal.NewFromString(c.DefaultShippingCharge)
	if err != nil || charge.IsNegative() {
		return pricing.ShippingConfig{}, fmt.Errorf("DEFAULT_SHIPPING_CHARGE is invalid: %q", c.DefaultShippingCharge)
	}
	threshold, err := decimal.NewFromString(c.DefaultFreeShippingThreshold)
	if err != nil || threshold.IsNegative() {
		return pricing.ShippingConfig{}, fmt.Errorf("DEFAULT_FREE_SHIPPING_THRESHOLD is invalid: %q", c.DefaultFreeShippingThreshold)
	}
	return pricing.ShippingConfig{ShippingCharge: charge, FreeShippingThreshold: threshold}, nil
}
