package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	LemonSqueezy LemonSqueezyConfig
	Storefront   StorefrontConfig
	Checkout     CheckoutConfig
	Reconcile    ReconcileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CRAFTMART_APP_ENV" required:"true"`
	Port         string `envconfig:"CRAFTMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CRAFTMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CRAFTMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"CRAFTMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CRAFTMART_DB_DSN"`
	Driver string `envconfig:"CRAFTMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CRAFTMART_DB_HOST"`
	LegacyPort     int    `envconfig:"CRAFTMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CRAFTMART_DB_USER"`
	LegacyPassword string `envconfig:"CRAFTMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"CRAFTMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"CRAFTMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRAFTMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRAFTMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRAFTMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRAFTMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CRAFTMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CRAFTMART_REDIS_ADDR"`
	Password     string        `envconfig:"CRAFTMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRAFTMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRAFTMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRAFTMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRAFTMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRAFTMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRAFTMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CRAFTMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CRAFTMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CRAFTMART_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CRAFTMART_AUTO_MIGRATE" default:"false"`
}

// LemonSqueezyConfig holds payment provider credentials. Secrets are optional at
// boot so the storefront can run without payments; the webhook answers 500 and
// checkout fails with a dependency error until they are set.
type LemonSqueezyConfig struct {
	APIKey        string        `envconfig:"CRAFTMART_LEMONSQUEEZY_API_KEY"`
	StoreID       string        `envconfig:"CRAFTMART_LEMONSQUEEZY_STORE_ID"`
	VariantID     string        `envconfig:"CRAFTMART_LEMONSQUEEZY_VARIANT_ID"`
	WebhookSecret string        `envconfig:"CRAFTMART_LEMONSQUEEZY_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"CRAFTMART_LEMONSQUEEZY_BASE_URL" default:"https://api.lemonsqueezy.com"`
	TestMode      bool          `envconfig:"CRAFTMART_LEMONSQUEEZY_TEST_MODE" default:"true"`
	Timeout       time.Duration `envconfig:"CRAFTMART_LEMONSQUEEZY_TIMEOUT" default:"15s"`
}

type StorefrontConfig struct {
	PublicBaseURL  string   `envconfig:"CRAFTMART_PUBLIC_BASE_URL" required:"true"`
	AllowedOrigins []string `envconfig:"CRAFTMART_CORS_ORIGINS" default:"http://localhost:3000"`
}

// SuccessURL returns the redirect target used after a hosted checkout completes.
func (s StorefrontConfig) SuccessURL(orderID uint64) string {
	base := strings.TrimRight(strings.TrimSpace(s.PublicBaseURL), "/")
	return fmt.Sprintf("%s/checkout/success?order=%d", base, orderID)
}

type CheckoutConfig struct {
	RateLimitWindow time.Duration `envconfig:"CRAFTMART_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerIP  int           `envconfig:"CRAFTMART_CHECKOUT_RATE_LIMIT_PER_IP" default:"10"`
}

type ReconcileConfig struct {
	Interval               time.Duration `envconfig:"CRAFTMART_RECONCILE_INTERVAL" default:"5m"`
	PendingAfter           time.Duration `envconfig:"CRAFTMART_RECONCILE_PENDING_AFTER" default:"30m"`
	FulfillmentBatchSize   int           `envconfig:"CRAFTMART_FULFILLMENT_BATCH_SIZE" default:"50"`
	FulfillmentMaxAttempts int           `envconfig:"CRAFTMART_FULFILLMENT_MAX_ATTEMPTS" default:"5"`
	FulfillmentStream      string        `envconfig:"CRAFTMART_FULFILLMENT_STREAM" default:"craftmart:fulfillment"`
	FulfillmentAckTimeout  time.Duration `envconfig:"CRAFTMART_FULFILLMENT_ACK_TIMEOUT" default:"15m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
