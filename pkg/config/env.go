package config

// EnvPrefix is passed to envconfig; every field carries an explicit key so the
// prefix only matters for fields without one.
const EnvPrefix = "CRAFTMART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "CRAFTMART_APP_ENV"
	EnvPort      = "CRAFTMART_APP_PORT"
	EnvDBDSN     = "CRAFTMART_DB_DSN"
	EnvDBHost    = "CRAFTMART_DB_HOST"
	EnvDBUser    = "CRAFTMART_DB_USER"
	EnvDBName    = "CRAFTMART_DB_NAME"
	EnvRedisURL  = "CRAFTMART_REDIS_URL"
	EnvJWTSecret = "CRAFTMART_JWT_SECRET"
	EnvJWTIssuer = "CRAFTMART_JWT_ISSUER"

	EnvPublicBaseURL          = "CRAFTMART_PUBLIC_BASE_URL"
	EnvLemonSqueezyAPIKey     = "CRAFTMART_LEMONSQUEEZY_API_KEY"
	EnvLemonSqueezyStoreID    = "CRAFTMART_LEMONSQUEEZY_STORE_ID"
	EnvLemonSqueezyVariantID  = "CRAFTMART_LEMONSQUEEZY_VARIANT_ID"
	EnvLemonSqueezyWebhookKey = "CRAFTMART_LEMONSQUEEZY_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
