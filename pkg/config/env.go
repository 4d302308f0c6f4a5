package config

const (
	// EnvPrefix is passed to envconfig; every field carries its full key so the prefix only scopes lookups.
	EnvPrefix = "FARMLINK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:farmlink.db?_busy_timeout=5000&_txlock=immediate"
)

const (
	EnvAppEnv   = "FARMLINK_APP_ENV"
	EnvAppPort  = "FARMLINK_APP_PORT"
	EnvLogLevel = "FARMLINK_LOG_LEVEL"

	EnvDBDSN    = "FARMLINK_DB_DSN"
	EnvDBDriver = "FARMLINK_DB_DRIVER"
	EnvDBHost   = "FARMLINK_DB_HOST"
	EnvDBUser   = "FARMLINK_DB_USER"
	EnvDBName   = "FARMLINK_DB_NAME"

	EnvRedisURL = "FARMLINK_REDIS_URL"

	EnvJWTSecret              = "FARMLINK_JWT_SECRET"
	EnvJWTIssuer              = "FARMLINK_JWT_ISSUER"
	EnvJWTExpirationMinutes   = "FARMLINK_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "FARMLINK_REFRESH_TOKEN_TTL_MINUTES"

	EnvUseSQLite = "FARMLINK_USE_SQLITE"

	EnvPayHereMerchantID     = "FARMLINK_PAYHERE_MERCHANT_ID"
	EnvPayHereMerchantSecret = "FARMLINK_PAYHERE_MERCHANT_SECRET"
	EnvPayHereCurrency       = "FARMLINK_PAYHERE_CURRENCY"
	EnvPayHereReturnURL      = "FARMLINK_PAYHERE_RETURN_URL"
	EnvPayHereCancelURL      = "FARMLINK_PAYHERE_CANCEL_URL"
	EnvPayHereNotifyURL      = "FARMLINK_PAYHERE_NOTIFY_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
