package config

// EnvPrefix is handed to envconfig; every field carries an explicit name.
const EnvPrefix = "MARKET"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "MARKET_APP_ENV"
	EnvPort     = "MARKET_APP_PORT"
	EnvLogLevel = "MARKET_LOG_LEVEL"

	EnvDBDSN  = "MARKET_DB_DSN"
	EnvDBHost = "MARKET_DB_HOST"
	EnvDBPort = "MARKET_DB_PORT"
	EnvDBUser = "MARKET_DB_USER"
	EnvDBPass = "MARKET_DB_PASSWORD"
	EnvDBName = "MARKET_DB_NAME"

	EnvRedisURL = "MARKET_REDIS_URL"

	EnvJWTSecret  = "MARKET_JWT_SECRET"
	EnvJWTIssuer  = "MARKET_JWT_ISSUER"
	EnvJWTExpMins = "MARKET_JWT_EXPIRATION_MINUTES"
	EnvSessionTTL = "MARKET_SESSION_TTL_MINUTES"

	EnvPartnerFetchTimeout = "MARKET_PARTNER_FETCH_TIMEOUT"

	EnvGCPProjectID      = "MARKET_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "MARKET_PUBSUB_ORDERS_TOPIC"
)
