package config

const (
	EnvPrefix = "LOTUS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "LOTUS_APP_ENV"
	EnvPort     = "LOTUS_APP_PORT"
	EnvDBDSN    = "LOTUS_DB_DSN"
	EnvDBHost   = "LOTUS_DB_HOST"
	EnvDBUser   = "LOTUS_DB_USER"
	EnvDBName   = "LOTUS_DB_NAME"
	EnvRedisURL = "LOTUS_REDIS_URL"

	EnvJWTSecret = "LOTUS_JWT_SECRET"
	EnvJWTIssuer = "LOTUS_JWT_ISSUER"

	EnvIntaSendSecretKey = "LOTUS_INTASEND_SECRET_KEY"
	EnvIntaSendTestMode  = "LOTUS_INTASEND_TEST_MODE"
	EnvPayoutRate        = "LOTUS_PAYOUT_RATE"
	EnvOutboxBroker      = "LOTUS_OUTBOX_BROKER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
