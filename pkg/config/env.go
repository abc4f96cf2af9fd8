package config

const (
	EnvPrefix = "WIEDU"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv      = "WIEDU_APP_ENV"
	EnvPort        = "WIEDU_APP_PORT"
	EnvDBDSN       = "WIEDU_DB_DSN"
	EnvDBDriver    = "WIEDU_DB_DRIVER"
	EnvDBHost      = "WIEDU_DB_HOST"
	EnvDBUser      = "WIEDU_DB_USER"
	EnvDBName      = "WIEDU_DB_NAME"
	EnvDBPassword  = "WIEDU_DB_PASSWORD"
	EnvRedisURL    = "WIEDU_REDIS_URL"
	EnvJWTSecret   = "WIEDU_JWT_SECRET"
	EnvJWTIssuer   = "WIEDU_JWT_ISSUER"
	EnvGCPProject  = "WIEDU_GCP_PROJECT_ID"
	EnvStudyTopic  = "WIEDU_PUBSUB_STUDY_EVENTS_TOPIC"
	EnvCronEvery   = "WIEDU_CRON_INTERVAL"
	EnvApplyWindow = "WIEDU_RATE_LIMIT_APPLY_WINDOW"
)

// legacyDBEnvVars are required when the DSN is not supplied directly.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
