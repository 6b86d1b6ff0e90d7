package config

const (
	EnvPrefix = "FULFILLMENT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv  = "FULFILLMENT_APP_ENV"
	EnvPort    = "FULFILLMENT_APP_PORT"
	EnvLogLvl  = "FULFILLMENT_LOG_LEVEL"
	EnvOrigins = "FULFILLMENT_CORS_ORIGINS"

	EnvDBDSN    = "FULFILLMENT_DB_DSN"
	EnvDBDriver = "FULFILLMENT_DB_DRIVER"
	EnvDBHost   = "FULFILLMENT_DB_HOST"
	EnvDBPort   = "FULFILLMENT_DB_PORT"
	EnvDBUser   = "FULFILLMENT_DB_USER"
	EnvDBPass   = "FULFILLMENT_DB_PASSWORD"
	EnvDBName   = "FULFILLMENT_DB_NAME"

	EnvRedisURL = "FULFILLMENT_REDIS_URL"

	EnvJWTSecret  = "FULFILLMENT_JWT_SECRET"
	EnvJWTIssuer  = "FULFILLMENT_JWT_ISSUER"
	EnvJWTExpMins = "FULFILLMENT_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID      = "FULFILLMENT_GCP_PROJECT_ID"
	EnvGCSBucket         = "FULFILLMENT_GCS_BUCKET_NAME"
	EnvGCSDownloadExpiry = "FULFILLMENT_GCS_DOWNLOAD_URL_EXPIRY"

	EnvPubSubFulfillmentTopic = "FULFILLMENT_PUBSUB_FULFILLMENT_TOPIC"
	EnvPubSubNotifyTopic      = "FULFILLMENT_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotifySub        = "FULFILLMENT_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvInvoicingBaseURL = "FULFILLMENT_INVOICING_BASE_URL"
	EnvInvoicingSeries  = "FULFILLMENT_INVOICING_SERIES"
	EnvCarrierBaseURL   = "FULFILLMENT_CARRIER_BASE_URL"

	EnvBatchLockTTL = "FULFILLMENT_BATCH_LOCK_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
