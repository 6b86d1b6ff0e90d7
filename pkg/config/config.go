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
	Eventing     EventingConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Invoicing    InvoicingConfig
	Carrier      CarrierConfig
	Fulfillment  FulfillmentConfig
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
	Env          string   `envconfig:"FULFILLMENT_APP_ENV" required:"true"`
	Port         string   `envconfig:"FULFILLMENT_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"FULFILLMENT_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"FULFILLMENT_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"FULFILLMENT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"FULFILLMENT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FULFILLMENT_SERVICE_KIND" default:"api"`
	// MetricsAddr is where background workers expose /metrics. Blank disables it.
	MetricsAddr string `envconfig:"FULFILLMENT_METRICS_ADDR" default:":9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"FULFILLMENT_DB_DSN"`
	Driver string `envconfig:"FULFILLMENT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FULFILLMENT_DB_HOST"`
	LegacyPort     int    `envconfig:"FULFILLMENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FULFILLMENT_DB_USER"`
	LegacyPassword string `envconfig:"FULFILLMENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"FULFILLMENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"FULFILLMENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FULFILLMENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FULFILLMENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FULFILLMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FULFILLMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"FULFILLMENT_DB_SLOW_QUERY" default:"200ms"`
}

// IsSQLite reports whether the sqlite driver was selected (local runs and tests).
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"FULFILLMENT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FULFILLMENT_REDIS_ADDR"`
	Password     string        `envconfig:"FULFILLMENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"FULFILLMENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FULFILLMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FULFILLMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FULFILLMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FULFILLMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FULFILLMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FULFILLMENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FULFILLMENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FULFILLMENT_JWT_EXPIRATION_MINUTES" default:"720"`
}

type FeatureFlagsConfig struct {
	AutoMigrate      bool `envconfig:"FULFILLMENT_AUTO_MIGRATE" default:"false"`
	RenderDocuments  bool `envconfig:"FULFILLMENT_RENDER_DOCUMENTS" default:"true"`
	AnalyticsEnabled bool `envconfig:"FULFILLMENT_ANALYTICS_ENABLED" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"FULFILLMENT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FULFILLMENT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"FULFILLMENT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FULFILLMENT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"FULFILLMENT_GCS_BUCKET_NAME" required:"true"`
	DocumentPrefix    string        `envconfig:"FULFILLMENT_GCS_DOCUMENT_PREFIX" default:"picklists"`
	DownloadURLExpiry time.Duration `envconfig:"FULFILLMENT_GCS_DOWNLOAD_URL_EXPIRY" default:"24h"`
}

type PubSubConfig struct {
	FulfillmentTopic         string `envconfig:"FULFILLMENT_PUBSUB_FULFILLMENT_TOPIC" default:"fulfillment-events"`
	NotificationTopic        string `envconfig:"FULFILLMENT_PUBSUB_NOTIFICATION_TOPIC" default:"fulfillment-notifications"`
	NotificationSubscription string `envconfig:"FULFILLMENT_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription    string `envconfig:"FULFILLMENT_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset           string `envconfig:"FULFILLMENT_BIGQUERY_DATASET" default:"fulfillment"`
	BatchResultsTable string `envconfig:"FULFILLMENT_BIGQUERY_BATCH_TABLE" default:"batch_order_results"`
	PickListTable     string `envconfig:"FULFILLMENT_BIGQUERY_PICKLIST_TABLE" default:"pick_list_completions"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FULFILLMENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FULFILLMENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FULFILLMENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"FULFILLMENT_OUTBOX_RETENTION_DAYS" default:"30"`
}

type InvoicingConfig struct {
	BaseURL string        `envconfig:"FULFILLMENT_INVOICING_BASE_URL" required:"true"`
	APIKey  string        `envconfig:"FULFILLMENT_INVOICING_API_KEY"`
	Series  string        `envconfig:"FULFILLMENT_INVOICING_SERIES" default:"FCT"`
	Timeout time.Duration `envconfig:"FULFILLMENT_INVOICING_TIMEOUT" default:"20s"`
}

type CarrierConfig struct {
	BaseURL        string        `envconfig:"FULFILLMENT_CARRIER_BASE_URL" required:"true"`
	APIKey         string        `envconfig:"FULFILLMENT_CARRIER_API_KEY"`
	DefaultService string        `envconfig:"FULFILLMENT_CARRIER_DEFAULT_SERVICE" default:"standard"`
	Timeout        time.Duration `envconfig:"FULFILLMENT_CARRIER_TIMEOUT" default:"20s"`
}

type FulfillmentConfig struct {
	PickerRole         string        `envconfig:"FULFILLMENT_PICKER_ROLE" default:"picker"`
	AdminRole          string        `envconfig:"FULFILLMENT_ADMIN_ROLE" default:"admin"`
	SupervisorRole     string        `envconfig:"FULFILLMENT_SUPERVISOR_ROLE" default:"supervisor"`
	PickListCodePrefix string        `envconfig:"FULFILLMENT_PICKLIST_CODE_PREFIX" default:"PL"`
	BatchLockTTL       time.Duration `envconfig:"FULFILLMENT_BATCH_LOCK_TTL" default:"15m"`
	MaxBatchSize       int           `envconfig:"FULFILLMENT_MAX_BATCH_SIZE" default:"200"`
	StalePickListAfter time.Duration `envconfig:"FULFILLMENT_STALE_PICKLIST_AFTER" default:"4h"`
	CronInterval       time.Duration `envconfig:"FULFILLMENT_CRON_INTERVAL" default:"1h"`
	// CronJobs limits the cron worker to these job names; empty runs all.
	CronJobs           []string      `envconfig:"FULFILLMENT_CRON_JOBS"`
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
