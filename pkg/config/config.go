package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Partner       PartnerConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	GCS           GCSConfig
	Outbox        OutboxConfig
	Maintenance   MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARKET_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"MARKET_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"MARKET_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"MARKET_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma-separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	origins := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type DBConfig struct {
	DSN string `envconfig:"MARKET_DB_DSN"`

	LegacyHost     string `envconfig:"MARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKET_DB_USER"`
	LegacyPassword string `envconfig:"MARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn level; zero disables.
	SlowQuery time.Duration `envconfig:"MARKET_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKET_REDIS_URL"`
	Address      string        `envconfig:"MARKET_REDIS_ADDR"`
	Password     string        `envconfig:"MARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
	// Namespace prefixes every key so several deployments can share one database.
	Namespace string `envconfig:"MARKET_REDIS_NAMESPACE" default:"mkt"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MARKET_JWT_EXPIRATION_MINUTES" required:"true"`
	SessionTTLMinutes int    `envconfig:"MARKET_SESSION_TTL_MINUTES" default:"10080"`
}

// SessionTTL returns how long a login session stays revocable in Redis.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

// AccessTTL returns the configured access token lifetime.
func (j JWTConfig) AccessTTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MARKET_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MARKET_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MARKET_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MARKET_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MARKET_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MARKET_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MARKET_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	// imports rewrite a shop's whole catalog, so each partner gets a few per window
	PartnerImportWindow time.Duration `envconfig:"MARKET_RATE_LIMIT_PARTNER_IMPORT_WINDOW" default:"10m"`
	PartnerImportLimit  int           `envconfig:"MARKET_RATE_LIMIT_PARTNER_IMPORT_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MARKET_AUTO_MIGRATE" default:"false"`
}

type PartnerConfig struct {
	FetchTimeout     time.Duration `envconfig:"MARKET_PARTNER_FETCH_TIMEOUT" default:"15s"`
	MaxDocumentBytes int64         `envconfig:"MARKET_PARTNER_MAX_DOCUMENT_BYTES" default:"5242880"`
	UserAgent        string        `envconfig:"MARKET_PARTNER_USER_AGENT" default:"marketplace-partner-import/1.0"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"MARKET_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MARKET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"MARKET_PUBSUB_ORDERS_TOPIC" default:"market-order-events"`
	AccountsTopic         string `envconfig:"MARKET_PUBSUB_ACCOUNTS_TOPIC" default:"market-account-events"`
	CatalogTopic          string `envconfig:"MARKET_PUBSUB_CATALOG_TOPIC" default:"market-catalog-events"`
	AnalyticsSubscription string `envconfig:"MARKET_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"market-analytics"`
}

type BigQueryConfig struct {
	Dataset                string `envconfig:"MARKET_BIGQUERY_DATASET" default:"marketplace"`
	MarketplaceEventsTable string `envconfig:"MARKET_BIGQUERY_EVENTS_TABLE" default:"marketplace_events"`
}

// GCSConfig enables gs:// price-list sources. An empty bucket disables them.
type GCSConfig struct {
	PriceListBucket string `envconfig:"MARKET_GCS_PRICE_LIST_BUCKET"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MaintenanceConfig struct {
	Interval              time.Duration `envconfig:"MARKET_MAINTENANCE_INTERVAL" default:"24h"`
	NotificationRetention time.Duration `envconfig:"MARKET_MAINTENANCE_NOTIFICATION_RETENTION" default:"720h"`
	OutboxRetention       time.Duration `envconfig:"MARKET_MAINTENANCE_OUTBOX_RETENTION" default:"720h"`
}

// ensureDSN assembles a postgres URL from the discrete MARKET_DB_* fields
// when no DSN is given.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	var missing []string
	for _, f := range []struct{ env, value string }{
		{EnvDBHost, db.LegacyHost},
		{EnvDBUser, db.LegacyUser},
		{EnvDBName, db.LegacyName},
	} {
		if f.value == "" {
			missing = append(missing, f.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		user = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}

const minProdSecretLen = 32

// validate reports every setting that parses but cannot work.
func (c *Config) validate() error {
	var err error
	switch strings.ToLower(c.App.LogFormat) {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("MARKET_LOG_FORMAT must be json or console, got %q", c.App.LogFormat))
	}
	if c.App.IsProd() && len(c.JWT.Secret) < minProdSecretLen {
		err = multierr.Append(err, fmt.Errorf("%s must be at least %d bytes in production", EnvJWTSecret, minProdSecretLen))
	}
	if c.JWT.ExpirationMinutes <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvJWTExpMins))
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("outbox batch size and max attempts must be positive"))
	}
	if c.Maintenance.Interval <= 0 {
		err = multierr.Append(err, errors.New("MARKET_MAINTENANCE_INTERVAL must be positive"))
	}
	return err
}
