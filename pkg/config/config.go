package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "ORDERSYNC"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ORDERSYNC_DB_DSN"
	EnvDBHost = "ORDERSYNC_DB_HOST"
	EnvDBUser = "ORDERSYNC_DB_USER"
	EnvDBName = "ORDERSYNC_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Inbox        InboxConfig
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
	Env          string `envconfig:"ORDERSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERSYNC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ORDERSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// ServiceConfig names which deployable this process is (orders or payments side);
// the relay and migrate CLIs use it to pick the migration set and topic routing.
type ServiceConfig struct {
	Kind string `envconfig:"ORDERSYNC_SERVICE_KIND" default:"orders"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERSYNC_DB_DSN"`
	Driver string `envconfig:"ORDERSYNC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERSYNC_DB_USER"`
	LegacyPassword string `envconfig:"ORDERSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERSYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERSYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERSYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERSYNC_REDIS_URL"`
	Address      string        `envconfig:"ORDERSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ORDERSYNC_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORDERSYNC_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ORDERSYNC_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ORDERSYNC_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrderCreatedTopic            string `envconfig:"ORDERSYNC_PUBSUB_ORDER_CREATED_TOPIC" default:"order.created"`
	PaymentProcessedTopic        string `envconfig:"ORDERSYNC_PUBSUB_PAYMENT_PROCESSED_TOPIC" default:"payment.processed"`
	OrderCreatedSubscription     string `envconfig:"ORDERSYNC_PUBSUB_ORDER_CREATED_SUBSCRIPTION"`
	PaymentProcessedSubscription string `envconfig:"ORDERSYNC_PUBSUB_PAYMENT_PROCESSED_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERSYNC_OUTBOX_PUBLISH_BATCH_SIZE" default:"100"`
	PollIntervalMS int `envconfig:"ORDERSYNC_OUTBOX_PUBLISH_POLL_MS" default:"5000"`
}

type InboxConfig struct {
	// DedupTTL bounds the Redis fast-path markers only; the inbox table itself
	// is retained indefinitely.
	DedupTTL time.Duration `envconfig:"ORDERSYNC_INBOX_DEDUP_TTL" default:"720h"`
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
