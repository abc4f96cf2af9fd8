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
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string `envconfig:"WIEDU_APP_ENV" required:"true"`
	Port         string `envconfig:"WIEDU_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WIEDU_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"WIEDU_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"WIEDU_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"WIEDU_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"WIEDU_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"WIEDU_DB_DSN"`
	Driver string `envconfig:"WIEDU_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WIEDU_DB_HOST"`
	LegacyPort     int    `envconfig:"WIEDU_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WIEDU_DB_USER"`
	LegacyPassword string `envconfig:"WIEDU_DB_PASSWORD"`
	LegacyName     string `envconfig:"WIEDU_DB_NAME"`
	LegacySSLMode  string `envconfig:"WIEDU_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WIEDU_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WIEDU_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WIEDU_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WIEDU_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite dialector was requested.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"WIEDU_REDIS_URL"`
	Address      string        `envconfig:"WIEDU_REDIS_ADDR"`
	Password     string        `envconfig:"WIEDU_REDIS_PASSWORD"`
	DB           int           `envconfig:"WIEDU_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WIEDU_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WIEDU_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WIEDU_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WIEDU_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WIEDU_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes how access tokens minted by the identity service are verified.
type JWTConfig struct {
	Secret            string `envconfig:"WIEDU_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"WIEDU_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"WIEDU_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RateLimitConfig struct {
	ApplyWindow    time.Duration `envconfig:"WIEDU_RATE_LIMIT_APPLY_WINDOW" default:"1m"`
	ApplyUserLimit int           `envconfig:"WIEDU_RATE_LIMIT_APPLY_USER_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"WIEDU_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"WIEDU_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	StudyEventsTopic string `envconfig:"WIEDU_PUBSUB_STUDY_EVENTS_TOPIC" default:"wiedu-study-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"WIEDU_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"WIEDU_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"WIEDU_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"WIEDU_CRON_INTERVAL" default:"1h"`
	OutboxRetentionDays int           `envconfig:"WIEDU_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
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
