package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	FeatureFlags   FeatureFlagsConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	RabbitMQ       RabbitMQConfig
	Outbox         OutboxConfig
	IntaSend       IntaSendConfig
	Payout         PayoutConfig
	Reconciliation ReconciliationConfig
	Cron           CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LOTUS_APP_ENV" required:"true"`
	Port         string `envconfig:"LOTUS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LOTUS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOTUS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LOTUS_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"LOTUS_CORS_ALLOWED_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LOTUS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LOTUS_DB_DSN"`
	Driver string `envconfig:"LOTUS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOTUS_DB_HOST"`
	LegacyPort     int    `envconfig:"LOTUS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOTUS_DB_USER"`
	LegacyPassword string `envconfig:"LOTUS_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOTUS_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOTUS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOTUS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOTUS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOTUS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOTUS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOTUS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOTUS_REDIS_ADDR"`
	Password     string        `envconfig:"LOTUS_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOTUS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOTUS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOTUS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOTUS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOTUS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOTUS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LOTUS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LOTUS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LOTUS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LOTUS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LOTUS_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LOTUS_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"LOTUS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"LOTUS_PUBSUB_NOTIFICATION_TOPIC" default:"lotus-notification-events"`
	LedgerTopic       string `envconfig:"LOTUS_PUBSUB_LEDGER_TOPIC" default:"lotus-ledger-events"`
}

type RabbitMQConfig struct {
	URL      string `envconfig:"LOTUS_RABBITMQ_URL"`
	Exchange string `envconfig:"LOTUS_RABBITMQ_EXCHANGE" default:"lotus.events"`
}

type OutboxConfig struct {
	Broker         string `envconfig:"LOTUS_OUTBOX_BROKER" default:"pubsub"`
	BatchSize      int    `envconfig:"LOTUS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"LOTUS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"LOTUS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type IntaSendConfig struct {
	PublicKey        string        `envconfig:"LOTUS_INTASEND_PUBLIC_KEY"`
	SecretKey        string        `envconfig:"LOTUS_INTASEND_SECRET_KEY"`
	TestMode         bool          `envconfig:"LOTUS_INTASEND_TEST_MODE" default:"true"`
	BaseURL          string        `envconfig:"LOTUS_INTASEND_BASE_URL"`
	SourceWalletID   string        `envconfig:"LOTUS_INTASEND_SOURCE_WALLET_ID"`
	CallbackURL      string        `envconfig:"LOTUS_INTASEND_CALLBACK_URL"`
	WebhookChallenge string        `envconfig:"LOTUS_INTASEND_WEBHOOK_CHALLENGE"`
	WebhookSecret    string        `envconfig:"LOTUS_INTASEND_WEBHOOK_SECRET"`
	Timeout          time.Duration `envconfig:"LOTUS_INTASEND_TIMEOUT" default:"20s"`
}

// Environment returns the normalized gateway environment (sandbox/live).
func (c IntaSendConfig) Environment() string {
	if c.TestMode {
		return "sandbox"
	}
	return "live"
}

type PayoutConfig struct {
	Rate              string `envconfig:"LOTUS_PAYOUT_RATE" default:"0.92"`
	Currency          string `envconfig:"LOTUS_PAYOUT_CURRENCY" default:"KES"`
	MobileMoneyMethod string `envconfig:"LOTUS_PAYOUT_MOBILE_MONEY_METHOD" default:"M-PESA"`
	GroupFanOut       bool   `envconfig:"LOTUS_GROUP_FANOUT_ENABLED" default:"true"`
}

// RateDecimal parses the configured payout rate.
func (p PayoutConfig) RateDecimal() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(p.Rate))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func (p PayoutConfig) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(p.Rate))
	if err != nil {
		return fmt.Errorf("%s must be a decimal: %w", EnvPayoutRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be between 0 and 1, got %s", EnvPayoutRate, rate.String())
	}
	return nil
}

type ReconciliationConfig struct {
	DedupeTTL            time.Duration `envconfig:"LOTUS_WEBHOOK_DEDUPE_TTL" default:"72h"`
	InFlightTTL          time.Duration `envconfig:"LOTUS_WEBHOOK_INFLIGHT_TTL" default:"2m"`
	AttemptExpiry        time.Duration `envconfig:"LOTUS_PAYMENT_ATTEMPT_EXPIRY" default:"30m"`
	TransferGapThreshold time.Duration `envconfig:"LOTUS_TRANSFER_GAP_THRESHOLD" default:"15m"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"LOTUS_CRON_INTERVAL" default:"5m"`
	LockTTL         time.Duration `envconfig:"LOTUS_CRON_LOCK_TTL" default:"4m"`
	OutboxRetention time.Duration `envconfig:"LOTUS_OUTBOX_RETENTION" default:"720h"`
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
