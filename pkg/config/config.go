package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable the platform reads.
const EnvPrefix = "SOUQNA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Auction  AuctionConfig
	Ledger   LedgerConfig
	Delivery DeliveryConfig
	Flags    FeatureFlagsConfig
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
	Env          string `envconfig:"SOUQNA_APP_ENV" required:"true"`
	Port         string `envconfig:"SOUQNA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOUQNA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOUQNA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind            string        `envconfig:"SOUQNA_SERVICE_KIND" default:"api"`
	RateLimit       int64         `envconfig:"SOUQNA_RATE_LIMIT" default:"120"`
	RateLimitWindow time.Duration `envconfig:"SOUQNA_RATE_LIMIT_WINDOW" default:"1m"`
}

type DBConfig struct {
	DSN    string `envconfig:"SOUQNA_DB_DSN"`
	Driver string `envconfig:"SOUQNA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SOUQNA_DB_HOST"`
	Port     int    `envconfig:"SOUQNA_DB_PORT" default:"5432"`
	User     string `envconfig:"SOUQNA_DB_USER"`
	Password string `envconfig:"SOUQNA_DB_PASSWORD"`
	Name     string `envconfig:"SOUQNA_DB_NAME"`
	SSLMode  string `envconfig:"SOUQNA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOUQNA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOUQNA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOUQNA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOUQNA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOUQNA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SOUQNA_REDIS_ADDR"`
	Password     string        `envconfig:"SOUQNA_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOUQNA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOUQNA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOUQNA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOUQNA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOUQNA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOUQNA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SOUQNA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SOUQNA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SOUQNA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SOUQNA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	RealtimeTopic string `envconfig:"SOUQNA_PUBSUB_REALTIME_TOPIC" default:"souqna-realtime-events"`
}

// AuctionConfig tunes the bid/close protocol.
type AuctionConfig struct {
	CloseInterval    time.Duration `envconfig:"SOUQNA_AUCTION_CLOSE_INTERVAL" default:"30s"`
	CloseGracePeriod time.Duration `envconfig:"SOUQNA_AUCTION_CLOSE_GRACE" default:"5s"`
	AntiSnipeWindow  time.Duration `envconfig:"SOUQNA_AUCTION_ANTI_SNIPE_WINDOW" default:"2m"`
	MinIncrementIQD  int64         `envconfig:"SOUQNA_AUCTION_MIN_INCREMENT_IQD" default:"1000"`
	DefaultBidLimit  int64         `envconfig:"SOUQNA_AUCTION_DEFAULT_BID_LIMIT_IQD" default:"100000"`
}

// LedgerConfig tunes settlement math and the payout hold.
type LedgerConfig struct {
	CommissionRate    string        `envconfig:"SOUQNA_LEDGER_COMMISSION_RATE" default:"0.08"`
	FreeSalesPerMonth int           `envconfig:"SOUQNA_LEDGER_FREE_SALES_PER_MONTH" default:"15"`
	HoldPeriod        time.Duration `envconfig:"SOUQNA_LEDGER_HOLD_PERIOD" default:"48h"`
}

// DeliveryConfig tunes courier-event handling.
type DeliveryConfig struct {
	NoAnswerWindow time.Duration `envconfig:"SOUQNA_DELIVERY_NO_ANSWER_WINDOW" default:"24h"`
	NoAnswerBan    time.Duration `envconfig:"SOUQNA_DELIVERY_NO_ANSWER_BAN" default:"168h"`
	WebhookToken   string        `envconfig:"SOUQNA_DELIVERY_WEBHOOK_TOKEN"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SOUQNA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for env, value := range map[string]string{
		"SOUQNA_DB_HOST": db.Host,
		"SOUQNA_DB_USER": db.User,
		"SOUQNA_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either SOUQNA_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
