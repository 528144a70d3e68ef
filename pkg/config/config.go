package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every engine environment variable.
const EnvPrefix = "posengine"

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Gateway GatewayConfig
	Pin     PinConfig
	Sync    SyncConfig
	Policy  PolicyConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env       string `envconfig:"POSENGINE_APP_ENV" default:"dev"`
	Port      string `envconfig:"POSENGINE_APP_PORT" default:"8080"`
	LogLevel  string `envconfig:"POSENGINE_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"POSENGINE_LOG_FORMAT" default:"json"`
}

type DBConfig struct {
	DSN             string        `envconfig:"POSENGINE_DB_DSN"`
	MaxOpenConns    int           `envconfig:"POSENGINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POSENGINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POSENGINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POSENGINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POSENGINE_REDIS_URL"`
	Address      string        `envconfig:"POSENGINE_REDIS_ADDR"`
	Password     string        `envconfig:"POSENGINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"POSENGINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POSENGINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POSENGINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POSENGINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POSENGINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POSENGINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig bounds the payment gateway calls. A timed-out call is treated
// as failed, never as success.
type GatewayConfig struct {
	AuthorizeTimeout time.Duration `envconfig:"POSENGINE_GATEWAY_AUTHORIZE_TIMEOUT" default:"10s"`
	CaptureTimeout   time.Duration `envconfig:"POSENGINE_GATEWAY_CAPTURE_TIMEOUT" default:"15s"`
}

type PinConfig struct {
	ArgonMemoryKB    int `envconfig:"POSENGINE_PIN_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"POSENGINE_PIN_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"POSENGINE_PIN_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"POSENGINE_PIN_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"POSENGINE_PIN_ARGON_KEY_LEN" default:"32"`
}

type SyncConfig struct {
	Channel        string        `envconfig:"POSENGINE_SYNC_CHANNEL" default:"pos.orders.delta"`
	ReloadInterval time.Duration `envconfig:"POSENGINE_SYNC_RELOAD_INTERVAL" default:"30s"`
	QueueCapacity  int           `envconfig:"POSENGINE_SYNC_QUEUE_CAPACITY" default:"256"`
	IdempotencyTTL time.Duration `envconfig:"POSENGINE_SYNC_IDEMPOTENCY_TTL" default:"24h"`
}

// PolicyConfig carries venue-level behavior the engine exposes but does not
// hard-code.
type PolicyConfig struct {
	TaxRateBPS             int  `envconfig:"POSENGINE_TAX_RATE_BPS" default:"0"`
	CompDepletesInventory  bool `envconfig:"POSENGINE_COMP_DEPLETES_INVENTORY" default:"true"`
	VacateClosesEmptyOrder bool `envconfig:"POSENGINE_VACATE_CLOSES_EMPTY_ORDER" default:"true"`
}
