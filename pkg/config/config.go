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
	DB           DBConfig
	Redis        RedisConfig
	Ledger       LedgerConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
	Mail         MailConfig
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
	Env          string `envconfig:"BARKEEP_APP_ENV" required:"true"`
	Port         string `envconfig:"BARKEEP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BARKEEP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BARKEEP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"BARKEEP_DB_DSN"`

	Host     string `envconfig:"BARKEEP_DB_HOST"`
	Port     int    `envconfig:"BARKEEP_DB_PORT" default:"5432"`
	User     string `envconfig:"BARKEEP_DB_USER"`
	Password string `envconfig:"BARKEEP_DB_PASSWORD"`
	Name     string `envconfig:"BARKEEP_DB_NAME"`
	SSLMode  string `envconfig:"BARKEEP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BARKEEP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BARKEEP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BARKEEP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BARKEEP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BARKEEP_REDIS_URL"`
	Address      string        `envconfig:"BARKEEP_REDIS_ADDR"`
	Password     string        `envconfig:"BARKEEP_REDIS_PASSWORD"`
	DB           int           `envconfig:"BARKEEP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BARKEEP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BARKEEP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BARKEEP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BARKEEP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BARKEEP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// LedgerConfig fixes the single currency every balance, transfer, and
// transaction is denominated in.
type LedgerConfig struct {
	Currency        string `envconfig:"BARKEEP_LEDGER_CURRENCY" default:"EUR"`
	Precision       int    `envconfig:"BARKEEP_LEDGER_PRECISION" default:"2"`
	DefaultPageSize int    `envconfig:"BARKEEP_LEDGER_DEFAULT_PAGE_SIZE" default:"25"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BARKEEP_CRON_INTERVAL" default:"24h"`
	LockKey  string        `envconfig:"BARKEEP_CRON_LOCK_KEY" default:"barkeep:cron:fines"`
	LockTTL  time.Duration `envconfig:"BARKEEP_CRON_LOCK_TTL" default:"25h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BARKEEP_AUTO_MIGRATE" default:"false"`
}

type MailConfig struct {
	FromAddress string `envconfig:"BARKEEP_MAIL_FROM" default:"treasurer@barkeep.local"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
