package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sealedbid/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"development" validate:"oneof=development staging production test"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres" validate:"oneof=postgres sqlite"`
	DBAutoMigrate  bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"auction_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"auction_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"auction_db"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"sealedbid.db" validate:"required_if=DatabaseDriver sqlite"`

	RedisEnabled      bool   `env:"REDIS_ENABLED"       envDefault:"true"`
	RedisAuctionsHost string `env:"REDIS_AUCTIONS_HOST" envDefault:"localhost"`
	RedisAuctionsPort uint16 `env:"REDIS_AUCTIONS_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	SchedulerInterval    time.Duration   `env:"SCHEDULER_INTERVAL"     envDefault:"1m" validate:"min=1s"`
	WalletInitialGrant   decimal.Decimal `env:"WALLET_INITIAL_GRANT"   envDefault:"1000"`
	AuctionMaxExtensions int             `env:"AUCTION_MAX_EXTENSIONS" envDefault:"0"  validate:"min=0"`
}

// Production hides internal error causes from clients and switches zap to the
// JSON encoder.
func (c *Config) Production() bool { return c.AppEnv == "production" }

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	if cfg.WalletInitialGrant.IsNegative() || !models.FitsMoneyScale(cfg.WalletInitialGrant) {
		err := errors.New("WALLET_INITIAL_GRANT must be non-negative with at most 4 decimal places")
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
