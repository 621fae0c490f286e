package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	devAccessSecret  = "pulsevet-dev-access-secret"
	devRefreshSecret = "pulsevet-dev-refresh-secret"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string   `mapstructure:"REDIS_URL"`
	AMQPURL     string   `mapstructure:"AMQP_URL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	JWTIssuer        string        `mapstructure:"JWT_ISSUER"`
	JWTAccessSecret  string        `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	AccessTokenTTL   time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	BcryptCost       int           `mapstructure:"BCRYPT_COST"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `mapstructure:"LOG_MAX_AGE_DAYS"`

	MetricsEnabled   bool   `mapstructure:"METRICS_ENABLED"`
	MetricsNamespace string `mapstructure:"METRICS_NAMESPACE"`

	DefaultConsultationPrice string `mapstructure:"DEFAULT_CONSULTATION_PRICE"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "AMQP_URL", "CORS_ORIGINS",
	"JWT_ISSUER", "JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET",
	"ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "BCRYPT_COST",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"LOG_LEVEL", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS",
	"METRICS_ENABLED", "METRICS_NAMESPACE",
	"DEFAULT_CONSULTATION_PRICE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("JWT_ISSUER", "pulsevet")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "720h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 28)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_NAMESPACE", "pulsevet")
	v.SetDefault("DEFAULT_CONSULTATION_PRICE", "100.00")

	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		if cfg.JWTAccessSecret == "" {
			cfg.JWTAccessSecret = devAccessSecret
			log.Warn().Msg("JWT_ACCESS_SECRET not set, using development secret")
		}
		if cfg.JWTRefreshSecret == "" {
			cfg.JWTRefreshSecret = devRefreshSecret
			log.Warn().Msg("JWT_REFRESH_SECRET not set, using development secret")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ConsultationPrice is the fallback line price used when an appointment has
// nothing else to bill.
func (c *Config) ConsultationPrice() decimal.Decimal {
	d, err := decimal.NewFromString(c.DefaultConsultationPrice)
	if err != nil {
		return decimal.NewFromInt(100)
	}
	return d
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required (ENV=%q)", c.Env)
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.IsProduction() && (c.JWTAccessSecret == devAccessSecret || c.JWTRefreshSecret == devRefreshSecret) {
		return fmt.Errorf("development JWT secrets are not allowed in production")
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %s", c.AccessTokenTTL)
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL (%s) must exceed ACCESS_TOKEN_TTL (%s)", c.RefreshTokenTTL, c.AccessTokenTTL)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	price, err := decimal.NewFromString(c.DefaultConsultationPrice)
	if err != nil {
		return fmt.Errorf("DEFAULT_CONSULTATION_PRICE is not a decimal: %w", err)
	}
	if price.IsNegative() {
		return fmt.Errorf("DEFAULT_CONSULTATION_PRICE must not be negative")
	}
	return nil
}
