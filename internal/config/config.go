package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema             string        `mapstructure:"DB_SCHEMA"`
	QueryTimeout         time.Duration `mapstructure:"QUERY_TIMEOUT"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ReportTimezone       string        `mapstructure:"REPORT_TIMEZONE"`
	StoreTimezone        string        `mapstructure:"STORE_TIMEZONE"`
	ConsultationCapacity int           `mapstructure:"CONSULTATION_CAPACITY"`
	TreatmentCapacity    int           `mapstructure:"TREATMENT_CAPACITY"`
	BookingFee           string        `mapstructure:"BOOKING_FEE"`
	ClosingExcludeTerm   string        `mapstructure:"CLOSING_EXCLUDE_TERM"`
	MaxRangeDays         int           `mapstructure:"MAX_RANGE_DAYS"`
	RedisURL             string        `mapstructure:"REDIS_URL"`
	CacheTTL             time.Duration `mapstructure:"CACHE_TTL"`
	AuthSigningKey       string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer           string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience         string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	MetricsEnabled       bool          `mapstructure:"METRICS_ENABLED"`
}

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "him_ttdi")
	v.SetDefault("QUERY_TIMEOUT", "10s")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("REPORT_TIMEZONE", "Asia/Kuala_Lumpur")
	v.SetDefault("STORE_TIMEZONE", "Asia/Kuala_Lumpur")
	v.SetDefault("CONSULTATION_CAPACITY", 16)
	v.SetDefault("TREATMENT_CAPACITY", 32)
	v.SetDefault("BOOKING_FEE", "50")
	v.SetDefault("CLOSING_EXCLUDE_TERM", "trial")
	v.SetDefault("MAX_RANGE_DAYS", 366)
	v.SetDefault("CACHE_TTL", "0s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("METRICS_ENABLED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL", "DATABASE_URL", "HIM_WELLNESS_TTDI_DB")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DB_SCHEMA")
	v.BindEnv("QUERY_TIMEOUT")
	v.BindEnv("REQUEST_TIMEOUT")
	v.BindEnv("REPORT_TIMEZONE")
	v.BindEnv("STORE_TIMEZONE")
	v.BindEnv("CONSULTATION_CAPACITY")
	v.BindEnv("TREATMENT_CAPACITY")
	v.BindEnv("BOOKING_FEE")
	v.BindEnv("CLOSING_EXCLUDE_TERM")
	v.BindEnv("MAX_RANGE_DAYS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("CACHE_TTL")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("METRICS_ENABLED")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL (or HIM_WELLNESS_TTDI_DB) is required")
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

// ReportLocation is the civil timezone every report date is expressed in.
func (c *Config) ReportLocation() (*time.Location, error) {
	return time.LoadLocation(c.ReportTimezone)
}

// StoreLocation is the timezone the store's naive timestamps were recorded in.
func (c *Config) StoreLocation() (*time.Location, error) {
	return time.LoadLocation(c.StoreTimezone)
}

// Validate checks that the configuration is safe to run. Outside development a
// signing key is required so report endpoints are never served unauthenticated.
func (c *Config) Validate() error {
	if !schemaPattern.MatchString(c.DBSchema) {
		return fmt.Errorf("DB_SCHEMA must be a plain identifier, got %q", c.DBSchema)
	}
	if _, err := c.ReportLocation(); err != nil {
		return fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}
	if _, err := c.StoreLocation(); err != nil {
		return fmt.Errorf("STORE_TIMEZONE: %w", err)
	}
	if c.ConsultationCapacity <= 0 || c.TreatmentCapacity <= 0 {
		return fmt.Errorf("CONSULTATION_CAPACITY and TREATMENT_CAPACITY must be positive")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive")
	}
	if c.MaxRangeDays <= 0 {
		return fmt.Errorf("MAX_RANGE_DAYS must be positive")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative")
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	return nil
}
