package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	SlotDurationMin   int           `mapstructure:"SLOT_DURATION_MIN"`
	HorizonDays       int           `mapstructure:"GEN_HORIZON_DAYS"`
	HorizonInterval   time.Duration `mapstructure:"GEN_INTERVAL"`
	HorizonEnabled    bool          `mapstructure:"GEN_ENABLED"`
	SlotRetentionDays int           `mapstructure:"SLOT_RETENTION_DAYS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("SLOT_DURATION_MIN", 30)
	v.SetDefault("GEN_HORIZON_DAYS", 30)
	v.SetDefault("GEN_INTERVAL", "24h")
	v.SetDefault("GEN_ENABLED", true)
	v.SetDefault("SLOT_RETENTION_DAYS", 7)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("SLOT_DURATION_MIN")
	v.BindEnv("GEN_HORIZON_DAYS")
	v.BindEnv("GEN_INTERVAL")
	v.BindEnv("GEN_ENABLED")
	v.BindEnv("SLOT_RETENTION_DAYS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
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

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.SlotDurationMin < 5 {
		return fmt.Errorf("SLOT_DURATION_MIN must be at least 5 minutes, got %d", c.SlotDurationMin)
	}
	if c.HorizonDays < 1 || c.HorizonDays > 60 {
		return fmt.Errorf("GEN_HORIZON_DAYS must be between 1 and 60, got %d", c.HorizonDays)
	}
	if c.HorizonInterval < time.Minute {
		return fmt.Errorf("GEN_INTERVAL must be at least 1m, got %s", c.HorizonInterval)
	}
	if c.SlotRetentionDays < 0 {
		return fmt.Errorf("SLOT_RETENTION_DAYS must not be negative, got %d", c.SlotRetentionDays)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
