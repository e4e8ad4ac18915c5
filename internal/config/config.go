package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
	}
	return d.Path
}

// EngineConfig points at the external forecasting service.
type EngineConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests/second, 0 = unlimited
	Burst     int           `mapstructure:"burst"`
}

type ForecastConfig struct {
	ItemTimeout      time.Duration `mapstructure:"item_timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"` // consecutive failures tolerated; 0 = unlimited
	Retention        time.Duration `mapstructure:"retention"`
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
	HorizonDays      int           `mapstructure:"horizon_days"`
	LeadTimeDays     int           `mapstructure:"lead_time_days"`
	ReorderLevel     int           `mapstructure:"reorder_level"`
	Risk             RiskConfig    `mapstructure:"risk"`
}

type RiskConfig struct {
	CriticalDays int `mapstructure:"critical_days"`
	WatchDays    int `mapstructure:"watch_days"`
}

// ArchiveConfig configures export of finished job reports to S3-compatible storage.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // r2, s3, s3compatible
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Sensitive values and deployment knobs
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("engine.base_url", "FORECAST_ENGINE_URL")
	v.BindEnv("engine.api_key", "FORECAST_ENGINE_API_KEY")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/stockcast.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("engine.base_url", "http://localhost:5001")
	v.SetDefault("engine.timeout", 30*time.Second)
	v.SetDefault("engine.rate_limit", 0)
	v.SetDefault("engine.burst", 1)

	v.SetDefault("forecast.item_timeout", 20*time.Second)
	v.SetDefault("forecast.failure_threshold", 5)
	v.SetDefault("forecast.retention", 10*time.Minute)
	v.SetDefault("forecast.subscriber_buffer", 16)
	v.SetDefault("forecast.horizon_days", 30)
	v.SetDefault("forecast.lead_time_days", 7)
	v.SetDefault("forecast.reorder_level", 10)
	v.SetDefault("forecast.risk.critical_days", 7)
	v.SetDefault("forecast.risk.watch_days", 15)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("archive.bucket", "stockcast-reports")
	v.SetDefault("archive.prefix", "reports")
}

// Validate rejects settings the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.Forecast.ItemTimeout <= 0 {
		return fmt.Errorf("forecast.item_timeout must be positive")
	}
	if c.Forecast.FailureThreshold < 0 {
		return fmt.Errorf("forecast.failure_threshold must not be negative")
	}
	if c.Forecast.Risk.CriticalDays <= 0 || c.Forecast.Risk.WatchDays < c.Forecast.Risk.CriticalDays {
		return fmt.Errorf("forecast.risk: need 0 < critical_days <= watch_days, got %d/%d",
			c.Forecast.Risk.CriticalDays, c.Forecast.Risk.WatchDays)
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archive is enabled")
	}
	return nil
}
