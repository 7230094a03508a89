package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/pos/analytics/internal/application/analytics"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Log       LogConfig
	Analytics AnalyticsConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds the snapshot database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, mysql, sqlite
	Path            string // sqlite file, ":memory:" for an in-memory database
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds report cache settings
type CacheConfig struct {
	Enabled               bool
	Backend               string // memory, redis
	TTL                   time.Duration
	KeyPrefix             string
	AllowInMemoryFallback bool
	CleanupInterval       time.Duration
}

// AnalyticsConfig holds the service-wide analytics defaults
type AnalyticsConfig struct {
	TargetRevenue     float64
	RevenueWeight     float64
	MarginWeight      float64
	CollectionWeight  float64
	HighRiskRatio     float64
	MediumRiskRatio   float64
	OverdueIsHighRisk bool
	ProductTopN       int
	DefaultWindowDays int
	SampleSize        int
	Timezone          string
	MaxIssues         int
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with POS_ prefix (e.g., POS_DATABASE_PASSWORD)
// 2. A .env file in the working directory
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	loadDotEnv()
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pos-analytics")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return fromViper(v)
}

// LoadFile loads configuration from the given TOML file and environment variables
func LoadFile(path string) (*Config, error) {
	loadDotEnv()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return fromViper(v)
}

// loadDotEnv copies a .env file into the process environment.
// Variables already set win and a missing file is ignored.
func loadDotEnv() {
	_ = godotenv.Load()
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans whose default is true need an explicit default to tell unset from false
	v.SetDefault("cache.allow_in_memory_fallback", true)
	v.SetDefault("analytics.overdue_is_high_risk", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Path:            v.GetString("database.path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			Enabled:               v.GetBool("cache.enabled"),
			Backend:               v.GetString("cache.backend"),
			TTL:                   v.GetDuration("cache.ttl"),
			KeyPrefix:             v.GetString("cache.key_prefix"),
			AllowInMemoryFallback: v.GetBool("cache.allow_in_memory_fallback"),
			CleanupInterval:       v.GetDuration("cache.cleanup_interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Analytics: AnalyticsConfig{
			TargetRevenue:     v.GetFloat64("analytics.target_revenue"),
			RevenueWeight:     v.GetFloat64("analytics.revenue_weight"),
			MarginWeight:      v.GetFloat64("analytics.margin_weight"),
			CollectionWeight:  v.GetFloat64("analytics.collection_weight"),
			HighRiskRatio:     v.GetFloat64("analytics.high_risk_ratio"),
			MediumRiskRatio:   v.GetFloat64("analytics.medium_risk_ratio"),
			OverdueIsHighRisk: v.GetBool("analytics.overdue_is_high_risk"),
			ProductTopN:       v.GetInt("analytics.product_top_n"),
			DefaultWindowDays: v.GetInt("analytics.default_window_days"),
			SampleSize:        v.GetInt("analytics.sample_size"),
			Timezone:          v.GetString("analytics.timezone"),
			MaxIssues:         v.GetInt("analytics.max_issues"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pos-analytics"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "pos.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
		if cfg.Database.Driver == "mysql" {
			cfg.Database.Port = 3306
		}
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
		if cfg.Database.Driver == "mysql" {
			cfg.Database.User = "root"
		}
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "pos"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = analytics.DefaultCacheTTL
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = analytics.DefaultKeyPrefix
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = 5 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}

	defaults := analytics.DefaultOptions()
	a := &cfg.Analytics
	if a.TargetRevenue == 0 {
		a.TargetRevenue = defaults.TargetRevenue
	}
	if a.RevenueWeight == 0 && a.MarginWeight == 0 && a.CollectionWeight == 0 {
		a.RevenueWeight = defaults.RevenueWeight
		a.MarginWeight = defaults.MarginWeight
		a.CollectionWeight = defaults.CollectionWeight
	}
	if a.HighRiskRatio == 0 && a.MediumRiskRatio == 0 {
		a.HighRiskRatio = defaults.HighRiskRatio
		a.MediumRiskRatio = defaults.MediumRiskRatio
	}
	if a.ProductTopN == 0 {
		a.ProductTopN = defaults.ProductTopN
	}
	if a.DefaultWindowDays == 0 {
		a.DefaultWindowDays = defaults.DefaultWindowDays
	}
	if a.SampleSize == 0 {
		a.SampleSize = defaults.SampleSize
	}
	if a.Timezone == "" {
		a.Timezone = defaults.Timezone
	}
	if a.MaxIssues == 0 {
		a.MaxIssues = 100
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres, mysql or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl cannot be negative")
	}

	a := c.Analytics
	if a.TargetRevenue <= 0 {
		return fmt.Errorf("analytics.target_revenue must be positive")
	}
	if sum := a.RevenueWeight + a.MarginWeight + a.CollectionWeight; math.Abs(sum-1) > 0.001 {
		return fmt.Errorf("analytics weights must sum to 1, got %g", sum)
	}
	if a.MediumRiskRatio > a.HighRiskRatio {
		return fmt.Errorf("analytics.medium_risk_ratio (%g) cannot exceed analytics.high_risk_ratio (%g)",
			a.MediumRiskRatio, a.HighRiskRatio)
	}
	if a.DefaultWindowDays < 1 {
		return fmt.Errorf("analytics.default_window_days must be positive")
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return fmt.Errorf("analytics.timezone: %w", err)
	}

	if c.App.Env == "production" {
		if c.Database.Driver != "sqlite" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// Options converts the analytics section to service defaults
func (a AnalyticsConfig) Options() analytics.Options {
	return analytics.Options{
		TargetRevenue:     a.TargetRevenue,
		RevenueWeight:     a.RevenueWeight,
		MarginWeight:      a.MarginWeight,
		CollectionWeight:  a.CollectionWeight,
		HighRiskRatio:     a.HighRiskRatio,
		MediumRiskRatio:   a.MediumRiskRatio,
		OverdueIsHighRisk: a.OverdueIsHighRisk,
		ProductTopN:       a.ProductTopN,
		DefaultWindowDays: a.DefaultWindowDays,
		SampleSize:        a.SampleSize,
		Timezone:          a.Timezone,
	}
}

// DSN returns the database connection string with properly escaped values.
// For sqlite it is the database path.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "sqlite":
		return d.Path
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", d.Host, d.Port)
		mc.DBName = d.DBName
		mc.ParseTime = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN()
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
