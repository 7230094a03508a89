package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pos/analytics/internal/application/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedEnv = []string{
	"POS_APP_NAME",
	"POS_APP_ENV",
	"POS_DATABASE_DRIVER",
	"POS_DATABASE_PATH",
	"POS_DATABASE_HOST",
	"POS_DATABASE_PORT",
	"POS_DATABASE_PASSWORD",
	"POS_DATABASE_SSLMODE",
	"POS_DATABASE_MAX_OPEN_CONNS",
	"POS_DATABASE_MAX_IDLE_CONNS",
	"POS_CACHE_ENABLED",
	"POS_CACHE_BACKEND",
	"POS_CACHE_TTL",
	"POS_CACHE_ALLOW_IN_MEMORY_FALLBACK",
	"POS_ANALYTICS_TARGET_REVENUE",
	"POS_ANALYTICS_REVENUE_WEIGHT",
	"POS_ANALYTICS_MARGIN_WEIGHT",
	"POS_ANALYTICS_COLLECTION_WEIGHT",
	"POS_ANALYTICS_HIGH_RISK_RATIO",
	"POS_ANALYTICS_MEDIUM_RISK_RATIO",
	"POS_ANALYTICS_OVERDUE_IS_HIGH_RISK",
	"POS_ANALYTICS_PRODUCT_TOP_N",
	"POS_ANALYTICS_TIMEZONE",
}

// withCleanEnv saves the managed env vars, clears them and restores them after the test
func withCleanEnv(t *testing.T) func() {
	t.Helper()
	original := make(map[string]string, len(managedEnv))
	for _, k := range managedEnv {
		original[k] = os.Getenv(k)
	}
	t.Cleanup(func() {
		for k, v := range original {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	})
	return func() {
		for _, k := range managedEnv {
			os.Unsetenv(k)
		}
	}
}

func TestLoad(t *testing.T) {
	clearEnv := withCleanEnv(t)

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "pos-analytics", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "pos", cfg.Database.DBName)
		assert.Equal(t, 10, cfg.Database.MaxOpenConns)
		assert.Equal(t, 2, cfg.Database.MaxIdleConns)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.False(t, cfg.Cache.Enabled)
		assert.Equal(t, "memory", cfg.Cache.Backend)
		assert.Equal(t, analytics.DefaultCacheTTL, cfg.Cache.TTL)
		assert.True(t, cfg.Cache.AllowInMemoryFallback)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, analytics.DefaultOptions(), cfg.Analytics.Options())
	})

	t.Run("loads values from environment variables with POS prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("POS_APP_NAME", "till-reports")
		os.Setenv("POS_DATABASE_DRIVER", "sqlite")
		os.Setenv("POS_DATABASE_PATH", "/var/lib/pos/pos.db")
		os.Setenv("POS_CACHE_ENABLED", "true")
		os.Setenv("POS_CACHE_BACKEND", "redis")
		os.Setenv("POS_CACHE_TTL", "90s")
		os.Setenv("POS_ANALYTICS_TARGET_REVENUE", "250000")
		os.Setenv("POS_ANALYTICS_OVERDUE_IS_HIGH_RISK", "false")
		os.Setenv("POS_ANALYTICS_PRODUCT_TOP_N", "25")
		os.Setenv("POS_ANALYTICS_TIMEZONE", "Africa/Nairobi")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "till-reports", cfg.App.Name)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "/var/lib/pos/pos.db", cfg.Database.DSN())
		assert.True(t, cfg.Cache.Enabled)
		assert.Equal(t, "redis", cfg.Cache.Backend)
		assert.Equal(t, 90*time.Second, cfg.Cache.TTL)

		opts := cfg.Analytics.Options()
		assert.Equal(t, 250000.0, opts.TargetRevenue)
		assert.False(t, opts.OverdueIsHighRisk)
		assert.Equal(t, 25, opts.ProductTopN)
		assert.Equal(t, "Africa/Nairobi", opts.Timezone)
		assert.Equal(t, 0.4, opts.RevenueWeight)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("POS_DATABASE_MAX_OPEN_CONNS", "4")
		os.Setenv("POS_DATABASE_MAX_IDLE_CONNS", "8")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		clearEnv()
		os.Setenv("POS_DATABASE_DRIVER", "oracle")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("rejects unknown cache backend", func(t *testing.T) {
		clearEnv()
		os.Setenv("POS_CACHE_BACKEND", "memcached")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.backend")
	})

	t.Run("rejects weights not summing to one", func(t *testing.T) {
		clearEnv()
		os.Setenv("POS_ANALYTICS_REVENUE_WEIGHT", "0.5")
		os.Setenv("POS_ANALYTICS_MARGIN_WEIGHT", "0.5")
		os.Setenv("POS_ANALYTICS_COLLECTION_WEIGHT", "0.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "weights must sum to 1")
	})

	t.Run("rejects medium threshold above high", func(t *testing.T) {
		clearEnv()
		os.Setenv("POS_ANALYTICS_HIGH_RISK_RATIO", "0.2")
		os.Setenv("POS_ANALYTICS_MEDIUM_RISK_RATIO", "0.6")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "medium_risk_ratio")
	})

	t.Run("rejects unknown time zone", func(t *testing.T) {
		clearEnv()
		os.Setenv("POS_ANALYTICS_TIMEZONE", "Atlantis/Capital")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "analytics.timezone")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	clearEnv := withCleanEnv(t)

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("POS_APP_ENV", "production")
		os.Setenv("POS_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("POS_APP_ENV", "production")
		os.Setenv("POS_DATABASE_PASSWORD", "secure-password")
		os.Setenv("POS_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("sqlite needs no credentials in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("POS_APP_ENV", "production")
		os.Setenv("POS_DATABASE_DRIVER", "sqlite")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestLoadFile(t *testing.T) {
	clearEnv := withCleanEnv(t)
	clearEnv()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[database]
driver = "sqlite"
path = ":memory:"

[cache]
enabled = true
ttl = "2m"

[analytics]
target_revenue = 50000
revenue_weight = 0.5
margin_weight = 0.25
collection_weight = 0.25
default_window_days = 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.Database.DSN())
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 50000.0, cfg.Analytics.TargetRevenue)
	assert.Equal(t, 0.5, cfg.Analytics.RevenueWeight)
	assert.Equal(t, 7, cfg.Analytics.DefaultWindowDays)
	assert.True(t, cfg.Analytics.OverdueIsHighRisk, "unset flag keeps its default")

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})

	t.Run("sqlite uses the path", func(t *testing.T) {
		cfg := DatabaseConfig{Driver: "sqlite", Path: "pos.db"}
		assert.Equal(t, "pos.db", cfg.DSN())
	})

	t.Run("mysql", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   "mysql",
			Host:     "db.internal",
			Port:     3306,
			User:     "pos",
			Password: "secret",
			DBName:   "pos",
		}

		dsn := cfg.DSN()
		assert.True(t, strings.HasPrefix(dsn, "pos:secret@tcp(db.internal:3306)/pos?"), dsn)
		assert.Contains(t, dsn, "parseTime=true")
		assert.Contains(t, dsn, "charset=utf8mb4")
	})
}

func TestLoad_MySQLDefaults(t *testing.T) {
	clearEnv := withCleanEnv(t)
	clearEnv()
	os.Setenv("POS_DATABASE_DRIVER", "mysql")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "root", cfg.Database.User)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv := withCleanEnv(t)
	clearEnv()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("POS_APP_NAME=from-dotenv\nPOS_CACHE_BACKEND=redis\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	os.Setenv("POS_CACHE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.App.Name)
	assert.Equal(t, "memory", cfg.Cache.Backend, "process env wins over .env")
}
