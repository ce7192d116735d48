package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "fiscal-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "fs", cfg.Storage.Backend)
	assert.Equal(t, 7, cfg.Storage.RetentionYears)
	assert.Equal(t, 500, cfg.Ingestion.MaxDocumentsPerRun)
	assert.Equal(t, "homologation", cfg.Ingestion.Environment)
	assert.Equal(t, 30*time.Second, cfg.Ingestion.RequestTimeout)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 30, cfg.Vault.ExpiryWarningDays)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, base().validate())
	})

	t.Run("production requires secrets", func(t *testing.T) {
		cfg := base()
		cfg.App.Env = "production"
		assert.Error(t, cfg.validate())

		cfg.JWT.Secret = "s"
		cfg.Vault.MasterKey = "k"
		assert.NoError(t, cfg.validate())
	})

	t.Run("s3 backend requires credentials", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Backend = "s3"
		assert.Error(t, cfg.validate())

		cfg.Storage.Bucket = "fiscal-xml"
		cfg.Storage.AccessKey = "ak"
		cfg.Storage.SecretKey = "sk"
		assert.NoError(t, cfg.validate())
	})

	t.Run("unknown backend is rejected", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Backend = "nfs"
		assert.Error(t, cfg.validate())
	})

	t.Run("unknown ingestion environment is rejected", func(t *testing.T) {
		cfg := base()
		cfg.Ingestion.Environment = "staging"
		assert.Error(t, cfg.validate())
	})
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "fiscal", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=fiscal sslmode=require", d.DSN())
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.Addr())
}
