package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Search.SuggestLimit)
	assert.Equal(t, "http", cfg.Catalog.Source)
	assert.Equal(t, 24*time.Hour, cfg.Catalog.MaxAge)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	content := `
server:
  port: 7000
catalog:
  source: postgres
  maxAge: 1h
redis:
  enabled: true
  cacheTTL: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Catalog.Source)
	assert.Equal(t, time.Hour, cfg.Catalog.MaxAge)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "pg_catalog.csv", cfg.Catalog.CacheFile)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CS_SERVER_PORT", "8181")
	t.Setenv("CS_REDIS_ADDR", "redis:6379")
	t.Setenv("CS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_RejectsUnknownSource(t *testing.T) {
	t.Setenv("CS_CATALOG_SOURCE", "ftp")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.source")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
