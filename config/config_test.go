package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATA_DIR", "")
	t.Setenv("PORT", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("ADMIN_USERS", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, filepath.Join("data", "data.json"), cfg.Storage.UsersFile)
	assert.Equal(t, filepath.Join("data", "historial_compras.json"), cfg.Storage.HistoryFile)
	assert.Equal(t, 6, cfg.Auth.MinPasswordLength)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Auth.AdminUsers)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/shop")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ADMIN_USERS", "root,ana")
	t.Setenv("STOCK_SYNC_INTERVAL_SECONDS", "60")

	cfg := Load()

	assert.Equal(t, "/tmp/shop/productos.json", cfg.Storage.ProductsFile)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"root", "ana"}, cfg.Auth.AdminUsers)
	assert.Equal(t, time.Minute, cfg.Business.StockSyncInterval)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
	assert.Equal(t, []string{"a", "b"}, splitList("a,b"))
}
