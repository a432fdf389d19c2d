package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"docnotary/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadNotaryConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notary.defaults.yml", "gateway:\n  http_listen_addr: \"127.0.0.1:0\"\n")

	cfg, err := config.LoadNotaryConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "single", cfg.Transactions.WatchPolicy)
	assert.Equal(t, 5*time.Minute, cfg.Transactions.ReceiptTimeoutDuration())
	assert.Equal(t, 20, cfg.Gas.BufferPercent)
	assert.Equal(t, "none", cfg.Events.Kind)
	assert.Positive(t, cfg.Fingerprint.Workers)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.KafkaConsumer.Enabled())
}

func TestLoadNotaryConfig_SecretsOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notary.defaults.yml", `
database:
  driver: postgres
  dsn: "postgres://file"
backup:
  enabled: true
  endpoint: "localhost:9000"
`)
	t.Setenv("NOTARY_DATABASE_DSN", "postgres://env")
	t.Setenv("NOTARY_BACKUP_ACCESS_KEY", "access")

	cfg, err := config.LoadNotaryConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, "access", cfg.Backup.AccessKey)
	assert.Equal(t, "notary-backups", cfg.Backup.Bucket)
}

func TestLoadNotaryConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	t.Run("watch policy", func(t *testing.T) {
		path := writeFile(t, dir, "policy.yml", "transactions:\n  watch_policy: parallel\n")
		_, err := config.LoadNotaryConfig(path)
		assert.Error(t, err)
	})

	t.Run("sqlite without path", func(t *testing.T) {
		path := writeFile(t, dir, "db.yml", "database:\n  driver: sqlite\n")
		_, err := config.LoadNotaryConfig(path)
		assert.Error(t, err)
	})

	t.Run("kafka events without topic", func(t *testing.T) {
		path := writeFile(t, dir, "events.yml", "events:\n  kind: kafka\n  kafka:\n    brokers: [\"k:9092\"]\n")
		_, err := config.LoadNotaryConfig(path)
		assert.Error(t, err)
	})
}

func TestLoadBlockchainConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "client_config.yml", `
registry_addresses:
  "31337": "0xabc"
`)
	cfg, err := config.LoadBlockchainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "evm", cfg.BlockchainType)
	assert.Equal(t, 15, cfg.TimeoutSeconds)
	assert.Equal(t, "0xabc", cfg.RegistryAddresses["31337"])
}
