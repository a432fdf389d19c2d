package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Secrets are values that should not live in YAML files.
// They are read from NOTARY_* environment variables and override the file.
type Secrets struct {
	DatabaseDSN     string   `envconfig:"DATABASE_DSN"`
	DatabasePath    string   `envconfig:"DATABASE_PATH"`
	BackupAccessKey string   `envconfig:"BACKUP_ACCESS_KEY"`
	BackupSecretKey string   `envconfig:"BACKUP_SECRET_KEY"`
	EventBrokers    []string `envconfig:"EVENT_BROKERS"`
	EVMRPCURL       string   `envconfig:"EVM_RPC_URL"`
	EVMPrivateKey   string   `envconfig:"EVM_PRIVATE_KEY"`
}

// LoadSecrets reads the NOTARY_* environment
func LoadSecrets() (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process("NOTARY", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Apply overlays non-empty secrets onto the daemon configuration
func (s *Secrets) Apply(cfg *NotaryConfig) {
	if s.DatabaseDSN != "" {
		cfg.Database.DSN = s.DatabaseDSN
	}
	if s.DatabasePath != "" {
		cfg.Database.Path = s.DatabasePath
	}
	if s.BackupAccessKey != "" {
		cfg.Backup.AccessKey = s.BackupAccessKey
	}
	if s.BackupSecretKey != "" {
		cfg.Backup.SecretKey = s.BackupSecretKey
	}
	if len(s.EventBrokers) > 0 {
		cfg.Events.Kafka.Brokers = s.EventBrokers
	}
}
