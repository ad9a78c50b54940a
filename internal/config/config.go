// Package config handles configuration for ledgerctl, including defaults,
// JSON overlay, environment and command-line flags.
package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/ledgerkeeper/internal/flagx"
)

// PassphraseEnv names the environment variable the passphrase is read from.
// It is deliberately not a flag or a JSON field.
const PassphraseEnv = "LEDGERKEEPER_PASSPHRASE"

// Config holds runtime settings for the store and its admin tool.
//
// Fields:
//   - DatabaseDSN: SQLite file path or DSN (modernc.org/sqlite).
//   - UserID: the user the session acts for.
//   - CursorBatchSize / BusyTimeout: store tuning.
//   - LogLevel: debug, info, warn or error.
//   - BackupDir: local directory for pre-migration snapshots.
//   - BackupS3*: S3-compatible bucket for snapshots; used when BackupS3Bucket is set.
//   - Passphrase: optional; switches the field key to passphrase mode.
type Config struct {
	DatabaseDSN       string
	UserID            string
	CursorBatchSize   int
	BusyTimeout       time.Duration
	LogLevel          string
	BackupDir         string
	BackupS3Bucket    string
	BackupS3Region    string
	BackupS3Endpoint  string
	BackupS3AccessKey string
	BackupS3SecretKey string
	BackupS3Prefix    string
	Passphrase        string
}

// LoadDefaults populates c with defaults suitable for a single local user.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "ledger.db"
	c.UserID = "local"
	c.CursorBatchSize = 64
	c.BusyTimeout = 5 * time.Second
	c.LogLevel = "info"
	c.BackupDir = "backups"
	c.BackupS3Region = "us-east-1"
}

// LoadBase applies defaults, the JSON file named by -c/-config in args, and the
// environment. Flags are left to the caller's flag set (see RegisterFlags).
func LoadBase(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, flagx.ConfigFileFlag(args)); err != nil {
		return nil, err
	}
	parseEnv(cfg)
	return cfg, nil
}

// LoadConfig builds a Config from defaults, then JSON, then environment, then
// the recognized flags in args. Later sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg, err := LoadBase(args)
	if err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseEnv(cfg *Config) {
	if v, ok := os.LookupEnv(PassphraseEnv); ok {
		cfg.Passphrase = v
	}
}
