package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/ledgerkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from "zero", so a partial file only overrides
// what it names.
type JsonConfig struct {
	DatabaseDSN       *string         `json:"database_dsn"`
	UserID            *string         `json:"user_id"`
	CursorBatchSize   *int            `json:"cursor_batch_size"`
	BusyTimeout       *timex.Duration `json:"busy_timeout"`
	LogLevel          *string         `json:"log_level"`
	BackupDir         *string         `json:"backup_dir"`
	BackupS3Bucket    *string         `json:"backup_s3_bucket"`
	BackupS3Region    *string         `json:"backup_s3_region"`
	BackupS3Endpoint  *string         `json:"backup_s3_endpoint"`
	BackupS3AccessKey *string         `json:"backup_s3_access_key"`
	BackupS3SecretKey *string         `json:"backup_s3_secret_key"`
	BackupS3Prefix    *string         `json:"backup_s3_prefix"`
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// parseJson overlays cfg with the JSON file at path. An empty path is a no-op.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setIf(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setIf(&cfg.UserID, jc.UserID)
	setIf(&cfg.CursorBatchSize, jc.CursorBatchSize)
	if jc.BusyTimeout != nil {
		cfg.BusyTimeout = jc.BusyTimeout.Duration
	}
	setIf(&cfg.LogLevel, jc.LogLevel)
	setIf(&cfg.BackupDir, jc.BackupDir)
	setIf(&cfg.BackupS3Bucket, jc.BackupS3Bucket)
	setIf(&cfg.BackupS3Region, jc.BackupS3Region)
	setIf(&cfg.BackupS3Endpoint, jc.BackupS3Endpoint)
	setIf(&cfg.BackupS3AccessKey, jc.BackupS3AccessKey)
	setIf(&cfg.BackupS3SecretKey, jc.BackupS3SecretKey)
	setIf(&cfg.BackupS3Prefix, jc.BackupS3Prefix)
	return nil
}
