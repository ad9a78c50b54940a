package config

import (
	"flag"
	"strconv"
	"time"

	"github.com/dmitrijs2005/ledgerkeeper/internal/flagx"
)

// Flags lists the global flags RegisterFlags declares.
var Flags = []string{"-d", "-u", "-n", "-t", "-l", "-k", "-b", "-g", "-e", "-a", "-s", "-x"}

// busyTimeout adapts the BusyTimeout duration to a flag counted in seconds.
type busyTimeout struct{ d *time.Duration }

func (b busyTimeout) String() string {
	if b.d == nil {
		return "0"
	}
	return strconv.Itoa(int(b.d.Seconds()))
}

func (b busyTimeout) Set(s string) error {
	secs, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*b.d = time.Duration(secs) * time.Second
	return nil
}

// RegisterFlags declares the global flags on fs, bound to cfg's current values.
//
//	-d string   database DSN
//	-u string   user id
//	-n int      cursor batch size
//	-t int      busy timeout, seconds
//	-l string   log level
//	-k string   local backup directory
//	-b string   S3 backup bucket
//	-g string   S3 region
//	-e string   S3 endpoint (e.g. "http://127.0.0.1:9000")
//	-a string   S3 access key
//	-s string   S3 secret key
//	-x string   S3 object key prefix
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "database DSN")
	fs.StringVar(&c.UserID, "u", c.UserID, "user id")
	fs.IntVar(&c.CursorBatchSize, "n", c.CursorBatchSize, "cursor batch size")
	fs.Var(busyTimeout{&c.BusyTimeout}, "t", "busy timeout (in seconds)")
	fs.StringVar(&c.LogLevel, "l", c.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&c.BackupDir, "k", c.BackupDir, "local backup directory")
	fs.StringVar(&c.BackupS3Bucket, "b", c.BackupS3Bucket, "S3 backup bucket")
	fs.StringVar(&c.BackupS3Region, "g", c.BackupS3Region, "S3 region")
	fs.StringVar(&c.BackupS3Endpoint, "e", c.BackupS3Endpoint, "S3 endpoint")
	fs.StringVar(&c.BackupS3AccessKey, "a", c.BackupS3AccessKey, "S3 access key")
	fs.StringVar(&c.BackupS3SecretKey, "s", c.BackupS3SecretKey, "S3 secret key")
	fs.StringVar(&c.BackupS3Prefix, "x", c.BackupS3Prefix, "S3 object key prefix")
}

// parseFlags overlays cfg with the global flags found in args. Everything
// else in args is ignored.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	return fs.Parse(flagx.FilterArgs(args, Flags))
}
