package config

import (
	"errors"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string
	DBDriver string // sqlite | postgres
	DBDSN    string
	LogFile  string

	MediaDriver string // local | s3
	MediaDir    string
	MediaURL    string // public prefix for asset URLs
	S3Bucket    string
	S3Region    string
	S3Endpoint  string // non-empty for MinIO, R2 and friends
	S3Key       string
	S3Secret    string
	MaxUpload   int // bytes
}

// Load reads configuration from defaults, an optional shopfront.{yaml,toml,json}
// in the working directory (or the file at path), and SHOPFRONT_* env vars,
// in increasing priority.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("port", "8080")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "shopfront.db") // sqlite file in project root
	v.SetDefault("log_file", "./shopfront.log")
	v.SetDefault("media_driver", "local")
	v.SetDefault("media_dir", "./media")
	v.SetDefault("media_url", "/media")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_key", "")
	v.SetDefault("s3_secret", "")
	v.SetDefault("max_upload", 5<<20)

	v.SetEnvPrefix("shopfront")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shopfront")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return Config{}, err
		}
	}

	cfg := Config{
		Port:        v.GetString("port"),
		DBDriver:    v.GetString("db_driver"),
		DBDSN:       v.GetString("db_dsn"),
		LogFile:     v.GetString("log_file"),
		MediaDriver: v.GetString("media_driver"),
		MediaDir:    v.GetString("media_dir"),
		MediaURL:    v.GetString("media_url"),
		S3Bucket:    v.GetString("s3_bucket"),
		S3Region:    v.GetString("s3_region"),
		S3Endpoint:  v.GetString("s3_endpoint"),
		S3Key:       v.GetString("s3_key"),
		S3Secret:    v.GetString("s3_secret"),
		MaxUpload:   v.GetInt("max_upload"),
	}
	log.Printf("[config] PORT=%s DB_DRIVER=%s MEDIA_DRIVER=%s MEDIA_DIR=%s LOG_FILE=%s",
		cfg.Port, cfg.DBDriver, cfg.MediaDriver, cfg.MediaDir, cfg.LogFile)
	return cfg, nil
}
