// Package config loads gradebook settings from GRADEBOOK_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix namespaces every environment variable, e.g. GRADEBOOK_STORAGE_DRIVER.
const EnvPrefix = "GRADEBOOK"

// DefaultDotEnv is the file Load reads when it exists.
const DefaultDotEnv = ".env"

// Storage drivers.
const (
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Blob drivers.
const (
	BlobFilesystem = "fs"
	BlobMemory     = "memory"
	BlobS3         = "s3"
)

// Storage selects and configures the persistent store.
type Storage struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// S3 configures the S3-compatible attachment bucket.
type S3 struct {
	Bucket          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// Blob selects and configures attachment storage.
type Blob struct {
	Driver string
	FSRoot string
	S3     S3
}

// Config is the resolved configuration.
type Config struct {
	Storage          Storage
	Blob             Blob
	LogLevel         string
	MetricsNamespace string
}

func defaults(v *viper.Viper) {
	v.SetDefault("storage.driver", StorageSQLite)
	v.SetDefault("sqlite.path", "gradebook.db")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("blob.driver", BlobFilesystem)
	v.SetDefault("blob.fs.root", "./blobdata")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.path_style", false)
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.namespace", "gradebook")
}

// Load reads DefaultDotEnv when present, then the environment.
func Load() (Config, error) {
	return LoadFrom(DefaultDotEnv)
}

// LoadFrom is Load with an explicit .env path. A missing file is ignored;
// variables already set in the environment win over the file.
func LoadFrom(dotEnvPath string) (Config, error) {
	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return Config{}, fmt.Errorf("config: load %s: %w", dotEnvPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: stat %s: %w", dotEnvPath, err)
		}
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		Storage: Storage{
			Driver:      strings.ToLower(v.GetString("storage.driver")),
			SQLitePath:  v.GetString("sqlite.path"),
			PostgresDSN: v.GetString("postgres.dsn"),
		},
		Blob: Blob{
			Driver: strings.ToLower(v.GetString("blob.driver")),
			FSRoot: v.GetString("blob.fs.root"),
			S3: S3{
				Bucket:          v.GetString("blob.s3.bucket"),
				Region:          v.GetString("blob.s3.region"),
				Endpoint:        v.GetString("blob.s3.endpoint"),
				PathStyle:       v.GetBool("blob.s3.path_style"),
				AccessKeyID:     v.GetString("blob.s3.access_key_id"),
				SecretAccessKey: v.GetString("blob.s3.secret_access_key"),
			},
		},
		LogLevel:         strings.ToLower(v.GetString("log.level")),
		MetricsNamespace: v.GetString("metrics.namespace"),
	}
	return cfg, cfg.Validate()
}

// Validate reports unknown drivers and missing driver-specific settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageSQLite, StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			return errors.New("config: blob.s3.bucket required for s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown blob driver %q", c.Blob.Driver)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// NewLogger builds a zap logger at the configured level. Debug level uses
// the development encoder.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
