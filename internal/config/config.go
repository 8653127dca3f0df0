// Package config manages runtime configuration from files and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // embedded zoneinfo

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. LICENSEKIT_SINK_BUCKET.
const EnvPrefix = "LICENSEKIT"

// Config holds the application configuration.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Taxonomy TaxonomyConfig `mapstructure:"taxonomy"`
	Report   ReportConfig   `mapstructure:"report"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	History  HistoryConfig  `mapstructure:"history"`
}

// SourceConfig selects where usage rows are read from.
type SourceConfig struct {
	Kind          string   `mapstructure:"kind" validate:"required,oneof=sql dir"`
	Driver        string   `mapstructure:"driver" validate:"omitempty,oneof=postgres mysql"`
	DSN           string   `mapstructure:"dsn" validate:"required_if=Kind sql"`
	Dir           string   `mapstructure:"dir" validate:"required_if=Kind dir"`
	Datasets      Datasets `mapstructure:"datasets"`
	ContentColumn string   `mapstructure:"content_column" validate:"required"`
	// HRUpdatedColumn is the directory's last-modified column. The latest
	// record per nt_id wins de-duplication.
	HRUpdatedColumn string `mapstructure:"hr_updated_column"`
}

// Datasets names the tables or files holding each input.
type Datasets struct {
	Users   string `mapstructure:"users" validate:"required"`
	Actions string `mapstructure:"actions" validate:"required"`
	HR      string `mapstructure:"hr" validate:"required"`
}

// SinkConfig selects where report tables are written.
type SinkConfig struct {
	Kind   string   `mapstructure:"kind" validate:"required,oneof=s3 dir"`
	Bucket string   `mapstructure:"bucket" validate:"required"`
	Prefix string   `mapstructure:"prefix"`
	Dir    string   `mapstructure:"dir" validate:"required_if=Kind dir"`
	Format string   `mapstructure:"format" validate:"required,oneof=csv xlsx json"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config configures the S3 client. Empty credentials use the default chain.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`
}

// TaxonomyConfig points at an optional taxonomy YAML file.
type TaxonomyConfig struct {
	File string `mapstructure:"file"`
}

// ReportConfig controls report rendering.
type ReportConfig struct {
	Timezone string `mapstructure:"timezone" validate:"required"`
}

// LogConfig controls logger output.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console"`
}

// MetricsConfig enables pushing run metrics to a Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url" validate:"omitempty,url"`
	Job            string `mapstructure:"job" validate:"required_with=PushgatewayURL"`
}

// HistoryConfig locates the run history file.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// SetDefaults registers every key with its default so environment
// overrides apply to all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.kind", "dir")
	v.SetDefault("source.driver", "postgres")
	v.SetDefault("source.dsn", "")
	v.SetDefault("source.dir", "data")
	v.SetDefault("source.datasets.users", "spotfire_if2sf_users")
	v.SetDefault("source.datasets.actions", "spotfire_if2sf_actionlog")
	v.SetDefault("source.datasets.hr", "employee_ghr")
	v.SetDefault("source.content_column", "arg1")
	v.SetDefault("source.hr_updated_column", "last_updated")

	v.SetDefault("sink.kind", "dir")
	v.SetDefault("sink.bucket", "spotfire-admin")
	v.SetDefault("sink.prefix", "")
	v.SetDefault("sink.dir", "out")
	v.SetDefault("sink.format", "csv")
	v.SetDefault("sink.s3.region", "us-east-1")
	v.SetDefault("sink.s3.endpoint", "")
	v.SetDefault("sink.s3.force_path_style", false)
	v.SetDefault("sink.s3.access_key_id", "")
	v.SetDefault("sink.s3.secret_access_key", "")

	v.SetDefault("taxonomy.file", "")
	v.SetDefault("report.timezone", "America/Chicago")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "licensekit")
	v.SetDefault("history.path", filepath.Join(Dir(), "history.jsonl"))
}

// Load reads ~/.licensekit/config.yaml, or path when set, then applies
// environment overrides. A missing default config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.GetViper()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	return &cfg, nil
}

// Location loads the report timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Report.Timezone)
}

// Dir returns the configuration directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".licensekit"
	}
	return filepath.Join(home, ".licensekit")
}

// Path returns the file the configuration was read from, or the default path.
func Path() string {
	if f := viper.ConfigFileUsed(); f != "" {
		return f
	}
	return filepath.Join(Dir(), "config.yaml")
}
