// Package config loads lakeio settings from a JSON or YAML file, LAKEIO_*
// environment variables and built-in defaults, in that order of precedence
// (environment wins).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"lakeio/internal/blob"
	"lakeio/internal/storage"
	"lakeio/internal/table"
)

// EnvPrefix prefixes every environment override: blob.token is read from
// LAKEIO_BLOB_TOKEN.
const EnvPrefix = "LAKEIO"

type Config struct {
	Blob    Blob    `mapstructure:"blob"`
	Sink    Sink    `mapstructure:"sink"`
	Ingest  Ingest  `mapstructure:"ingest"`
	Metrics Metrics `mapstructure:"metrics"`
	Logging Logging `mapstructure:"logging"`
}

type Blob struct {
	Kind              string  `mapstructure:"kind"`
	BaseURL           string  `mapstructure:"base_url"`
	Token             string  `mapstructure:"token"`
	ReadOnly          bool    `mapstructure:"read_only"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	ListConcurrency   int     `mapstructure:"list_concurrency"`

	Root string `mapstructure:"root"`

	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type Sink struct {
	Kind               string        `mapstructure:"kind"`
	DSN                string        `mapstructure:"dsn"`
	BulkTimeout        time.Duration `mapstructure:"bulk_timeout"`
	PartitionKeyColumn string        `mapstructure:"partition_key_column"`
	RowKeyColumn       string        `mapstructure:"row_key_column"`
}

type Ingest struct {
	BatchSize int `mapstructure:"batch_size"`
}

type Metrics struct {
	// Backend is "none", "datadog" or "pushgateway".
	Backend        string        `mapstructure:"backend"`
	Job            string        `mapstructure:"job"`
	Tags           string        `mapstructure:"tags"`
	PushgatewayURL string        `mapstructure:"pushgateway_url"`
	FlushEvery     time.Duration `mapstructure:"flush_every"`
}

type Logging struct {
	Debug bool   `mapstructure:"debug"`
	Level string `mapstructure:"level"`
}

// defaults lists every key. Keys must be known to viper for environment
// overrides to reach Unmarshal, so even empty defaults are registered.
var defaults = map[string]any{
	"blob.kind":                 "dbfs",
	"blob.base_url":             "",
	"blob.token":                "",
	"blob.read_only":            false,
	"blob.requests_per_second":  20.0,
	"blob.list_concurrency":     8,
	"blob.root":                 "",
	"blob.endpoint":             "",
	"blob.bucket":               "",
	"blob.prefix":               "",
	"blob.access_key":           "",
	"blob.secret_key":           "",
	"blob.use_ssl":              true,
	"sink.kind":                 "",
	"sink.dsn":                  "",
	"sink.bulk_timeout":         "10m",
	"sink.partition_key_column": table.DefaultKeyColumns.PartitionKey,
	"sink.row_key_column":       table.DefaultKeyColumns.RowKey,
	"ingest.batch_size":         1000,
	"metrics.backend":           "none",
	"metrics.job":               "lakeio",
	"metrics.tags":              "",
	"metrics.pushgateway_url":   "http://localhost:9091",
	"metrics.flush_every":       "60s",
	"logging.debug":             false,
	"logging.level":             "info",
}

// New returns a viper instance carrying defaults and environment bindings.
// Callers may bind command-line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if non-empty) into v and decodes the merged settings.
// The file format follows the extension (.json, .yaml, .yml).
//
// Errors:
//   - The file cannot be read or parsed.
//   - A value cannot be decoded into its field (e.g. a malformed duration).
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = New()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	c.Sink.DSN = os.ExpandEnv(c.Sink.DSN)
	return c, nil
}

// BlobConfig converts the blob section for blob.Open.
func (c Config) BlobConfig() blob.Config {
	b := c.Blob
	return blob.Config{
		Kind:              b.Kind,
		BaseURL:           b.BaseURL,
		Token:             b.Token,
		RequestsPerSecond: b.RequestsPerSecond,
		Root:              b.Root,
		Endpoint:          b.Endpoint,
		Bucket:            b.Bucket,
		Prefix:            b.Prefix,
		AccessKey:         b.AccessKey,
		SecretKey:         b.SecretKey,
		UseSSL:            b.UseSSL,
		ReadOnly:          b.ReadOnly,
		ListConcurrency:   b.ListConcurrency,
	}
}

// StorageConfig converts the sink section for storage.New.
func (c Config) StorageConfig() storage.Config {
	return storage.Config{Kind: c.Sink.Kind, DSN: c.Sink.DSN, BulkTimeout: c.Sink.BulkTimeout}
}

// KeyColumns returns the configured reserved column names.
func (c Config) KeyColumns() table.KeyColumns {
	return table.KeyColumns{PartitionKey: c.Sink.PartitionKeyColumn, RowKey: c.Sink.RowKeyColumn}
}
