package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable of the ingestion pipeline and the statistics
// engine. Defaults suit local development; every field can be overridden
// from the environment with the ANS_ prefix (ANS_DATABASE_HOST and so on).
type Config struct {
	Database DatabaseConfig

	// SourceBaseURL is the root of the open-data archive holding the
	// registry snapshot and the quarterly disclosure files.
	SourceBaseURL string `split_words:"true" default:"https://dadosabertos.ans.gov.br/FTP/PDA"`

	// DataDir caches downloaded source files between runs.
	DataDir string `split_words:"true" default:"./data"`

	// PeriodCount is the default number of most recent quarters to ingest.
	PeriodCount int `split_words:"true" default:"2"`

	// FetchConcurrency bounds parallel period downloads.
	FetchConcurrency int `split_words:"true" default:"3"`

	// ParseConcurrency bounds parallel per-file parse workers.
	ParseConcurrency int `split_words:"true" default:"2"`

	// BatchSize is the number of rows written per load transaction.
	BatchSize int `split_words:"true" default:"1000"`

	// LoadRetries is how many times a failed batch is retried before it
	// is reported as failed.
	LoadRetries int `split_words:"true" default:"3"`

	// LoadRetryBackoff is the wait between batch retries.
	LoadRetryBackoff time.Duration `split_words:"true" default:"2s"`

	// RunInterval drives the scheduled ingestion mode.
	RunInterval time.Duration `split_words:"true" default:"24h"`

	// CacheTTL bounds how long an aggregation result is served unchanged.
	// Reloads inside the window are intentionally not visible.
	CacheTTL time.Duration `split_words:"true" default:"15m"`

	// HTTPAddr is the listen address of the query API binary.
	HTTPAddr string `split_words:"true" default:":8080"`

	EnableDetailedLogging bool `split_words:"true" default:"true"`
}

// DatabaseConfig holds the MySQL connection settings.
type DatabaseConfig struct {
	Host     string `default:"localhost"`
	Port     int    `default:"3306"`
	User     string `default:"root"`
	Password string `default:""`
	Name     string `default:"ans_despesas"`
}

// DSN builds the go-sql-driver connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Load reads the configuration from the environment on top of the defaults.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("ans", &cfg); err != nil {
		return Config{}, fmt.Errorf("reading configuration: %w", err)
	}
	return cfg, nil
}
