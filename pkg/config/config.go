// Package config loads spendscan's process configuration from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/parser"
)

// ClientSecretFile is the default path to the Google OAuth credentials JSON file.
const ClientSecretFile = "data/client_secret.json"

// Defaults applied by Load when the environment leaves a value unset.
const (
	DefaultHTTPAddr         = ":8080"
	DefaultRateLimit        = 5.0
	DefaultRateBurst        = 10
	DefaultOCRLanguages     = "chi_sim+eng"
	DefaultBatchConcurrency = 4
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// ReaderPlugin is the name of the reader plugin to use.
	// Environment variable: SPENDSCAN_READER
	ReaderPlugin string `koanf:"SPENDSCAN_READER"`

	// WriterPlugin is the name of the writer plugin to use.
	// Environment variable: SPENDSCAN_WRITER
	WriterPlugin string `koanf:"SPENDSCAN_WRITER"`

	// ReaderConfig is the JSON configuration for the reader plugin.
	// Environment variable: SPENDSCAN_READER_CONFIG
	ReaderConfig string `koanf:"SPENDSCAN_READER_CONFIG"`

	// WriterConfig is the JSON configuration for the writer plugin.
	// Environment variable: SPENDSCAN_WRITER_CONFIG
	WriterConfig string `koanf:"SPENDSCAN_WRITER_CONFIG"`

	// RulesFile optionally overlays the built-in extraction rules.
	// Environment variable: SPENDSCAN_RULES_FILE
	RulesFile string `koanf:"SPENDSCAN_RULES_FILE"`

	// DirectoryFile optionally replaces the default categories and accounts.
	// Environment variable: SPENDSCAN_DIRECTORY_FILE
	DirectoryFile string `koanf:"SPENDSCAN_DIRECTORY_FILE"`

	HTTP HTTPConfig `koanf:",squash"`

	// OCRLanguages is passed to tesseract's -l flag.
	// Environment variable: SPENDSCAN_OCR_LANG
	OCRLanguages string `koanf:"SPENDSCAN_OCR_LANG"`

	// BatchConcurrency bounds how many screenshots are recognized at once.
	// Environment variable: SPENDSCAN_BATCH_CONCURRENCY
	BatchConcurrency int `koanf:"SPENDSCAN_BATCH_CONCURRENCY"`

	// PostgreSQL configuration (can be used by the postgres writer plugin and the HTTP store)
	Postgres PostgresConfig `koanf:",squash"`
}

// ReaderJSON returns ReaderConfig, or an empty object when unset.
func (c Config) ReaderJSON() json.RawMessage {
	return rawOrEmpty(c.ReaderConfig)
}

// WriterJSON returns WriterConfig, or an empty object when unset.
func (c Config) WriterJSON() json.RawMessage {
	return rawOrEmpty(c.WriterConfig)
}

func rawOrEmpty(s string) json.RawMessage {
	if strings.TrimSpace(s) == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(s)
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr string `koanf:"SPENDSCAN_HTTP_ADDR"`
	// RateLimit is the sustained requests per second allowed per client.
	RateLimit float64 `koanf:"SPENDSCAN_RATE_LIMIT"`
	RateBurst int     `koanf:"SPENDSCAN_RATE_BURST"`
	// AllowedOrigins is a comma separated CORS allow list; empty disables CORS headers.
	AllowedOrigins string `koanf:"SPENDSCAN_ALLOWED_ORIGINS"`
}

// Origins splits AllowedOrigins.
func (h HTTPConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(h.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// Configured reports whether enough is set to attempt a connection.
func (p PostgresConfig) Configured() bool {
	return p.Host != "" && p.Database != ""
}

// DSN returns a libpq style connection string.
func (p PostgresConfig) DSN() string {
	port := p.Port
	if port == 0 {
		port = 5432
	}
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		p.Host, port, p.Database, p.User, p.Password, sslMode)
}

// Load reads the process environment.
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("decoding environment: %w", err)
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
	if cfg.HTTP.RateLimit <= 0 {
		cfg.HTTP.RateLimit = DefaultRateLimit
	}
	if cfg.HTTP.RateBurst <= 0 {
		cfg.HTTP.RateBurst = DefaultRateBurst
	}
	if cfg.OCRLanguages == "" {
		cfg.OCRLanguages = DefaultOCRLanguages
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}
	return cfg, nil
}

// Rules returns the extraction rules, overlaid with RulesFile when set.
func (c Config) Rules() (parser.Rules, error) {
	if c.RulesFile == "" {
		return parser.DefaultRules(), nil
	}
	return parser.LoadRules(c.RulesFile)
}

// Directory returns the category and account directory, read from DirectoryFile when set.
func (c Config) Directory() (api.Directory, error) {
	if c.DirectoryFile == "" {
		return api.DefaultDirectory(), nil
	}
	return api.LoadDirectory(c.DirectoryFile)
}
