package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/writer/csv"
	jsonwriter "github.com/ArionMiles/spendscan/pkg/writer/json"
	"github.com/ArionMiles/spendscan/pkg/writer/postgres"
	"github.com/ArionMiles/spendscan/pkg/writer/sheets"
)

// BufferConfig holds the batching options every writer accepts.
type BufferConfig struct {
	BatchSize int `json:"batchSize,omitempty"`
	// FlushInterval in seconds.
	FlushInterval int `json:"flushInterval,omitempty"`
}

// CSVWriter appends expenses to a CSV file.
type CSVWriter struct{}

// FileConfig is the JSON configuration of the file writers.
type FileConfig struct {
	FilePath string `json:"filePath"`
	BufferConfig
}

func (p *CSVWriter) Name() string { return "csv" }

func (p *CSVWriter) Description() string { return "Append expenses to a CSV file" }

func (p *CSVWriter) RequiredScopes() []string { return nil }

func (p *CSVWriter) NewWriter(deps Deps, config json.RawMessage) (api.Writer, error) {
	var cfg FileConfig
	if err := decode(p.Name(), config, &cfg); err != nil {
		return nil, err
	}
	if cfg.FilePath == "" {
		return nil, errors.New("csv: filePath is required")
	}
	return csv.New(csv.Config{
		FilePath:      cfg.FilePath,
		BatchSize:     cfg.BatchSize,
		FlushInterval: seconds(cfg.FlushInterval),
	}, deps.Logger.With("component", "csv_writer"))
}

// JSONWriter keeps expenses in a JSON array file.
type JSONWriter struct{}

func (p *JSONWriter) Name() string { return "json" }

func (p *JSONWriter) Description() string { return "Keep expenses in a JSON file" }

func (p *JSONWriter) RequiredScopes() []string { return nil }

func (p *JSONWriter) NewWriter(deps Deps, config json.RawMessage) (api.Writer, error) {
	var cfg FileConfig
	if err := decode(p.Name(), config, &cfg); err != nil {
		return nil, err
	}
	if cfg.FilePath == "" {
		return nil, errors.New("json: filePath is required")
	}
	return jsonwriter.New(jsonwriter.Config{
		FilePath:      cfg.FilePath,
		BatchSize:     cfg.BatchSize,
		FlushInterval: seconds(cfg.FlushInterval),
	}, deps.Logger.With("component", "json_writer"))
}

// SheetsWriter appends expenses to a Google Sheet.
type SheetsWriter struct{}

// SheetsConfig is the JSON configuration of the sheets writer.
type SheetsConfig struct {
	SheetTitle string `json:"sheetTitle,omitempty"`
	SheetID    string `json:"sheetId,omitempty"`
	SheetName  string `json:"sheetName,omitempty"`
	BufferConfig
}

func (p *SheetsWriter) Name() string { return "sheets" }

func (p *SheetsWriter) Description() string { return "Append expenses to a Google Sheet" }

func (p *SheetsWriter) RequiredScopes() []string {
	return []string{sheetsapi.SpreadsheetsScope}
}

func (p *SheetsWriter) NewWriter(deps Deps, config json.RawMessage) (api.Writer, error) {
	cfg := SheetsConfig{SheetTitle: "spendscan"}
	if err := decode(p.Name(), config, &cfg); err != nil {
		return nil, err
	}
	if deps.HTTPClient == nil {
		return nil, fmt.Errorf("sheets: %w", ErrNoHTTPClient)
	}
	return sheets.New(context.Background(), deps.HTTPClient, sheets.Config{
		SheetTitle:    cfg.SheetTitle,
		SheetID:       cfg.SheetID,
		SheetName:     cfg.SheetName,
		BatchSize:     cfg.BatchSize,
		FlushInterval: seconds(cfg.FlushInterval),
	}, deps.Logger.With("component", "sheets_writer"))
}

// PostgresWriter upserts expenses into PostgreSQL.
type PostgresWriter struct{}

// PostgresConfig is the JSON configuration of the postgres writer.
type PostgresConfig struct {
	// DSN defaults to the connection built from POSTGRES_* variables.
	DSN         string `json:"dsn,omitempty"`
	MaxPoolSize int    `json:"maxPoolSize,omitempty"`
	BufferConfig
}

func (p *PostgresWriter) Name() string { return "postgres" }

func (p *PostgresWriter) Description() string { return "Upsert expenses into a PostgreSQL table" }

func (p *PostgresWriter) RequiredScopes() []string { return nil }

func (p *PostgresWriter) NewWriter(deps Deps, config json.RawMessage) (api.Writer, error) {
	var cfg PostgresConfig
	if err := decode(p.Name(), config, &cfg); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		cfg.DSN = deps.PostgresDSN
	}
	return postgres.New(context.Background(), postgres.Config{
		DSN:           cfg.DSN,
		BatchSize:     cfg.BatchSize,
		FlushInterval: seconds(cfg.FlushInterval),
		MaxPoolSize:   cfg.MaxPoolSize,
	}, deps.Logger.With("component", "postgres_writer"))
}
