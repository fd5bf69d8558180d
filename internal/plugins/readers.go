package plugins

import (
	"encoding/json"
	"errors"
	"fmt"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/batch"
	"github.com/ArionMiles/spendscan/pkg/command"
	"github.com/ArionMiles/spendscan/pkg/ocr"
	"github.com/ArionMiles/spendscan/pkg/reader/gmail"
	"github.com/ArionMiles/spendscan/pkg/reader/images"
	"github.com/ArionMiles/spendscan/pkg/reader/mbox"
	"github.com/ArionMiles/spendscan/pkg/reader/pdf"
)

// ErrNoHTTPClient is returned by plugins that call Google APIs when Deps has
// no authorized client.
var ErrNoHTTPClient = errors.New("an authorized http client is required")

// GmailReader polls Gmail searches for payment notifications.
type GmailReader struct{}

// GmailConfig is the JSON configuration of the gmail reader.
type GmailConfig struct {
	Queries []gmail.Query `json:"queries"`
	// Interval in seconds between query evaluations.
	Interval int `json:"interval,omitempty"`
}

func (p *GmailReader) Name() string { return "gmail" }

func (p *GmailReader) Description() string {
	return "Parse payment notification emails found by Gmail searches"
}

func (p *GmailReader) RequiredScopes() []string {
	return []string{gmailapi.GmailModifyScope}
}

func (p *GmailReader) NewReader(deps Deps, config json.RawMessage) (api.Reader, error) {
	var cfg GmailConfig
	if err := decode(p.Name(), config, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Queries) == 0 {
		return nil, errors.New("gmail: at least one query is required")
	}
	if deps.HTTPClient == nil {
		return nil, fmt.Errorf("gmail: %w", ErrNoHTTPClient)
	}

	return gmail.New(deps.HTTPClient, deps.Parser, gmail.Config{
		Queries:  cfg.Queries,
		Interval: seconds(cfg.Interval),
	}, deps.Logger.With("component", "gmail_reader"))
}

// MboxReader parses an exported mailbox file once.
type MboxReader struct{}

// MboxConfig is the JSON configuration of the mbox reader.
type MboxConfig struct {
	Path   string `json:"path"`
	Source string `json:"source,omitempty"`
}

func (p *MboxReader) Name() string { return "mbox" }

func (p *MboxReader) Description() string {
	return "Parse payment notification emails from an mbox export"
}

func (p *MboxReader) RequiredScopes() []string { return nil }

func (p *MboxReader) NewReader(deps Deps, config json.RawMessage) (api.Reader, error) {
	var cfg MboxConfig
	if err := decode(p.Name(), config, &cfg); err != nil {
		return nil, err
	}
	return mbox.New(deps.Parser, mbox.Config{Path: cfg.Path, Source: cfg.Source},
		deps.Logger.With("component", "mbox_reader"))
}

// PDFReader parses receipt PDFs once.
type PDFReader struct{}

// PDFConfig is the JSON configuration of the pdf reader.
type PDFConfig struct {
	Files  []string `json:"files,omitempty"`
	Dir    string   `json:"dir,omitempty"`
	Source string   `json:"source,omitempty"`
}

func (p *PDFReader) Name() string { return "pdf" }

func (p *PDFReader) Description() string {
	return "Parse electronic receipts and invoices in PDF form"
}

func (p *PDFReader) RequiredScopes() []string { return nil }

func (p *PDFReader) NewReader(deps Deps, config json.RawMessage) (api.Reader, error) {
	var cfg PDFConfig
	if err := decode(p.Name(), config, &cfg); err != nil {
		return nil, err
	}
	return pdf.New(deps.Parser, pdf.Config{Files: cfg.Files, Dir: cfg.Dir, Source: cfg.Source},
		deps.Logger.With("component", "pdf_reader"))
}

// ImagesReader recognizes a folder of payment screenshots.
type ImagesReader struct{}

// ImagesConfig is the JSON configuration of the images reader.
type ImagesConfig struct {
	Dir string `json:"dir"`
}

func (p *ImagesReader) Name() string { return "images" }

func (p *ImagesReader) Description() string {
	return "Recognize payment screenshots in a folder"
}

func (p *ImagesReader) RequiredScopes() []string { return nil }

func (p *ImagesReader) NewReader(deps Deps, config json.RawMessage) (api.Reader, error) {
	var cfg ImagesConfig
	if err := decode(p.Name(), config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return nil, errors.New("images: dir is required")
	}

	recognizer := deps.Recognizer
	if recognizer == nil {
		recognizer = ocr.NewTesseract("", "", deps.Logger)
	}
	return images.New(cfg.Dir, batch.Config{
		Recognizer:  recognizer,
		Parser:      deps.Parser,
		Resolver:    command.NewResolver(deps.Parser, deps.Directory, nil),
		Concurrency: deps.Concurrency,
	}, deps.Logger.With("component", "images_reader"))
}
