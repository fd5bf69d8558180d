// Package pdf implements a Reader over receipt PDFs, one expense per file.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/ArionMiles/spendscan/pkg/api"
)

// DefaultSource tags expenses read from PDF receipts.
const DefaultSource = "pdf"

// Config holds configuration for the PDF reader. Files and Dir may be combined;
// Dir contributes every *.pdf directly inside it.
type Config struct {
	Files  []string
	Dir    string
	Source string
}

// Reader parses a fixed set of PDF files once.
type Reader struct {
	files   []string
	source  string
	parser  api.Parser
	extract func(path string) (string, error)
	logger  *slog.Logger
}

// New creates a PDF reader and resolves its file list.
func New(p api.Parser, cfg Config, logger *slog.Logger) (*Reader, error) {
	files := append([]string(nil), cfg.Files...)
	if cfg.Dir != "" {
		matches, err := filepath.Glob(filepath.Join(cfg.Dir, "*.pdf"))
		if err != nil {
			return nil, fmt.Errorf("listing pdf directory: %w", err)
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, errors.New("no pdf files configured")
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		files:   files,
		source:  cfg.Source,
		parser:  p,
		extract: ExtractText,
		logger:  logger,
	}, nil
}

// Read sends one expense per usable file and returns when all files are done.
func (r *Reader) Read(ctx context.Context, out chan<- *api.Expense, _ <-chan string) error {
	defer close(out)

	var emitted int
	for _, path := range r.files {
		if err := ctx.Err(); err != nil {
			return err
		}

		text, err := r.extract(path)
		if err != nil {
			r.logger.Warn("skipping pdf", "path", path, "error", err)
			continue
		}

		info := r.parser.Parse(text)
		if !r.parser.Validate(info) {
			r.logger.Debug("pdf is not a usable receipt", "path", path, "confidence", info.Confidence)
			continue
		}

		received := time.Now()
		if st, err := os.Stat(path); err == nil {
			received = st.ModTime()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- api.NewExpense(info, r.source, path, received):
			emitted++
		}
	}

	r.logger.Info("pdf read complete", "files", len(r.files), "expenses", emitted)
	return nil
}

// ExtractText returns the plain text of every page in the PDF at path.
// Malformed files make the pdf library panic; that is reported as an error.
func ExtractText(path string) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reading pdf %s: %v", path, rec)
		}
	}()

	f, doc, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", path, err)
	}
	return buf.String(), nil
}
