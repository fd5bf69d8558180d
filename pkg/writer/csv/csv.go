// Package csv implements a Writer that appends expenses to a CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/writer/buffered"
)

// Header is the first row of every file the writer creates.
var Header = []string{"ID", "Timestamp", "Merchant", "Amount", "Category", "Account", "Note", "Source", "Confidence"}

// Writer writes expenses to a CSV file with buffered batching.
type Writer struct {
	filePath string
	file     *os.File
	writer   *csv.Writer
	mu       sync.Mutex
	buffered *buffered.Writer
	logger   *slog.Logger
}

// Config holds configuration for the CSV writer.
type Config struct {
	FilePath      string
	BatchSize     int
	FlushInterval time.Duration
}

// New opens or creates the CSV file, writing the header into a new file.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}

	w := &Writer{
		filePath: cfg.FilePath,
		file:     file,
		writer:   csv.NewWriter(file),
		logger:   logger,
	}

	stat, err := file.Stat()
	if err != nil {
		return nil, closeOnError(file, fmt.Errorf("stat csv file: %w", err))
	}
	if stat.Size() == 0 {
		if err := w.writeRow(Header); err != nil {
			return nil, closeOnError(file, fmt.Errorf("writing headers: %w", err))
		}
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "csv_buffer"))

	logger.Info("csv writer initialized", "file", cfg.FilePath)
	return w, nil
}

func closeOnError(f *os.File, err error) error {
	if closeErr := f.Close(); closeErr != nil {
		return fmt.Errorf("%w (close error: %w)", err, closeErr)
	}
	return err
}

func (w *Writer) writeRow(row []string) error {
	if err := w.writer.Write(row); err != nil {
		return err
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Write consumes expenses from the input channel and writes them to CSV.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Expense, ackChan chan<- string) error {
	defer w.Close()
	return w.buffered.Write(ctx, in, ackChan)
}

// Record renders an expense as a CSV row matching Header.
func Record(e *api.Expense) []string {
	return []string{
		e.ID,
		e.Timestamp.Format(time.DateTime),
		e.Merchant,
		e.Amount.StringFixed(2),
		e.Category,
		e.Account,
		e.Note,
		e.Source,
		strconv.FormatFloat(e.Confidence, 'f', -1, 64),
	}
}

func (w *Writer) flushBatch(_ context.Context, expenses []*api.Expense) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range expenses {
		if err := w.writer.Write(Record(e)); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	w.logger.Debug("wrote expenses to csv", "count", len(expenses))
	return nil
}

// Close closes the CSV file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing csv file: %w", err)
	}

	w.logger.Info("csv writer closed", "file", w.filePath)
	return nil
}
