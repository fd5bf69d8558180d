// Package json implements a Writer that keeps expenses in a JSON array file.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/writer/buffered"
)

// Writer writes expenses to a JSON file with buffered batching.
type Writer struct {
	filePath string
	expenses []*api.Expense
	mu       sync.Mutex
	buffered *buffered.Writer
	logger   *slog.Logger
}

// Config holds configuration for the JSON writer.
type Config struct {
	FilePath      string
	BatchSize     int
	FlushInterval time.Duration
}

// New creates a JSON writer, loading any expenses already in the file.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w := &Writer{
		filePath: cfg.FilePath,
		expenses: make([]*api.Expense, 0),
		logger:   logger,
	}

	if err := w.loadExisting(); err != nil {
		return nil, fmt.Errorf("loading existing expenses: %w", err)
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "json_buffer"))

	logger.Info("json writer initialized", "file", cfg.FilePath, "existing_count", len(w.expenses))
	return w, nil
}

func (w *Writer) loadExisting() error {
	data, err := os.ReadFile(w.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &w.expenses)
}

// Write consumes expenses from the input channel and writes them to JSON.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Expense, ackChan chan<- string) error {
	return w.buffered.Write(ctx, in, ackChan)
}

// flushBatch rewrites the whole file; a JSON array cannot be appended to in place.
func (w *Writer) flushBatch(_ context.Context, expenses []*api.Expense) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	all := append(w.expenses, expenses...)
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	tmp := w.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}
	if err := os.Rename(tmp, w.filePath); err != nil {
		return fmt.Errorf("replacing json file: %w", err)
	}
	w.expenses = all

	w.logger.Debug("wrote expenses to json",
		"batch_count", len(expenses),
		"total_count", len(w.expenses),
	)
	return nil
}

// Count returns the total number of expenses in the file.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.expenses)
}
