// Package buffered batches expenses for writers whose destination prefers
// bulk writes, and acknowledges them once a batch lands.
package buffered

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ArionMiles/spendscan/pkg/api"
)

// DefaultBatchSize is the default number of expenses to buffer before flushing.
const DefaultBatchSize = 10

// DefaultFlushInterval is the default interval between automatic flushes.
const DefaultFlushInterval = 30 * time.Second

// Flusher persists one batch. It must either store the whole batch or return an error.
type Flusher func(ctx context.Context, expenses []*api.Expense) error

// Config holds configuration for buffered writing.
type Config struct {
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// FlushInterval defaults to DefaultFlushInterval.
	FlushInterval time.Duration
}

// Writer buffers expenses and flushes them in batches.
type Writer struct {
	buffer  []*api.Expense
	mu      sync.Mutex
	flusher Flusher
	config  Config
	logger  *slog.Logger
}

// New creates a new buffered writer with the given flusher function.
func New(flusher Flusher, cfg Config, logger *slog.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		buffer:  make([]*api.Expense, 0, cfg.BatchSize),
		flusher: flusher,
		config:  cfg,
		logger:  logger,
	}
}

// Write consumes expenses until in is closed or ctx is canceled, flushing on
// batch size, on every interval tick and on exit. The MessageID of every
// expense in a successful batch is sent to ackChan when ackChan is not nil.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Expense, ackChan chan<- string) error {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	w.logger.Info("buffered writer started",
		"batch_size", w.config.BatchSize,
		"flush_interval", w.config.FlushInterval,
	)

	for {
		select {
		case <-ctx.Done():
			return w.handleShutdown()
		case <-ticker.C:
			if err := w.flush(ctx, ackChan); err != nil {
				w.logger.Error("failed to flush on interval", "error", err)
			}
		case expense, ok := <-in:
			if !ok {
				w.logger.Info("input channel closed, flushing remaining buffer")
				return w.flush(ctx, ackChan)
			}
			if w.add(expense) {
				if err := w.flush(ctx, ackChan); err != nil {
					w.logger.Error("failed to flush on batch size", "error", err)
				}
			}
		}
	}
}

// handleShutdown flushes with a fresh context so buffered expenses are not
// lost. Nothing is acknowledged: the reader has stopped listening.
func (w *Writer) handleShutdown() error {
	w.logger.Info("buffered writer stopping, flushing remaining buffer")
	if err := w.flush(context.Background(), nil); err != nil {
		w.logger.Error("failed to flush on shutdown", "error", err)
	}
	return context.Canceled
}

func (w *Writer) add(expense *api.Expense) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, expense)
	return len(w.buffer) >= w.config.BatchSize
}

func (w *Writer) flush(ctx context.Context, ackChan chan<- string) error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}
	toFlush := make([]*api.Expense, len(w.buffer))
	copy(toFlush, w.buffer)
	w.buffer = w.buffer[:0]
	w.mu.Unlock()

	w.logger.Debug("flushing buffer", "count", len(toFlush))

	if err := w.flusher(ctx, toFlush); err != nil {
		return err
	}
	w.logger.Info("flushed expenses", "count", len(toFlush))

	if ackChan == nil {
		return nil
	}
	for _, e := range toFlush {
		if e.MessageID == "" {
			continue
		}
		select {
		case ackChan <- e.MessageID:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// BufferLen returns the current number of buffered expenses.
func (w *Writer) BufferLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}
