// Package daemon connects a reader to a writer and runs them until the
// reader is exhausted or the context is canceled.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ArionMiles/spendscan/internal/plugins"
	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/config"
)

const channelSize = 100

// Runner manages the pipeline lifecycle.
type Runner struct {
	registry *plugins.Registry
	deps     plugins.Deps
	logger   *slog.Logger
}

// New creates a new daemon runner.
func New(registry *plugins.Registry, deps plugins.Deps, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	deps.Logger = logger
	return &Runner{registry: registry, deps: deps, logger: logger}
}

// Run builds the configured reader and writer and pipes one into the other.
func (r *Runner) Run(ctx context.Context, cfg config.Config) error {
	if cfg.ReaderPlugin == "" {
		return errors.New("SPENDSCAN_READER environment variable is required")
	}
	if cfg.WriterPlugin == "" {
		return errors.New("SPENDSCAN_WRITER environment variable is required")
	}

	r.logger.Info("starting spendscan daemon", "reader", cfg.ReaderPlugin, "writer", cfg.WriterPlugin)

	reader, err := r.registry.CreateReader(cfg.ReaderPlugin, r.deps, cfg.ReaderJSON())
	if err != nil {
		return fmt.Errorf("creating reader: %w", err)
	}
	writer, err := r.registry.CreateWriter(cfg.WriterPlugin, r.deps, cfg.WriterJSON())
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	return Pipe(ctx, reader, writer, r.logger)
}

// Pipe runs writer in the background and reader in the foreground, then waits
// for the writer to drain. Cancellation is not reported as an error.
//
// Acknowledgments are queued between the two so a writer never blocks on a
// reader that does not consume them.
func Pipe(ctx context.Context, reader api.Reader, writer api.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	expenses := make(chan *api.Expense, channelSize)
	writerAcks := make(chan string, channelSize)
	readerAcks := make(chan string, channelSize)
	readerDone := make(chan struct{})

	writerDone := make(chan error, 1)
	go func() {
		err := writer.Write(ctx, expenses, writerAcks)
		close(writerAcks)
		writerDone <- err
	}()

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relayAcks(writerAcks, readerAcks, readerDone)
	}()

	logger.Info("daemon started")
	readErr := reader.Read(ctx, expenses, readerAcks)
	close(readerDone)
	if readErr != nil && !errors.Is(readErr, context.Canceled) {
		logger.Error("reader error", "error", readErr)
	} else {
		readErr = nil
	}

	writeErr := <-writerDone
	<-relayDone
	if writeErr != nil && !errors.Is(writeErr, context.Canceled) {
		logger.Error("writer error", "error", writeErr)
	} else {
		writeErr = nil
	}

	logger.Info("daemon stopped")
	return errors.Join(readErr, writeErr)
}

// relayAcks forwards acknowledgments from the writer to the reader through an
// unbounded queue. Once the reader is done, remaining acks are discarded.
// It returns when from is closed.
func relayAcks(from <-chan string, to chan<- string, readerDone <-chan struct{}) {
	var (
		queue   []string
		discard bool
	)
	for {
		var (
			send chan<- string
			next string
		)
		if len(queue) > 0 {
			send = to
			next = queue[0]
		}

		select {
		case id, ok := <-from:
			if !ok {
				return
			}
			if !discard {
				queue = append(queue, id)
			}
		case send <- next:
			queue = queue[1:]
		case <-readerDone:
			queue = nil
			discard = true
			readerDone = nil
		}
	}
}
