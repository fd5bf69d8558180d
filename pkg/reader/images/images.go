// Package images implements a Reader over a folder of receipt screenshots.
package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/batch"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Reader recognizes every screenshot once and emits the resulting expenses.
type Reader struct {
	files  []string
	batch  batch.Config
	logger *slog.Logger
}

// New creates a Reader for the images directly inside dir. The Store in cfg
// is replaced by the reader's output channel.
func New(dir string, cfg batch.Config, logger *slog.Logger) (*Reader, error) {
	files, err := ListImages(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{files: files, batch: cfg, logger: logger}, nil
}

// ListImages returns the image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	var files []string
	for _, e := range entries {
		if imageExtensions[strings.ToLower(filepath.Ext(e))] {
			files = append(files, e)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Read runs the batch and returns once every image has been handled.
func (r *Reader) Read(ctx context.Context, out chan<- *api.Expense, _ <-chan string) error {
	defer close(out)

	cfg := r.batch
	cfg.Store = emitter{out: out}
	summary := batch.New(cfg, r.logger).Process(ctx, r.files)

	r.logger.Info(summary.Message(), "batch_id", summary.BatchID)
	if err := ctx.Err(); err != nil {
		return err
	}
	if !summary.Success() && len(summary.Errors) > 0 {
		return errors.New(summary.Message())
	}
	return nil
}

// emitter is an api.Store that hands expenses to the pipeline.
type emitter struct {
	out chan<- *api.Expense
}

func (e emitter) Save(ctx context.Context, expense *api.Expense) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case e.out <- expense:
		return nil
	}
}
