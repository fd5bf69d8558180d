package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/batch"
	"github.com/ArionMiles/spendscan/pkg/command"
	"github.com/ArionMiles/spendscan/pkg/config"
	"github.com/ArionMiles/spendscan/pkg/ocr"
	"github.com/ArionMiles/spendscan/pkg/parser"
	"github.com/ArionMiles/spendscan/pkg/store"
	"github.com/ArionMiles/spendscan/pkg/writer/postgres"
)

// app bundles what every command builds from the environment.
type app struct {
	cfg       config.Config
	parser    *parser.Engine
	directory api.Directory
	logger    *slog.Logger
}

func loadApp(logger *slog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	rules, err := cfg.Rules()
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	engine, err := parser.New(rules, parser.WithLogger(logger.With("component", "parser")))
	if err != nil {
		return nil, fmt.Errorf("compiling rules: %w", err)
	}

	directory, err := cfg.Directory()
	if err != nil {
		return nil, fmt.Errorf("loading directory: %w", err)
	}

	logger.Debug("configuration loaded",
		"rules_file", cfg.RulesFile,
		"directory_file", cfg.DirectoryFile,
		"categories", len(directory.Categories),
		"accounts", len(directory.Accounts),
	)

	return &app{cfg: cfg, parser: engine, directory: directory, logger: logger}, nil
}

// openStore connects to PostgreSQL when it is configured and falls back to
// an in-memory store otherwise. The returned func releases the store.
func (a *app) openStore(ctx context.Context) (api.Store, func(), error) {
	if !a.cfg.Postgres.Configured() {
		a.logger.Info("postgres not configured, keeping expenses in memory")
		return store.NewMemory(), func() {}, nil
	}

	w, err := postgres.New(ctx, postgres.Config{DSN: a.cfg.Postgres.DSN()}, a.logger.With("component", "postgres"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening postgres store: %w", err)
	}
	return w, w.Close, nil
}

func (a *app) processor(s api.Store) *batch.Processor {
	return batch.New(batch.Config{
		Recognizer:  ocr.NewTesseract("", a.cfg.OCRLanguages, a.logger),
		Parser:      a.parser,
		Resolver:    command.NewResolver(a.parser, a.directory, nil),
		Store:       s,
		Concurrency: a.cfg.BatchConcurrency,
	}, a.logger)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
