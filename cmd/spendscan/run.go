package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/spendscan/internal/daemon"
	"github.com/ArionMiles/spendscan/internal/plugins"
	"github.com/ArionMiles/spendscan/pkg/client"
	"github.com/ArionMiles/spendscan/pkg/config"
)

// runDaemon pipes the configured reader into the configured writer until the
// reader is exhausted or a shutdown signal arrives.
func runDaemon(logger *slog.Logger) error {
	a, err := loadApp(logger)
	if err != nil {
		return err
	}

	registry := plugins.Default()
	scopes, err := registry.Scopes(a.cfg.ReaderPlugin, a.cfg.WriterPlugin)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	httpClient, err := oauthClient(ctx, scopes, logger)
	if err != nil {
		return err
	}

	var postgresDSN string
	if a.cfg.Postgres.Configured() {
		postgresDSN = a.cfg.Postgres.DSN()
	}

	runner := daemon.New(registry, plugins.Deps{
		HTTPClient:  httpClient,
		Parser:      a.parser,
		Directory:   a.directory,
		Concurrency: a.cfg.BatchConcurrency,
		PostgresDSN: postgresDSN,
	}, logger)

	if err := runner.Run(ctx, a.cfg); err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}
	logger.Info("spendscan stopped")
	return nil
}

// oauthClient returns nil when no plugin needs Google APIs.
func oauthClient(ctx context.Context, scopes []string, logger *slog.Logger) (*http.Client, error) {
	if len(scopes) == 0 {
		return nil, nil
	}

	httpClient, err := client.New(ctx, client.Options{
		SecretFile: config.ClientSecretFile,
		Scopes:     scopes,
		Logger:     logger.With("component", "oauth"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating http client: %w", err)
	}
	return httpClient, nil
}
