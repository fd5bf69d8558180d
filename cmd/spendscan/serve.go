package main

import (
	"log/slog"

	"github.com/ArionMiles/spendscan/internal/server"
)

// runServe starts the HTTP API and blocks until a shutdown signal.
func runServe(logger *slog.Logger) error {
	a, err := loadApp(logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	s, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	srv, err := server.New(server.Config{
		Addr:           a.cfg.HTTP.Addr,
		RateLimit:      a.cfg.HTTP.RateLimit,
		RateBurst:      a.cfg.HTTP.RateBurst,
		AllowedOrigins: a.cfg.HTTP.Origins(),
	}, server.Deps{
		Parser:    a.parser,
		Directory: a.directory,
		Store:     s,
		Batch:     a.processor(s),
	}, logger)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
