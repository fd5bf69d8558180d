package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"

	"github.com/ArionMiles/spendscan/pkg/reader/images"
)

// runBatch recognizes every screenshot given as an argument or found in -dir
// and saves the expenses it finds.
func runBatch(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	dir := fs.String("dir", "", "directory of screenshots to process")
	_ = fs.Parse(args)

	files := fs.Args()
	if *dir != "" {
		found, err := images.ListImages(*dir)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return errors.New("usage: spendscan batch [-dir DIR] [IMAGE...]")
	}

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

	summary := a.processor(s).Process(ctx, files)

	fmt.Println(summary.Message())
	for _, e := range summary.Expenses {
		fmt.Printf("  %s  %-16s ¥%s  %s/%s\n",
			e.Timestamp.Format("2006-01-02 15:04"), e.Merchant, e.Amount.StringFixed(2), e.Category, e.Account)
	}

	if !summary.Success() {
		return errFailed
	}
	return nil
}
