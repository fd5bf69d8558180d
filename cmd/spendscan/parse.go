package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ArionMiles/spendscan/internal/server"
	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/parser"
)

// runParse prints the extraction result for text given as arguments, or for
// stdin when there are none. Each argument is parsed on its own.
func runParse(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	compact := fs.Bool("compact", false, "print one JSON object per line")
	_ = fs.Parse(args)

	a, err := loadApp(logger)
	if err != nil {
		return err
	}

	texts := fs.Args()
	if len(texts) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		if strings.TrimSpace(string(b)) == "" {
			return errors.New("no text given")
		}
		texts = []string{string(b)}
	}

	return writeParseResults(os.Stdout, a.parser, a.directory, texts, !*compact)
}

func writeParseResults(w io.Writer, p *parser.Engine, directory api.Directory, texts []string, indent bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}

	for _, info := range p.ParseAll(texts) {
		category, account := directory.Match(info)
		if err := enc.Encode(server.ParseResult{
			Result:   info,
			Usable:   p.Validate(info),
			Category: category,
			Account:  account,
		}); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	}
	return nil
}
