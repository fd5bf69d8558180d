package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"slices"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/spendscan/internal/plugins"
	"github.com/ArionMiles/spendscan/pkg/client"
	"github.com/ArionMiles/spendscan/pkg/config"
	"github.com/ArionMiles/spendscan/pkg/logging"
	"github.com/ArionMiles/spendscan/pkg/writer/postgres"
)

const checkTimeout = 10 * time.Second

// runStatus checks the configuration and authentication status.
func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	secretsPath := fs.String("credentials", config.ClientSecretFile, "path to the OAuth client secret file")
	_ = fs.Parse(args)

	fmt.Println("=== spendscan Status ===")
	fmt.Println()

	allGood := true

	cfg := checkConfig(&allGood)
	registry := plugins.Default()
	scopes := checkPlugins(registry, cfg, &allGood)
	checkTesseract()
	checkPostgres(cfg, &allGood)

	if len(scopes) > 0 {
		checkCredentials(*secretsPath, &allGood)
		if token := checkTokenStatus(&allGood); token != nil {
			checkAPIConnectivity(*secretsPath, scopes, &allGood)
		}
	}

	printFinalStatus(allGood)
	if !allGood {
		return errFailed
	}
	return nil
}

func checkConfig(allGood *bool) config.Config {
	fmt.Print("Environment: ")
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return cfg
	}
	fmt.Println("✓ Loaded")

	fmt.Print("Extraction rules: ")
	rules, err := cfg.Rules()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
	} else {
		rules = rules.WithDefaults()
		fmt.Printf("✓ %d amount patterns, %d merchant keywords, %d categories\n",
			len(rules.AmountPatterns), len(rules.MerchantKeywords), len(rules.Categories))
	}

	fmt.Print("Directory: ")
	dir, err := cfg.Directory()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
	} else {
		fmt.Printf("✓ %d categories, %d accounts\n", len(dir.Categories), len(dir.Accounts))
	}

	return cfg
}

// checkPlugins returns the scopes the configured plugins need.
func checkPlugins(registry *plugins.Registry, cfg config.Config, allGood *bool) []string {
	fmt.Print("Plugins: ")
	if cfg.ReaderPlugin == "" || cfg.WriterPlugin == "" {
		fmt.Println("- SPENDSCAN_READER or SPENDSCAN_WRITER not set (needed for 'spendscan run')")
		return nil
	}

	scopes, err := registry.Scopes(cfg.ReaderPlugin, cfg.WriterPlugin)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return nil
	}
	fmt.Printf("✓ %s → %s\n", cfg.ReaderPlugin, cfg.WriterPlugin)
	return scopes
}

func checkTesseract() {
	fmt.Print("Tesseract: ")
	path, err := exec.LookPath("tesseract")
	if err != nil {
		fmt.Println("⚠ Not found (screenshot recognition unavailable)")
		return
	}
	fmt.Printf("✓ %s\n", path)
}

func checkPostgres(cfg config.Config, allGood *bool) {
	fmt.Print("PostgreSQL: ")
	if !cfg.Postgres.Configured() {
		fmt.Println("- Not configured (expenses served from memory)")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	w, err := postgres.New(ctx, postgres.Config{DSN: cfg.Postgres.DSN()}, logging.Discard())
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	w.Close()
	fmt.Printf("✓ Connected (%s/%s)\n", cfg.Postgres.Host, cfg.Postgres.Database)
}

func checkCredentials(secretsPath string, allGood *bool) {
	fmt.Printf("Credentials file (%s): ", secretsPath)
	if _, err := os.Stat(secretsPath); errors.Is(err, os.ErrNotExist) {
		fmt.Println("✗ Not found")
		*allGood = false
		return
	}
	fmt.Println("✓ Found")
}

func checkTokenStatus(allGood *bool) *oauth2.Token {
	fmt.Printf("OAuth token (%s): ", client.DefaultTokenFile)
	token, err := client.TokenFromFile(client.DefaultTokenFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Println("✗ Not found (run 'spendscan setup')")
		*allGood = false
		return nil
	case err != nil:
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return nil
	}

	if token.Expiry.Before(time.Now()) {
		fmt.Println("⚠ Expired (will refresh on next run)")
	} else {
		fmt.Printf("✓ Valid (expires: %s)\n", token.Expiry.Format(time.RFC3339))
	}
	return token
}

func checkAPIConnectivity(secretsPath string, scopes []string, allGood *bool) {
	fmt.Println()
	fmt.Println("API Connectivity:")

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	httpClient, err := client.New(ctx, client.Options{
		SecretFile: secretsPath,
		Scopes:     scopes,
		Logger:     logging.Discard(),
	})
	if err != nil {
		fmt.Printf("  OAuth client: ✗ %v\n", err)
		*allGood = false
		return
	}

	if slices.Contains(scopes, gmail.GmailModifyScope) {
		fmt.Print("  Gmail API: ")
		if err := testGmailAPI(ctx, httpClient); err != nil {
			fmt.Printf("✗ %v\n", err)
			*allGood = false
		} else {
			fmt.Println("✓ Connected")
		}
	}

	if slices.Contains(scopes, sheets.SpreadsheetsScope) {
		fmt.Print("  Sheets API: ")
		if _, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient)); err != nil {
			fmt.Printf("✗ %v\n", err)
			*allGood = false
		} else {
			fmt.Println("✓ Client ready")
		}
	}
}

func testGmailAPI(ctx context.Context, httpClient *http.Client) error {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	// Listing labels is the cheapest authenticated call.
	if _, err := svc.Users.Labels.List("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("API call failed: %w", err)
	}
	return nil
}

func printFinalStatus(allGood bool) {
	fmt.Println()
	if allGood {
		fmt.Println("Status: ✓ Ready to run")
		fmt.Println()
		fmt.Println("Run 'spendscan run' or 'spendscan serve' to start.")
	} else {
		fmt.Println("Status: ✗ Configuration issues detected")
		fmt.Println()
		fmt.Println("Fix the issues above, then run 'spendscan status' again.")
	}
}
