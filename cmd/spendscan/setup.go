package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/ArionMiles/spendscan/internal/plugins"
	"github.com/ArionMiles/spendscan/pkg/client"
	"github.com/ArionMiles/spendscan/pkg/config"
)

// runSetup handles the OAuth setup flow.
func runSetup(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	force := fs.Bool("force", false, "re-authenticate even if a token exists")
	secretsPath := fs.String("credentials", config.ClientSecretFile, "path to the OAuth client secret file")
	_ = fs.Parse(args)

	fmt.Println("=== spendscan Setup ===")
	fmt.Println()

	if _, err := os.Stat(*secretsPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", *secretsPath, *secretsPath)
	}

	if !*force {
		if _, err := os.Stat(client.DefaultTokenFile); err == nil {
			fmt.Printf("Already authenticated! Token file exists: %s\n", client.DefaultTokenFile)
			fmt.Println()
			fmt.Println("To re-authenticate, run: spendscan setup -force")
			return nil
		}
	} else {
		fmt.Println("Forcing re-authentication...")
		fmt.Println()
	}

	registry := plugins.Default()
	scopes := googleScopes(registry)

	fmt.Println("This will set up OAuth authentication with Google.")
	fmt.Println()
	fmt.Println("Plugins that need access:")
	for _, r := range registry.ListReaders() {
		if len(r.RequiredScopes()) > 0 {
			fmt.Printf("  - %s: %s\n", r.Name(), r.Description())
		}
	}
	for _, w := range registry.ListWriters() {
		if len(w.RequiredScopes()) > 0 {
			fmt.Printf("  - %s: %s\n", w.Name(), w.Description())
		}
	}
	fmt.Println()
	fmt.Println("Starting authentication...")
	fmt.Println()

	ctx, cancel := signalContext(logger)
	defer cancel()

	if err := client.Authorize(ctx, client.Options{
		SecretFile: *secretsPath,
		Scopes:     scopes,
		Logger:     logger.With("component", "oauth"),
	}); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Setup Complete ===")
	fmt.Println()
	fmt.Printf("Token saved to: %s\n", client.DefaultTokenFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Set SPENDSCAN_READER and SPENDSCAN_WRITER (and their _CONFIG JSON)")
	fmt.Println("  2. Run 'spendscan run' to start tracking expenses")
	fmt.Println()

	return nil
}

// googleScopes is the sorted union of every plugin's scopes, so one token
// serves any reader and writer pairing.
func googleScopes(registry *plugins.Registry) []string {
	var scopes []string
	for _, r := range registry.ListReaders() {
		scopes = append(scopes, r.RequiredScopes()...)
	}
	for _, w := range registry.ListWriters() {
		scopes = append(scopes, w.RequiredScopes()...)
	}
	slices.Sort(scopes)
	return slices.Compact(scopes)
}
