package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ArionMiles/spendscan/pkg/logging"
)

func main() {
	logger := logging.Setup(logging.FromEnv())

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "run":
		err = runDaemon(logger)
	case "parse":
		err = runParse(logger, args)
	case "batch":
		err = runBatch(logger, args)
	case "serve":
		err = runServe(logger)
	case "setup":
		err = runSetup(logger, args)
	case "status":
		err = runStatus(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if !errors.Is(err, errFailed) {
			logger.Error("command failed", "command", os.Args[1], "error", err)
		}
		os.Exit(1)
	}
}

// errFailed marks a command that already reported its failure to the user.
var errFailed = errors.New("failed")

func printUsage() {
	fmt.Println("spendscan - extract expenses from receipts, screenshots and payment emails")
	fmt.Println("\nUsage:")
	fmt.Println("  spendscan <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Pipe the configured reader into the configured writer")
	fmt.Println("  parse     Parse text from arguments or stdin and print the result")
	fmt.Println("  batch     Recognize and save expenses from screenshot files")
	fmt.Println("  serve     Start the HTTP API")
	fmt.Println("  setup     Authorize access to Google APIs")
	fmt.Println("  status    Check configuration and authentication")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'spendscan <command> -h' for more information on a command.")
}
