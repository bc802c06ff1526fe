// Command banksight cleans raw banking exports, loads them into PostgreSQL
// and serves the report catalog.
//
// Usage:
//
//	banksight clean            normalize raw files into cleaned CSVs
//	banksight load             recreate the schema and load cleaned CSVs
//	banksight run              clean, then load
//	banksight report [id]      list reports, or run one and print it
//	banksight serve            start the HTTP API
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
