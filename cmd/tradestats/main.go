// Command tradestats analyses a journal of closed trades.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"trade-analytics/internal/cli"
	"trade-analytics/internal/logging"
)

func main() {
	// Credentials may come from a .env file in the working directory.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %s\n", logging.Redact(err.Error()))
		stop()
		os.Exit(1)
	}
}
