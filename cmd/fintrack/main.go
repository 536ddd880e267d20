// Command fintrack manages the ledger from the terminal: add, list and
// remove transactions, print the dashboard summary, render charts and move
// data in and out through CSV, JSON backups and Google Sheets.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
