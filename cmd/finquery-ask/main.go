package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/finquery/finquery/internal/cli/finqueryask"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := finqueryask.Run(ctx, os.Args[1:], finqueryask.Options{
		BaseURL: os.Getenv("FINQUERY_BASE_URL"),
		APIKey:  os.Getenv("FINQUERY_API_KEY"),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
	os.Exit(code)
}
