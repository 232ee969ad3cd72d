package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"pdf-insights/internal/app"
	"pdf-insights/internal/httputil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.BuildHistorian(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			deps.Log.Warn("failed to close dependencies", "err", err)
		}
	}()
	deps.Log.Info("historian starting", "subject", deps.Config.HistorySubject, "table", deps.Config.HistoryTable)

	g, ctx := errgroup.WithContext(ctx)

	// Move published entries into Postgres
	g.Go(func() error {
		return deps.Source.Consume(ctx, deps.Sink)
	})

	// Run health check server
	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps.Log, deps.Config.Port, "historian")
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("historian stopped", "err", err)
	}
}
