package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"hermannm.dev/devlog"
	"hermannm.dev/devlog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.ErrorCause(err, "command failed")
		stop()
		os.Exit(1)
	}
}

// Colored, human-readable logs in development, JSON logs in production.
func setUpLogging(level slog.Level, isProduction bool) {
	var logHandler slog.Handler
	if isProduction {
		logHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		logHandler = devlog.NewHandler(os.Stderr, &devlog.Options{Level: level})
	}
	slog.SetDefault(slog.New(logHandler))
}
