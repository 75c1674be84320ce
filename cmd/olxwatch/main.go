package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"OlxWatcher/internal/app"
	"OlxWatcher/internal/config"
	"OlxWatcher/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cmd, err := app.ParseCommand(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	err = app.Execute(ctx, cmd, cfg, logger, app.Console{In: os.Stdin, Out: os.Stdout})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application stopped", "command", cmd.Name, "error", err)
		cancel()
		os.Exit(1)
	}
}
