package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"expensetracker/internal/cli"
	"expensetracker/internal/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli.LoadEnvFile()

	cfg, cfgErr := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, os.Stderr)
	if cfgErr != nil {
		logger.Error("Invalid configuration", log.FieldError, cfgErr.Error())
		fmt.Fprintf(os.Stderr, "error: %v\n", cfgErr)
		return 1
	}

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger, cli.IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
	if err != nil {
		logger.Error("Failed to start", log.FieldOperation, log.OpStartup, log.FieldError, err.Error())
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			logger.Warn("Shutdown incomplete", log.FieldOperation, log.OpShutdown, log.FieldError, err.Error())
		}
	}()

	if err := app.Run(ctx, args); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
