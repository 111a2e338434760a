// Command jobctl enqueues background jobs on demand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

func main() {
	_ = godotenv.Load()
	asOf := flag.String("as-of", "", "integrity check date (YYYY-MM-DD), defaults to today")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: jobctl [flags] integrity|cleanup\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, "jobctl")

	client := jobs.NewClient(cfg.Redis().Asynq())
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var info *asynq.TaskInfo
	switch flag.Arg(0) {
	case "integrity":
		var date time.Time
		if *asOf != "" {
			date, err = time.Parse(time.DateOnly, *asOf)
			if err != nil {
				logger.Error("parse as-of", slog.Any("error", err))
				os.Exit(2)
			}
		}
		info, err = client.EnqueueIntegrityCheck(ctx, date)
	case "cleanup":
		info, err = client.EnqueueCleanup(ctx, cfg.IdempotencyRetention)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if errors.Is(err, jobs.ErrAlreadyQueued) {
		logger.Info("job already queued", slog.String("job", flag.Arg(0)))
		return
	}
	if err != nil {
		logger.Error("enqueue", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("job enqueued", slog.String("id", info.ID), slog.String("type", info.Type), slog.String("queue", info.Queue))
}
