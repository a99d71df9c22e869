package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fieldline/fieldline/cmd/fieldlinectl/cli"
	"github.com/fieldline/fieldline/internal/app"
)

const usage = `usage: fieldlinectl <command>

commands:
  trigger <task>   enqueue a maintenance task (%s)
  queue            show default queue counters
  scheduled        list scheduled tasks
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, strings.Join(cli.Triggerable(), ", "))
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	opts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := asynq.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	defer func() {
		_ = inspector.Close()
		_ = client.Close()
	}()
	jobsCLI := cli.NewJobsCLI(client, inspector)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "trigger":
		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, usage, strings.Join(cli.Triggerable(), ", "))
			os.Exit(2)
		}
		info, err := jobsCLI.Trigger(ctx, os.Args[2])
		if err != nil {
			logger.Error("trigger task", slog.String("task", os.Args[2]), slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("enqueued %s as %s\n", info.Type, info.ID)
	case "queue":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			logger.Error("inspect queue", slog.Any("error", err))
			os.Exit(1)
		}
		_ = cli.PrintStats(os.Stdout, stats)
	case "scheduled":
		tasks, err := jobsCLI.ListScheduled(ctx, 20)
		if err != nil {
			logger.Error("list scheduled", slog.Any("error", err))
			os.Exit(1)
		}
		_ = cli.PrintScheduled(os.Stdout, tasks)
	default:
		fmt.Fprintf(os.Stderr, usage, strings.Join(cli.Triggerable(), ", "))
		os.Exit(2)
	}
}
