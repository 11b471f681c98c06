// Binary sysvipc inspects and drives System V message queues, semaphore sets
// and shared memory segments from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/richinsley/sysvipc"
	"github.com/richinsley/sysvipc/internal/cli"
	"github.com/richinsley/sysvipc/internal/config"
	"github.com/richinsley/sysvipc/internal/logging"
	"github.com/richinsley/sysvipc/metrics"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	cli.ForEachCmd(subcommands.Register)

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sysvipc: %v\n", err)
		os.Exit(int(subcommands.ExitUsageError))
	}

	logger, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sysvipc: building logger: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	env := &cli.Env{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Options: []sysvipc.Option{
			sysvipc.WithLogger(logger.Named("sysvipc")),
			sysvipc.WithObserver(collector),
			sysvipc.WithRetryPolicy(cfg.RetryPolicy()),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	status := subcommands.Execute(ctx, env)
	stop()

	logger.Debug("command finished", zap.String("command", flag.Arg(0)), zap.Int("status", int(status)))
	_ = logger.Sync()
	os.Exit(int(status))
}
