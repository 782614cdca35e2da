package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Swind/go-threadhop/config"
	"github.com/Swind/go-threadhop/core"
	obs "github.com/Swind/go-threadhop/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start tasks on a demo owner, then clean it up",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "tasks",
				Aliases: []string{"n"},
				Value:   5,
				Usage:   "number of tasks to start",
			},
			&cli.DurationFlag{
				Name:  "work",
				Value: 20 * time.Millisecond,
				Usage: "background work per step",
			},
			&cli.IntFlag{
				Name:  "steps",
				Value: 3,
				Usage: "background steps per task",
			},
			&cli.DurationFlag{
				Name:  "cleanup-after",
				Value: 0,
				Usage: "clean up the owner after this long instead of waiting for all tasks",
			},
		},
		Action: RunAction,
	}
}

func RunAction(c *cli.Context) error {
	// 1. Get flags
	tasks := c.Int("tasks")
	steps := c.Int("steps")
	work := c.Duration("work")
	cleanupAfter := c.Duration("cleanup-after")

	// 2. Validate (format only)
	if tasks < 1 || steps < 1 {
		return cli.Exit("tasks and steps must be at least 1", 1)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	logger := cfg.NewLogger(os.Stderr)

	// 3. Wire the scheduler
	promReg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter(cfg.Metrics.Namespace, promReg, obs.ExporterOptions{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	loop := core.NewForegroundLoop(
		core.WithLoopName("ui"),
		core.WithLoopLogger(logger),
		core.WithLoopMetrics(exporter),
	)
	defer loop.Stop()

	registry := core.NewRegistry(cfg.RegistryConfig(logger, exporter))
	owner := &demoOwner{name: "demo-window", loop: loop}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	if cfg.Metrics.ListenAddr != "" {
		poller, err := obs.NewSnapshotPoller(cfg.Metrics.Namespace, promReg, cfg.Metrics.PollInterval)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
		poller.AddLoop("ui", loop)
		poller.AddRegistry("default", registry)
		poller.Start(ctx)
		defer poller.Stop()

		stop := serveMetrics(cfg.Metrics.ListenAddr, promReg, logger)
		defer stop()
	}

	// 4. Run
	summary := runDemo(ctx, loop, registry, owner, demoPlan{
		tasks:        tasks,
		steps:        steps,
		work:         work,
		cleanupAfter: cleanupAfter,
	}, logger)

	// 5. Format output
	for _, rec := range registry.RecentTasks(tasks) {
		fmt.Printf("%-8s %-10s switches=%d took=%s %s\n",
			rec.Name, rec.State, rec.Switches, rec.Duration.Round(time.Millisecond), rec.Err)
	}
	fmt.Printf("completed=%d cancelled=%d failed=%d\n", summary.completed, summary.cancelled, summary.failed)
	if summary.cleanupErr != nil {
		return cli.Exit(fmt.Sprintf("Cleanup reported: %v", summary.cleanupErr), 2)
	}
	return nil
}

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:   "config",
		Usage:  "print the resolved configuration",
		Action: ConfigAction,
	}
}

func ConfigAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	fmt.Printf("scheduler.idle_timeout     %s\n", cfg.Scheduler.IdleTimeout)
	fmt.Printf("scheduler.history_capacity %d\n", cfg.Scheduler.HistoryCapacity)
	fmt.Printf("log.level                  %s\n", cfg.Log.Level)
	fmt.Printf("metrics.namespace          %s\n", cfg.Metrics.Namespace)
	fmt.Printf("metrics.listen_addr        %q\n", cfg.Metrics.ListenAddr)
	fmt.Printf("metrics.poll_interval      %s\n", cfg.Metrics.PollInterval)
	return nil
}

func serveMetrics(addr string, gatherer prom.Gatherer, logger core.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", core.F("addr", addr), core.F("error", err))
		}
	}()
	logger.Info("serving metrics", core.F("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
