// Command worker runs a worker pool against the shared store and queue,
// dispatching due envelopes through the configured executor registry until
// terminated, then draining in-flight attempts within a bounded grace
// period, mirroring the teacher's JobManager.GracefulExit.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RezaEskandarii/jobcore/internal/app"
	"github.com/RezaEskandarii/jobcore/internal/clock"
	"github.com/RezaEskandarii/jobcore/internal/config"
	"github.com/RezaEskandarii/jobcore/internal/worker"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg, err := config.FromEnv(instanceName("worker"))
	if err != nil {
		panic("worker: load config: " + err.Error())
	}

	container, err := app.New(cfg)
	if err != nil {
		panic("worker: build container: " + err.Error())
	}

	pool := worker.New(worker.Config{
		WorkerID:    cfg.Instance,
		Concurrency: int64(cfg.WorkerConcurrency),
		RateLimit:   cfg.LimiterMax,
		RateWindow:  time.Duration(cfg.LimiterWindowMs) * time.Millisecond,
	}, container.Store, container.Queue, container.Executors, container.Notifier, container.Planner, container.Lock, clock.Real(), container.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container.Log.Info().Str("instance", cfg.Instance).Int64("concurrency", int64(cfg.WorkerConcurrency)).Msg("worker: starting pool")

	if err := pool.Run(ctx, shutdownGrace); err != nil && !errors.Is(err, context.Canceled) {
		container.Log.Error().Err(err).Msg("worker: pool exited with error")
	}

	_ = container.Close()
	container.Log.Info().Msg("worker: shutdown complete")
}

func instanceName(role string) string {
	if v := os.Getenv("INSTANCE_NAME"); v != "" {
		return v
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return role
	}
	return role + "-" + host
}
