// Command apiserver constructs the scheduling core and exposes it as a Go
// API for an embedding HTTP/REST layer to call into — this binary itself
// carries no HTTP surface, per the Non-goals. It stays resident so the
// Container's connections (store, queue, notifier) live for the process
// lifetime, draining gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RezaEskandarii/jobcore/internal/app"
	"github.com/RezaEskandarii/jobcore/internal/config"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg, err := config.FromEnv(instanceName("apiserver"))
	if err != nil {
		panic("apiserver: load config: " + err.Error())
	}

	container, err := app.New(cfg)
	if err != nil {
		panic("apiserver: build container: " + err.Error())
	}

	container.Log.Info().Str("instance", cfg.Instance).Int("port", cfg.ServerPort).Msg("apiserver: ready, no HTTP surface bound")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	container.Log.Info().Msg("apiserver: shutting down")
	// No in-flight attempts to drain here (that's the worker process); the
	// grace window only bounds how long Close()'s connection teardown may take.
	done := make(chan struct{})
	go func() {
		_ = container.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		container.Log.Warn().Msg("apiserver: shutdown grace period elapsed before teardown finished")
	}

	container.Log.Info().Msg("apiserver: shutdown complete")
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
