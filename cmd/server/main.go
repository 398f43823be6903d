package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"formrelay/internal/config"
	"formrelay/internal/httpapi"
	"formrelay/internal/logbus"
	"formrelay/internal/mailer"
	"formrelay/internal/ratelimit"
	"formrelay/internal/store/sqlite"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	bus := logbus.New(200)
	bus.MirrorTo(log.Default())
	bus.Log("info", "server starting", map[string]any{
		"addr":        cfg.Server.Addr,
		"environment": cfg.Environment,
		"version":     cfg.Version,
	})

	ctx := context.Background()
	var store *sqlite.Store
	if cfg.Storage.SQLitePath != "" {
		store, err = sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("open sqlite: %v", err)
		}
		defer store.Close()
	}

	api := httpapi.New(httpapi.Options{
		Cfg:     cfg,
		Bus:     bus,
		Store:   store,
		Sender:  mailer.NewSMTP(),
		Limiter: ratelimit.New(cfg.Limits.SubmitInterval(), cfg.Limits.MaxClients),
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		bus.Log("info", "shutdown signal received", map[string]any{"signal": sig.String()})
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			bus.Log("error", "http server error", map[string]any{"error": err.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_ = server.Shutdown(shutdownCtx)
	bus.Log("info", "server stopped", nil)
	bus.Close()
}
