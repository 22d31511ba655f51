package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/brunobiangulo/rulegraph"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	snapshot := flag.String("snapshot", "", "Start from a stored build id instead of the sources (\"latest\" for the newest)")
	watch := flag.Bool("watch", false, "Rebuild when a source file changes")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("reading .env", "error", err)
	}

	cfg := rulegraph.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = rulegraph.LoadConfig(*configPath); err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
	}
	cfg.ApplyEnv()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	})))

	apiKey := os.Getenv("RULEGRAPH_API_KEY")
	corsOrigins := os.Getenv("RULEGRAPH_CORS_ORIGINS")

	engine, err := rulegraph.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := newMetrics()
	h := newHandler(engine, m)

	// A failed initial build leaves the server up; POST /rebuild retries.
	if *snapshot != "" {
		id := *snapshot
		if id == "latest" {
			id = ""
		}
		b, err := engine.Load(ctx, id)
		h.recordBuild(b, err)
		if err != nil {
			slog.Error("loading snapshot", "error", err)
		}
	} else {
		b, err := engine.Build(ctx)
		h.recordBuild(b, err)
		if err != nil {
			slog.Error("initial build", "error", err)
		}
	}

	if *watch {
		go func() {
			err := rulegraph.Watch(ctx, engine, rulegraph.SourcePaths(cfg.Sources), rulegraph.DefaultDebounce, h.recordBuild)
			if err != nil {
				slog.Error("watching sources", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      newRouter(h, apiKey, corsOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // rebuilds can be long
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
