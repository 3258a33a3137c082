package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/df07/go-pathtracer/web/server"
)

func main() {
	port := flag.Int("port", 8080, "Port to serve on")
	scenesDir := flag.String("scenes-dir", "scenes", "Directory searched for scene files")
	staticDir := flag.String("static", "static", "Directory of static files served at /")
	workers := flag.Int("workers", 0, "Render workers per request (0 = CPU count)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webServer := server.NewServer(server.Config{
		Port:      *port,
		ScenesDir: *scenesDir,
		StaticDir: *staticDir,
		Workers:   *workers,
		Logger:    logger,
	})

	logger.Info("path tracer web server", "url", "http://localhost:"+strconv.Itoa(*port))
	if err := webServer.Start(ctx); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

