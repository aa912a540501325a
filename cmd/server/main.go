package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/OCharnyshevich/voxel-stream/internal/server"
	"github.com/OCharnyshevich/voxel-stream/internal/server/config"
)

func main() {
	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "world seed")
	flag.IntVar(&cfg.WorkerCount, "workers", cfg.WorkerCount, "chunk worker goroutines (0 = half the CPUs)")
	flag.IntVar(&cfg.ViewDistance, "view-distance", cfg.ViewDistance, "observer view distance in chunks")
	flag.StringVar(&cfg.WorldPath, "world", cfg.WorldPath, "stored world directory (empty = generate)")
	flag.StringVar(&cfg.WorldURL, "world-url", cfg.WorldURL, "go-getter address to fetch the world from when -world is missing")
	flag.StringVar(&cfg.GeneratorType, "generator", cfg.GeneratorType, "terrain generator: terrain or flat")
	flag.StringVar(&cfg.Noise, "noise", cfg.Noise, "noise backend: simplex or perlin")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flag.Parse()

	if *configPath != "" {
		fromFile, err := config.Load(*configPath)
		if err != nil {
			slog.Error("load config", "error", err)
			os.Exit(1)
		}
		explicit := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		config.Merge(cfg, fromFile, explicit)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Error("create server", "error", err)
		os.Exit(1)
	}
	if err := srv.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
