package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/workoutlog/internal/config"
	"github.com/claude/workoutlog/internal/models"
	"github.com/claude/workoutlog/internal/session"
	"github.com/claude/workoutlog/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	filePath := flag.String("file", "", "path to a workouts JSON export (required)")
	dryRun := flag.Bool("dry-run", false, "check the export without writing to storage")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *filePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: workoutlog-import -config config.yaml -file workouts.json [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	blob, err := os.ReadFile(*filePath)
	if err != nil {
		log.Error("failed to read export", "path", *filePath, "error", err)
		os.Exit(1)
	}

	if *dryRun {
		log.Info("DRY RUN mode: nothing will be written to storage")
		workouts, err := models.DecodeWorkouts(blob)
		if err != nil {
			log.Error("export is malformed", "error", err)
			os.Exit(1)
		}
		printStats(log, workouts)
		return
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		log.Error("failed to open storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("storage opened", "backend", cfg.Storage.Backend)

	// Run import
	ctrl := session.New(store, cfg.Storage.Key, session.Surfaces{}, log)
	n, err := ctrl.Restore(ctx, blob)
	if err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}

	printStats(log, ctrl.Workouts())
	log.Info("import complete", "imported", n)
}

func printStats(log *slog.Logger, workouts []*models.Workout) {
	var running, cycling int
	var distance float64
	for _, w := range workouts {
		switch w.Kind {
		case models.KindRunning:
			running++
		case models.KindCycling:
			cycling++
		}
		distance += w.Distance
	}
	log.Info("import stats",
		"workouts", len(workouts),
		"running", running,
		"cycling", cycling,
		"distance_km", distance,
	)
}
