package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/workoutlog/internal/config"
	workoutmcp "github.com/claude/workoutlog/internal/mcp"
	"github.com/claude/workoutlog/internal/session"
	"github.com/claude/workoutlog/internal/storage"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	serverURL := flag.String("server", "", "workoutlog server URL; when set, workouts are read and written over the REST API")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("workoutlog-mcp", Version)
		return
	}

	// stdout carries the MCP protocol, so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds workoutmcp.DataSource
	if *serverURL != "" {
		ds = workoutmcp.NewHTTPClient(*serverURL)
		log.Info("remote mode", "server", *serverURL)
	} else {
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

		ctrl := session.New(store, cfg.Storage.Key, session.Surfaces{}, log)
		if err := ctrl.Load(ctx); err != nil {
			log.Error("failed to load workouts", "error", err)
			os.Exit(1)
		}
		ds = workoutmcp.NewLocal(ctrl)
		log.Info("local mode", "backend", cfg.Storage.Backend)
	}

	if err := mcpserver.ServeStdio(workoutmcp.New(ds, Version, log)); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
