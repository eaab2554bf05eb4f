package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/repcoach/internal/cache"
	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/journal"
	"github.com/claude/repcoach/internal/live"
	"github.com/claude/repcoach/internal/mcp"
	"github.com/claude/repcoach/internal/server"
	"github.com/claude/repcoach/internal/storage"
	"github.com/claude/repcoach/internal/ws"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	mcpMode := flag.Bool("mcp", false, "serve the MCP interface on stdio instead of HTTP")
	flag.Parse()

	logOut := os.Stdout
	if *mcpMode {
		// stdout carries the MCP protocol in this mode
		logOut = os.Stderr
	}
	log := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("RepCoach starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	userID, err := db.GetOrCreateUser(ctx, cfg.Auth.Login, cfg.Auth.Login)
	if err != nil {
		log.Error("failed to resolve user", "error", err)
		os.Exit(1)
	}

	if *mcpMode {
		s := mcp.New(db, Version, log)
		log.Info("MCP server starting on stdio", "user_id", userID)
		if err := mcpserver.ServeStdio(s, mcpserver.WithStdioContextFunc(
			func(ctx context.Context) context.Context {
				return mcp.WithUserID(ctx, userID)
			},
		)); err != nil {
			log.Error("mcp server error", "error", err)
			os.Exit(1)
		}
		return
	}

	programCache, err := cache.New(int64(cfg.Coach.CacheEntries), time.Duration(cfg.Coach.CacheTTLMin)*time.Minute)
	if err != nil {
		log.Error("failed to create program cache", "error", err)
		os.Exit(1)
	}
	defer programCache.Close()

	jnl, err := journal.Open(cfg.Journal.Dir)
	if err != nil {
		log.Error("failed to open session journal", "error", err)
		os.Exit(1)
	}
	defer jnl.Close()

	hub := ws.NewHub(log)

	manager := live.NewManager(live.Options{
		Programs:       db,
		Sessions:       db,
		Journal:        jnl,
		Hub:            hub,
		Cache:          programCache,
		Logger:         log,
		RestSeconds:    cfg.Coach.RestSeconds,
		PreRollSeconds: cfg.Coach.PreRollSeconds,
	})

	// Push any summaries that never reached Postgres during a previous run
	if err := manager.ReplayJournal(ctx); err != nil {
		log.Warn("journal replay failed", "error", err)
	}

	srv := server.New(db, manager, hub, programCache, cfg.Auth.APIKey, userID, log)

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	manager.Shutdown()
	log.Info("server stopped")
}
