package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/draftnotes/notegraph/internal/server/api"
	"github.com/draftnotes/notegraph/internal/server/config"
	"github.com/draftnotes/notegraph/internal/server/events"
	"github.com/draftnotes/notegraph/internal/server/graph"
	"github.com/draftnotes/notegraph/internal/server/subscriptions"
)

func main() {
	configPath := flag.String("config", "notegraph.toml", "Path to TOML config file")
	addr := flag.String("addr", "", "HTTP service address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Loading config", "err", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})

	ctx := context.Background()
	repo, err := graph.NewSQLite(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatal("Opening graph store", "err", err)
	}
	defer repo.Close(ctx)

	logger.Info("Graph store ready", "db", cfg.DBPath)

	// Mutation events flow to the log at debug level and into the
	// subscription manager for webhook and stream delivery.
	subs := subscriptions.NewManager(logger)
	subs.Start()
	defer subs.Stop()

	bus := events.NewBus()
	bus.Subscribe(func(ev events.Event) {
		logger.Debug("Graph event",
			"type", ev.Type,
			"note_id", ev.NoteID,
			"tag_id", ev.TagID,
			"child_id", ev.ChildID,
			"parent_id", ev.ParentID,
		)
	})
	bus.Subscribe(subs.EmitEvent)
	bus.Start()
	defer bus.Stop()
	repo.SetEventEmitter(bus.Emit)

	apiServer := api.New(repo, subs)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	apiServer.Routes(r)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout.Std(),
		WriteTimeout: cfg.WriteTimeout.Std(),
		IdleTimeout:  cfg.IdleTimeout.Std(),
	}

	go func() {
		logger.Info("Starting notegraph server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", "err", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", "err", err)
	}

	logger.Info("Server exited")
}
