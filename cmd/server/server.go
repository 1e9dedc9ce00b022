package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/paularlott/cli"

	"github.com/onliops/inventoryd/internal/ai"
	"github.com/onliops/inventoryd/internal/api"
	"github.com/onliops/inventoryd/internal/config"
	"github.com/onliops/inventoryd/internal/log"
	"github.com/onliops/inventoryd/internal/session"
	"github.com/onliops/inventoryd/internal/spreadsheet"
	"github.com/onliops/inventoryd/internal/storage"
	"github.com/onliops/inventoryd/internal/worker"
)

// loadPatterns returns the column detection table, with the optional
// override file layered on top of the built-in patterns.
func loadPatterns(cfg *config.Config) *spreadsheet.PatternTable {
	if cfg.PatternFile == "" {
		return spreadsheet.DefaultPatterns()
	}
	patterns, err := spreadsheet.LoadPatternFile(cfg.PatternFile)
	if err != nil {
		log.Warn("Failed to load pattern file, using built-in patterns",
			"file", cfg.PatternFile, "error", err)
		return spreadsheet.DefaultPatterns()
	}
	log.Info("Column detection patterns loaded", "file", cfg.PatternFile)
	return patterns
}

// RunServer starts the HTTP server and blocks until shutdown.
func RunServer(cfg *config.Config, handler *api.Handler) error {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.SecurityHeadersMiddleware(mux),
	}

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("Shutting down server...")
		server.Close()
	}()

	log.Info("Starting inventoryd server", "addr", cfg.ListenAddr)
	log.Info("API available", "url", "http://localhost"+cfg.ListenAddr+"/api/")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Server error", "error", err)
		return err
	}

	log.Info("Server stopped")
	return nil
}

func Command() *cli.Command {
	return &cli.Command{
		Name:        "server",
		Usage:       "Start the inventoryd server",
		Description: "Start the HTTP server with the inventory and spreadsheet import API",
		Flags:       config.GetFlags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load(cmd)

			log.Info("Configuration loaded", "data_dir", cfg.DataDir, "listen_addr", cfg.ListenAddr)

			store, err := storage.NewSQLiteStorage(cfg.DataDir)
			if err != nil {
				log.Error("Failed to initialize storage", "error", err)
				return err
			}
			defer store.Close()
			log.Info("Storage initialized", "backend", "SQLite", "path", cfg.DataDir)

			sessions, err := session.NewStore(cfg.DataDir, cfg.SessionTTL)
			if err != nil {
				log.Error("Failed to initialize session store", "error", err)
				return err
			}
			defer sessions.Close()
			log.Info("Session store initialized", "ttl", cfg.SessionTTL)

			pool := worker.NewWorkerPool(cfg.Workers)
			pool.Start()
			defer pool.Stop()

			janitor := worker.NewJanitor(sessions, cfg.SweepSchedule)
			if err := janitor.Start(); err != nil {
				log.Error("Failed to start session janitor", "error", err)
				return err
			}
			defer janitor.Stop()

			aiClient := ai.NewClient(cfg.OllamaURL, cfg.AIModel)
			if aiClient.IsAvailable(ctx) {
				log.Info("Model server available", "url", cfg.OllamaURL, "model", cfg.AIModel)
			} else {
				log.Warn("Model server unreachable, AI features disabled until it comes up",
					"url", cfg.OllamaURL)
			}

			handler := api.NewHandler(store, sessions, aiClient, pool, loadPatterns(cfg), cfg.UploadDir)

			return RunServer(cfg, handler)
		},
	}
}
