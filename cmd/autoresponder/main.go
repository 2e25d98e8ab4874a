// The autoresponder command is the control plane: it serves the web UI
// and the JSON API, runs the credential handshake, and supervises the
// long-running userbot listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danhigham/autoresponder/internal/api"
	"github.com/danhigham/autoresponder/internal/config"
	"github.com/danhigham/autoresponder/internal/handshake"
	"github.com/danhigham/autoresponder/internal/process"
)

func main() {
	// Absent .env is fine; real environment still applies.
	_ = godotenv.Load()

	cfgPath := os.Getenv("AUTORESPONDER_CONFIG")
	if cfgPath == "" {
		cfgPath = "autoresponder.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config from %s: %v\n", cfgPath, err)
		os.Exit(1)
	}
	if addr := os.Getenv("PORT"); addr != "" {
		cfg.ListenAddr = ":" + addr
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	records := config.NewRecordStore(cfg.RecordPath)
	manager := process.NewManager(cfg, records, logger.Named("process"))
	orch := handshake.NewOrchestrator(manager, records, logger.Named("handshake"))

	handler := api.NewHandler(orch, manager, records, logger.Named("api"))
	router := api.Router(handler, cfg.WebDir)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		if manager.Running() {
			if err := manager.StopListener(); err != nil {
				logger.Warn("stopping listener on shutdown", zap.Error(err))
			}
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("web server running",
		zap.String("addr", cfg.ListenAddr),
		zap.String("record", cfg.RecordPath))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
