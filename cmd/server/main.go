package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/site-content/pkg/sitecontent/api"
	"github.com/tendant/site-content/pkg/sitecontent/config"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (environment variables still override)")
	usage := flag.Bool("usage", false, "print the supported environment variables and exit")
	flag.Parse()

	if *usage {
		config.Usage(os.Stdout)
		return
	}

	logger := slog.Default()
	ctx := context.Background()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	handler, err := newContentHandler(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize content handler", "error", err)
		os.Exit(1)
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)
	mountRoutes(server.R, handler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.R,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment, "remote", cfg.Remote.Driver, "blob", cfg.Blob.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exited")
}

func loadConfig(configFile string) (*config.ServerConfig, error) {
	if configFile != "" {
		return config.Load(config.WithFile(configFile))
	}
	return config.Load(config.WithEnv())
}

// newContentHandler builds the publisher behind admin authentication
func newContentHandler(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) (*api.ContentHandler, error) {
	authService, err := cfg.BuildAuth(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}
	publisher, err := cfg.BuildPublisher(ctx, authService, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}
	return api.NewContentHandler(publisher, api.WithAuth(authService), api.WithLogger(logger)), nil
}

func mountRoutes(r chi.Router, handler *api.ContentHandler) {
	r.Mount("/api", handler.Routes())
}
