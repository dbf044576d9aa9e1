// Package app wires configuration, storage, services and the HTTP server
// together and owns the process lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/DidNoDB/didnodb/internal/server/config"
	"github.com/DidNoDB/didnodb/internal/server/httpapi"
	"github.com/DidNoDB/didnodb/internal/server/logger"
	"github.com/DidNoDB/didnodb/internal/server/repository/filestore"
	"github.com/DidNoDB/didnodb/internal/server/repository/sqlite"
	"github.com/DidNoDB/didnodb/internal/server/service"
	"github.com/DidNoDB/didnodb/internal/server/token"
)

// repository is what app needs from a backend: the service contract plus a
// way to release it on shutdown.
type repository interface {
	service.Repository
	io.Closer
}

type App struct {
	version   string
	buildDate string
	logger    *logger.Logger
	server    *http.Server
	repoClose io.Closer
}

func New(version, buildDate string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogLevel)
	if cfg.JWTSecret == config.DevSecret {
		log.Warn("using development JWT secret; set DIDNODB_JWT_SECRET")
	}

	var repo repository
	switch cfg.StorageDriver {
	case "file":
		repo, err = filestore.New(cfg.DataDir)
	default:
		repo, err = sqlite.New(cfg.DatabaseDSN)
	}
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	services := service.NewServices(repo, token.NewManager(cfg.JWTSecret, cfg.TokenTTL))
	if cfg.AdminPassword != "" {
		if err := services.Auth.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("seed admin: %w", err)
		}
	}

	router := httpapi.NewRouter(services, log.Logger, cfg.MaxRequestBytes)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &App{version: version, buildDate: buildDate, logger: log, server: server, repoClose: repo}, nil
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() { _ = a.repoClose.Close() }()

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("http server error", "error", err)
		}
	}()

	a.logger.Info("didnodb server listening", "version", a.version, "build_date", a.buildDate, "addr", a.server.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}
