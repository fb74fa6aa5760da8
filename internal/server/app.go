// Package server assembles the vault: it opens the configured storage,
// makes sure the encryption key exists and runs the HTTP and gRPC
// transports until the process is asked to stop.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophvault/internal/server/rest"
	"github.com/dmitrijs2005/gophvault/internal/server/services"

	gs "github.com/dmitrijs2005/gophvault/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    repositories.Store
	vault    *services.VaultService
	sessions *auth.Sessions
}

// NewApp validates c, opens storage and loads (or creates) the vault key.
// A nil logger logs JSON to stdout at the configured level.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logging.NewJSONLogger(os.Stdout, c.LogLevel)
	}

	store, err := repomanager.New(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	vault := services.NewVaultService(store, c, logger)
	if _, err := vault.Keys.GetOrCreateKey(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("encryption key init error: %w", err)
	}

	return &App{
		config:   c,
		logger:   logger,
		store:    store,
		vault:    vault,
		sessions: auth.NewSessions(c.SecretKey, c.AccessTokenValidityDuration),
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.vault, app.store, app.sessions, app.config.RequireVerifiedSession)

	if app.config.TLSEnabled() {
		if err := s.UseTLS(app.config.TLSCertFile, app.config.TLSKeyFile); err != nil {
			app.logger.Error(ctx, "grpc tls setup failed", "error", err)
			cancelFunc()
			return
		}
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewRESTServer(app.config, app.logger, app.vault, app.store, app.sessions)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run serves the enabled transports until ctx is cancelled, a signal
// arrives or a server fails, then releases the storage.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	// An empty address disables that transport.
	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}
	if app.config.EndpointAddrHTTP != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHTTPServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
	return app.store.Close()
}
