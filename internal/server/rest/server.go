// Package rest serves the vault's HTTP API with the drift router.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
)

type vaultService interface {
	Enroll(ctx context.Context, username string) (*models.Enrollment, error)
	Verify(ctx context.Context, username, code string) (bool, error)
	AddPassword(ctx context.Context, appUsername, service, serviceUsername, password string) error
	GetPasswords(ctx context.Context, appUsername, query string) ([]models.Credential, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type RESTServer struct {
	address         string
	certFile        string
	keyFile         string
	shutdownTimeout time.Duration

	vault    vaultService
	store    pinger
	sessions *auth.Sessions
	logger   logging.Logger

	handler http.Handler
}

func NewRESTServer(cfg *config.Config, l logging.Logger, vault vaultService, store pinger, sessions *auth.Sessions) *RESTServer {
	s := &RESTServer{
		address:         cfg.EndpointAddrHTTP,
		certFile:        cfg.TLSCertFile,
		keyFile:         cfg.TLSKeyFile,
		shutdownTimeout: cfg.ShutdownTimeout,
		vault:           vault,
		store:           store,
		sessions:        sessions,
		logger:          logging.OrNop(l).With("module", "rest_server"),
	}

	app := drift.New()
	if cfg.LogLevel == "debug" {
		app.SetMode(drift.DebugMode)
	} else {
		app.SetMode(drift.ReleaseMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())
	app.Use(s.requestLog())

	app.Post("/register", s.register)
	app.Post("/verify-totp", s.verifyTOTP)
	app.Get("/health", s.health)

	passwords := app.Group("/passwords")
	if cfg.RequireVerifiedSession {
		passwords.Use(s.requireSession())
	}
	passwords.Get("/:app_username/:service", s.getPasswords)
	passwords.Post("/:app_username", s.addPassword)

	s.handler = app
	return s
}

// Handler exposes the router, mainly for tests.
func (s *RESTServer) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully. TLS is used
// when both certificate files are configured.
func (s *RESTServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		tls := s.certFile != "" && s.keyFile != ""
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address, "tls", tls)
		if tls {
			errCh <- srv.ListenAndServeTLS(s.certFile, s.keyFile)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
