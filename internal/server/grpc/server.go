// Package grpc exposes the vault over gRPC. Messages are plain Go structs
// carried by a JSON codec, so no generated code is involved.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
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

type GRPCServer struct {
	address        string
	vault          vaultService
	health         pinger
	sessions       *auth.Sessions
	requireSession bool
	creds          credentials.TransportCredentials
	logger         logging.Logger
}

var _ VaultServer = (*GRPCServer)(nil)

// NewGRPCServer builds the server. With requireSession set, password calls
// must carry the access token issued by VerifyTOTP.
func NewGRPCServer(address string, l logging.Logger, vault vaultService, health pinger, sessions *auth.Sessions, requireSession bool) *GRPCServer {
	return &GRPCServer{
		address:        address,
		vault:          vault,
		health:         health,
		sessions:       sessions,
		requireSession: requireSession,
		logger:         logging.OrNop(l).With("module", "grpc_server"),
	}
}

// UseTLS serves with the given certificate instead of plaintext.
func (s *GRPCServer) UseTLS(certFile, keyFile string) error {
	creds, err := credentials.NewServerTLSFromFile(certFile, keyFile)
	if err != nil {
		return err
	}
	s.creds = creds
	return nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.requestLogInterceptor, s.recoveryInterceptor, s.sessionInterceptor),
	}
	if s.creds != nil {
		opts = append(opts, grpc.Creds(s.creds))
	}
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&VaultServiceDesc, s)
	return srv
}

// Run listens on the configured address until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully when ctx ends.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String(), "tls", s.creds != nil)

	return srv.Serve(lis)
}
