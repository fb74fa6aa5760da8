package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func firstMetadata(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// requestLogInterceptor tags each call with a request id (taken from the
// caller when present) and logs its outcome.
func (s *GRPCServer) requestLogInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	requestID := firstMetadata(ctx, common.RequestIDHeaderName)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(common.RequestIDHeaderName, requestID))

	start := time.Now()
	resp, err := handler(ctx, req)

	s.logger.Info(ctx, "grpc call",
		"request_id", requestID,
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

// recoveryInterceptor turns a panicking handler into an Internal status so
// one bad call cannot take the server down.
func (s *GRPCServer) recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(ctx, "grpc handler panic", "method", info.FullMethod, "panic", p)
			resp, err = nil, status.Error(codes.Internal, common.MsgInternal)
		}
	}()
	return handler(ctx, req)
}

// sessionInterceptor demands a valid access token for the password methods
// when verified sessions are required.
func (s *GRPCServer) sessionInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !s.requireSession {
		return handler(ctx, req)
	}

	var appUsername string
	switch r := req.(type) {
	case *AddPasswordRequest:
		appUsername = r.AppUsername
	case *GetPasswordsRequest:
		appUsername = r.AppUsername
	default:
		return handler(ctx, req)
	}

	token := firstMetadata(ctx, common.AccessTokenHeaderName)
	if err := s.sessions.Authorize(token, appUsername); err != nil {
		s.logger.Debug(ctx, "session rejected", "method", info.FullMethod, "error", err)
		return nil, toStatus(err)
	}
	return handler(ctx, req)
}
