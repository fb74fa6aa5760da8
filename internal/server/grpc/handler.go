package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	enrollment, err := s.vault.Enroll(ctx, req.Username)
	if err != nil {
		s.logger.Warn(ctx, "registration failed", "username", req.Username, "error", err)
		return nil, toStatus(err)
	}

	return &RegisterResponse{
		Message:         common.MsgRegistered,
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
		QRCode:          enrollment.QRImage,
	}, nil
}

func (s *GRPCServer) VerifyTOTP(ctx context.Context, req *VerifyTOTPRequest) (*VerifyTOTPResponse, error) {
	ok, err := s.vault.Verify(ctx, req.Username, req.Code)
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.MsgInvalidTOTP)
	}

	token, err := s.sessions.Issue(req.Username)
	if err != nil {
		s.logger.Error(ctx, "issue access token", "error", err)
		return nil, toStatus(err)
	}

	return &VerifyTOTPResponse{Message: common.MsgAuthenticated, AccessToken: token}, nil
}

func (s *GRPCServer) AddPassword(ctx context.Context, req *AddPasswordRequest) (*AddPasswordResponse, error) {
	if err := s.vault.AddPassword(ctx, req.AppUsername, req.Service, req.ServiceUsername, req.Password); err != nil {
		return nil, toStatus(err)
	}
	return &AddPasswordResponse{Message: common.MsgPasswordAdded}, nil
}

func (s *GRPCServer) GetPasswords(ctx context.Context, req *GetPasswordsRequest) (*GetPasswordsResponse, error) {
	creds, err := s.vault.GetPasswords(ctx, req.AppUsername, req.Query)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetPasswordsResponse{Passwords: creds}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *PingRequest) (*PingResponse, error) {
	if err := s.health.Ping(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &PingResponse{Status: "OK"}, nil
}
