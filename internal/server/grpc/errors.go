package grpc

import (
	"errors"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors onto gRPC status codes. Storage and internal
// details stay in the server log.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrDuplicateUser):
		return status.Error(codes.AlreadyExists, common.MsgDuplicateUser)
	case errors.Is(err, common.ErrUserNotFound):
		return status.Error(codes.NotFound, common.MsgUserNotFound)
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, common.MsgUnauthorized)
	case errors.Is(err, common.ErrDecryptionFailed):
		return status.Error(codes.FailedPrecondition, common.MsgDecryptionFailed)
	case errors.Is(err, common.ErrStorageUnavailable):
		return status.Error(codes.Unavailable, common.MsgUnavailable)
	default:
		return status.Error(codes.Internal, common.MsgInternal)
	}
}
