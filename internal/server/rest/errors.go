package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/m1z23r/drift/pkg/drift"
)

func fail(c *drift.Context, code int, detail string) {
	_ = c.JSON(code, errorResponse{Detail: detail})
	c.Abort()
}

// failWith maps a service error onto a status code and a client message.
// Storage and internal details are logged, never returned.
func (s *RESTServer) failWith(c *drift.Context, err error) {
	code, detail := http.StatusInternalServerError, common.MsgInternal
	switch {
	case errors.Is(err, common.ErrValidation):
		code, detail = http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrDuplicateUser):
		code, detail = http.StatusBadRequest, common.MsgDuplicateUser
	case errors.Is(err, common.ErrUserNotFound):
		code, detail = http.StatusNotFound, common.MsgUserNotFound
	case errors.Is(err, common.ErrorUnauthorized):
		code, detail = http.StatusUnauthorized, common.MsgUnauthorized
	case errors.Is(err, common.ErrDecryptionFailed):
		code, detail = http.StatusUnprocessableEntity, common.MsgDecryptionFailed
	case errors.Is(err, common.ErrStorageUnavailable):
		code, detail = http.StatusServiceUnavailable, common.MsgUnavailable
	}

	if code >= http.StatusInternalServerError || code == http.StatusUnprocessableEntity {
		s.logger.Error(c.Request.Context(), "request failed",
			"request_id", requestID(c), "path", c.Request.URL.Path, "status", code, "error", err)
	}
	fail(c, code, detail)
}
