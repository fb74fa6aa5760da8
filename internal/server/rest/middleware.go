package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

const requestIDKey = "request_id"

func requestID(c *drift.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// requestLog assigns a request id (keeping the caller's when sent), echoes
// it in the response and logs each request.
func (s *RESTServer) requestLog() drift.HandlerFunc {
	return func(c *drift.Context) {
		id := c.GetHeader(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Response.Header().Set(common.RequestIDHeaderName, id)

		start := time.Now()
		c.Next()

		s.logger.Info(c.Request.Context(), "http request",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"duration", time.Since(start),
		)
	}
}

// requireSession guards the password routes with the bearer token issued by
// /verify-totp. It is installed only when verified sessions are required.
func (s *RESTServer) requireSession() drift.HandlerFunc {
	return func(c *drift.Context) {
		token := ""
		if h := c.GetHeader("Authorization"); h != "" {
			scheme, value, ok := strings.Cut(h, " ")
			if ok && strings.EqualFold(scheme, "bearer") {
				token = strings.TrimSpace(value)
			}
		}

		if err := s.sessions.Authorize(token, c.Param("app_username")); err != nil {
			fail(c, http.StatusUnauthorized, common.MsgUnauthorized)
			return
		}
		c.Next()
	}
}
