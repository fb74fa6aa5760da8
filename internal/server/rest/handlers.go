package rest

import (
	"encoding/base64"
	"net/http"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/m1z23r/drift/pkg/drift"
)

func (s *RESTServer) register(c *drift.Context) {
	var req registerRequest
	if err := c.BindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	enrollment, err := s.vault.Enroll(c.Request.Context(), req.Username)
	if err != nil {
		s.failWith(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, registerResponse{
		Message:         common.MsgRegistered,
		QRCode:          base64.StdEncoding.EncodeToString(enrollment.QRImage),
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
	})
}

func (s *RESTServer) verifyTOTP(c *drift.Context) {
	var req verifyRequest
	if err := c.BindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := s.vault.Verify(c.Request.Context(), req.Username, req.Code)
	if err != nil {
		s.failWith(c, err)
		return
	}
	if !ok {
		fail(c, http.StatusUnauthorized, common.MsgInvalidTOTP)
		return
	}

	token, err := s.sessions.Issue(req.Username)
	if err != nil {
		s.failWith(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, verifyResponse{Message: common.MsgAuthenticated, AccessToken: token})
}

func (s *RESTServer) getPasswords(c *drift.Context) {
	creds, err := s.vault.GetPasswords(c.Request.Context(), c.Param("app_username"), c.Param("service"))
	if err != nil {
		s.failWith(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, creds)
}

func (s *RESTServer) addPassword(c *drift.Context) {
	var entry passwordEntry
	if err := c.BindJSON(&entry); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.vault.AddPassword(c.Request.Context(),
		c.Param("app_username"), entry.Service, entry.ServiceUsername, entry.EncryptedPassword)
	if err != nil {
		s.failWith(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, messageResponse{Message: common.MsgPasswordAdded})
}

func (s *RESTServer) health(c *drift.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.failWith(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
