package grpc

import "github.com/dmitrijs2005/gophvault/internal/server/models"

type RegisterRequest struct {
	Username string `json:"username"`
}

type RegisterResponse struct {
	Message         string `json:"message"`
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	// QRCode is a PNG image.
	QRCode []byte `json:"qr_code"`
}

type VerifyTOTPRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type VerifyTOTPResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token,omitempty"`
}

type AddPasswordRequest struct {
	AppUsername     string `json:"app_username"`
	Service         string `json:"service"`
	ServiceUsername string `json:"service_username"`
	Password        string `json:"password"`
}

type AddPasswordResponse struct {
	Message string `json:"message"`
}

type GetPasswordsRequest struct {
	AppUsername string `json:"app_username"`
	Query       string `json:"query"`
}

type GetPasswordsResponse struct {
	Passwords []models.Credential `json:"passwords"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
