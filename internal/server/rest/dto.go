package rest

type registerRequest struct {
	Username string `json:"username"`
}

type registerResponse struct {
	Message         string `json:"message"`
	QRCode          string `json:"qr_code"`
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

type verifyRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type verifyResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token,omitempty"`
}

// passwordEntry keeps the field names existing clients send; despite its
// name EncryptedPassword carries the plaintext, which is encrypted on
// arrival.
type passwordEntry struct {
	Service           string `json:"service"`
	ServiceUsername   string `json:"service_username"`
	EncryptedPassword string `json:"encrypted_password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
