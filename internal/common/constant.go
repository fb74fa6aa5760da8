package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// session token issued after a successful TOTP verification.
const AccessTokenHeaderName = "access_token"

// DefaultIssuer is the issuer embedded in TOTP provisioning URIs.
const DefaultIssuer = "Password Manager"

// EncryptionKeyID is the identifier of the single vault key row/object.
const EncryptionKeyID = "current"

// RequestIDHeaderName carries the per-request id in HTTP headers and gRPC
// metadata.
const RequestIDHeaderName = "x-request-id"

// Client-facing messages shared by the transports.
const (
	MsgRegistered       = "User registered successfully"
	MsgAuthenticated    = "Authentication successful"
	MsgPasswordAdded    = "Password added successfully"
	MsgDuplicateUser    = "Username already registered"
	MsgUserNotFound     = "User not found"
	MsgInvalidTOTP      = "Invalid TOTP code"
	MsgDecryptionFailed = "Stored password could not be decrypted"
	MsgUnavailable      = "Storage unavailable"
	MsgInternal         = "Internal server error"
	MsgUnauthorized     = "Unauthorized"
)
