package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/filestore"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()
	return cfg
}

func newRealServer(t *testing.T, cfg *config.Config) *RESTServer {
	t.Helper()
	store, err := filestore.Open(cfg.DataDir, nil)
	require.NoError(t, err)
	vault := services.NewVaultService(store, cfg, nil)
	return NewRESTServer(cfg, nil, vault, store, auth.NewSessions(cfg.SecretKey, time.Minute))
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, time.Now(), totp.ValidateOpts{
		Period: 30, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestFullFlow(t *testing.T) {
	h := newRealServer(t, testConfig(t)).Handler()

	rec := do(t, h, http.MethodPost, "/register", registerRequest{Username: "alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reg registerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, common.MsgRegistered, reg.Message)
	png, err := base64.StdEncoding.DecodeString(reg.QRCode)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	assert.NotEmpty(t, reg.Secret)
	assert.NotEmpty(t, rec.Header().Get(common.RequestIDHeaderName))

	rec = do(t, h, http.MethodPost, "/register", registerRequest{Username: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), common.MsgDuplicateUser)

	rec = do(t, h, http.MethodPost, "/verify-totp", verifyRequest{Username: "alice", Code: currentCode(t, reg.Secret)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), common.MsgAuthenticated)

	rec = do(t, h, http.MethodPost, "/passwords/alice", passwordEntry{
		Service: "GitHub", ServiceUsername: "alice@example.com", EncryptedPassword: "gh-secret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), common.MsgPasswordAdded)

	rec = do(t, h, http.MethodGet, "/passwords/alice/hub", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var creds []models.Credential
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &creds))
	require.Len(t, creds, 1)
	assert.Equal(t, "GitHub", creds[0].Service)
	assert.Equal(t, "alice@example.com", creds[0].ServiceUsername)
	assert.Equal(t, "gh-secret", creds[0].Password)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.ElementsMatch(t, []string{"service", "username", "password", "last_rotated"}, keys(raw[0]))

	rec = do(t, h, http.MethodGet, "/passwords/alice/bitbucket", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestUnknownUserAndBadCode(t *testing.T) {
	h := newRealServer(t, testConfig(t)).Handler()

	rec := do(t, h, http.MethodPost, "/verify-totp", verifyRequest{Username: "ghost", Code: "123456"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), common.MsgUserNotFound)

	rec = do(t, h, http.MethodGet, "/passwords/ghost/x", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/passwords/ghost", passwordEntry{Service: "s", ServiceUsername: "u", EncryptedPassword: "p"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/register", registerRequest{Username: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/verify-totp", verifyRequest{Username: "alice", Code: "abc"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), common.MsgInvalidTOTP)

	rec = do(t, h, http.MethodPost, "/passwords/alice", passwordEntry{Service: "", ServiceUsername: "u", EncryptedPassword: "p"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/register", registerRequest{Username: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireVerifiedSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.RequireVerifiedSession = true
	h := newRealServer(t, cfg).Handler()

	rec := do(t, h, http.MethodPost, "/register", registerRequest{Username: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	var reg registerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))

	rec = do(t, h, http.MethodGet, "/passwords/alice/x", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/verify-totp", verifyRequest{Username: "alice", Code: currentCode(t, reg.Secret)})
	require.Equal(t, http.StatusOK, rec.Code)
	var ver verifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ver))
	require.NotEmpty(t, ver.AccessToken)

	rec = do(t, h, http.MethodPost, "/passwords/alice",
		passwordEntry{Service: "GitHub", ServiceUsername: "a", EncryptedPassword: "p"},
		"Authorization", "Bearer "+ver.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/passwords/alice/git", nil, "Authorization", "Bearer "+ver.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/passwords/bob/git", nil, "Authorization", "Bearer "+ver.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type failingVault struct{ err error }

func (f failingVault) Enroll(context.Context, string) (*models.Enrollment, error) { return nil, f.err }
func (f failingVault) Verify(context.Context, string, string) (bool, error)       { return false, f.err }
func (f failingVault) AddPassword(context.Context, string, string, string, string) error {
	return f.err
}
func (f failingVault) GetPasswords(context.Context, string, string) ([]models.Credential, error) {
	return nil, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"decryption", common.ErrDecryptionFailed, http.StatusUnprocessableEntity},
		{"storage", common.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{"malformed", common.ErrMalformedRecord, http.StatusInternalServerError},
		{"validation", common.ErrValidation, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRESTServer(testConfig(t), nil, failingVault{err: tt.err}, fakePinger{}, auth.NewSessions("k", time.Minute))
			rec := do(t, s.Handler(), http.MethodGet, "/passwords/alice/x", nil)
			assert.Equal(t, tt.code, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Detail)
		})
	}
}

func TestHealth(t *testing.T) {
	s := NewRESTServer(testConfig(t), nil, failingVault{}, fakePinger{}, auth.NewSessions("k", time.Minute))
	rec := do(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s = NewRESTServer(testConfig(t), nil, failingVault{}, fakePinger{err: common.ErrStorageUnavailable}, auth.NewSessions("k", time.Minute))
	rec = do(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := NewRESTServer(testConfig(t), nil, failingVault{}, fakePinger{}, auth.NewSessions("k", time.Minute))
	rec := do(t, s.Handler(), http.MethodGet, "/health", nil, common.RequestIDHeaderName, "req-7")
	assert.Equal(t, "req-7", rec.Header().Get(common.RequestIDHeaderName))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.EndpointAddrHTTP = "127.0.0.1:0"
	s := NewRESTServer(cfg, nil, failingVault{}, fakePinger{}, auth.NewSessions("k", time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRun_BadAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.EndpointAddrHTTP = "127.0.0.1:99999"
	s := NewRESTServer(cfg, nil, failingVault{}, fakePinger{}, auth.NewSessions("k", time.Minute))
	assert.Error(t, s.Run(context.Background()))
}
