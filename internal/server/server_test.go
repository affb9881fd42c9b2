package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keldara/vaultcraft/internal/logging"
	"github.com/keldara/vaultcraft/internal/srp"
	"github.com/keldara/vaultcraft/internal/totp"
)

// srpLoginVerify drives one SRP login/init+login/verify round and
// returns the raw HTTP response from login/verify, letting callers
// assert success or a specific rejection (e.g. a missing TOTP code).
func srpLoginVerify(t *testing.T, ts *httptest.Server, username string, password []byte, totpCode string) *http.Response {
	t.Helper()
	ce, err := srp.GenerateClientEphemeral()
	require.NoError(t, err)

	resp := postJSON(t, ts, "/login/init", loginInitRequest{Username: username, A: ce.AHex()}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var initOut loginInitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&initOut))
	resp.Body.Close()

	salt, err := hex.DecodeString(initOut.Salt)
	require.NoError(t, err)
	session, err := srp.ClientComputeSession(ce, salt, password, initOut.B)
	require.NoError(t, err)

	return postJSON(t, ts, "/login/verify", loginVerifyRequest{
		Username: username, A: ce.AHex(), M1: session.M1, TOTPCode: totpCode,
	}, "")
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := Config{StorageBackend: "file", DataDir: filepath.Join(t.TempDir(), "data")}
	s, err := New(t.Context(), cfg, logging.Nop())
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any, token string) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestServer_RegisterThenLoginIssuesToken(t *testing.T) {
	ts := newTestServer(t)
	password := []byte("correct horse battery staple")
	reg, err := srp.GenerateRegistration(password)
	require.NoError(t, err)

	resp := postJSON(t, ts, "/register", registerRequest{
		Username: "alice", Salt: hex.EncodeToString(reg.Salt), Verifier: reg.VerifierHex,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	ce, err := srp.GenerateClientEphemeral()
	require.NoError(t, err)

	resp = postJSON(t, ts, "/login/init", loginInitRequest{Username: "alice", A: ce.AHex()}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var initOut loginInitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&initOut))
	resp.Body.Close()

	salt, err := hex.DecodeString(initOut.Salt)
	require.NoError(t, err)
	session, err := srp.ClientComputeSession(ce, salt, password, initOut.B)
	require.NoError(t, err)

	resp = postJSON(t, ts, "/login/verify", loginVerifyRequest{Username: "alice", A: ce.AHex(), M1: session.M1}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var verifyOut loginVerifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verifyOut))
	resp.Body.Close()

	require.Equal(t, session.M2, verifyOut.M2)
	require.NotEmpty(t, verifyOut.Token)
}

func TestServer_RegisterDuplicateUsernameRejected(t *testing.T) {
	ts := newTestServer(t)
	reg, err := srp.GenerateRegistration([]byte("pw"))
	require.NoError(t, err)

	body := registerRequest{Username: "bob", Salt: hex.EncodeToString(reg.Salt), Verifier: reg.VerifierHex}
	resp := postJSON(t, ts, "/register", body, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts, "/register", body, "")
	require.NotEqual(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_VaultRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/vault")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_TOTPEnrollmentRequiresCodeOnNextLogin(t *testing.T) {
	ts := newTestServer(t)
	password := []byte("another strong passphrase")
	reg, err := srp.GenerateRegistration(password)
	require.NoError(t, err)

	resp := postJSON(t, ts, "/register", registerRequest{
		Username: "carol", Salt: hex.EncodeToString(reg.Salt), Verifier: reg.VerifierHex,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = srpLoginVerify(t, ts, "carol", password, "")
	var verifyOut loginVerifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verifyOut))
	resp.Body.Close()
	require.NotEmpty(t, verifyOut.Token)

	resp = postJSON(t, ts, "/totp/enroll", nil, verifyOut.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var enrollOut totpEnrollResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&enrollOut))
	resp.Body.Close()
	require.NotEmpty(t, enrollOut.Secret)
	require.Contains(t, enrollOut.ProvisionURI, "otpauth://totp/")

	resp = srpLoginVerify(t, ts, "carol", password, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	code, err := totp.GenerateCode(enrollOut.Secret, time.Now())
	require.NoError(t, err)
	resp = srpLoginVerify(t, ts, "carol", password, code)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
