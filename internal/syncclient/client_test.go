package syncclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/keldara/vaultcraft/internal/srp"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	transport, err := NewTransport(srv.URL, 2*time.Second)
	require.NoError(t, err)
	return NewClient(transport)
}

func TestClient_Register(t *testing.T) {
	var gotBody registerRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(successResponse{Success: true})
	})
	c := newTestClient(t, mux)

	reg, err := srp.GenerateRegistration([]byte("correct horse battery staple"))
	require.NoError(t, err)

	err = c.Register(t.Context(), "alice", reg)
	require.NoError(t, err)
	require.Equal(t, "alice", gotBody.Username)
	require.Equal(t, reg.VerifierHex, gotBody.Verifier)
}

func TestClient_RegisterPropagatesServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{Error: "username taken"})
	})
	c := newTestClient(t, mux)

	reg, err := srp.GenerateRegistration([]byte("pw"))
	require.NoError(t, err)
	err = c.Register(t.Context(), "alice", reg)
	require.Error(t, err)
}

func TestClient_FullLoginFlow(t *testing.T) {
	password := []byte("correct horse battery staple")
	reg, err := srp.GenerateRegistration(password)
	require.NoError(t, err)

	var serverEph *srp.ServerEphemeral
	mux := http.NewServeMux()
	mux.HandleFunc("/login/init", func(w http.ResponseWriter, r *http.Request) {
		var req loginInitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		se, err := srp.GenerateServerEphemeral(reg.VerifierHex)
		require.NoError(t, err)
		serverEph = se
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(loginInitResponse{
			Salt: hexEncode(reg.Salt),
			B:    se.BHex(),
		})
	})
	mux.HandleFunc("/login/verify", func(w http.ResponseWriter, r *http.Request) {
		var req loginVerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, err := srp.ServerVerifySession(serverEph, reg.VerifierHex, req.A, req.M1)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errorResponse{Error: "bad proof"})
			return
		}
		json.NewEncoder(w).Encode(loginVerifyResponse{M2: result.M2, Token: "session-token"})
	})
	c := newTestClient(t, mux)

	k, err := c.Login(t.Context(), "alice", password)
	require.NoError(t, err)
	require.NotEmpty(t, k)
	require.Equal(t, "session-token", c.t.Token())
}

func TestClient_LoginWrongPasswordFails(t *testing.T) {
	reg, err := srp.GenerateRegistration([]byte("correct horse battery staple"))
	require.NoError(t, err)

	var serverEph *srp.ServerEphemeral
	mux := http.NewServeMux()
	mux.HandleFunc("/login/init", func(w http.ResponseWriter, r *http.Request) {
		se, err := srp.GenerateServerEphemeral(reg.VerifierHex)
		require.NoError(t, err)
		serverEph = se
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(loginInitResponse{Salt: hexEncode(reg.Salt), B: se.BHex()})
	})
	mux.HandleFunc("/login/verify", func(w http.ResponseWriter, r *http.Request) {
		var req loginVerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, err := srp.ServerVerifySession(serverEph, reg.VerifierHex, req.A, req.M1)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errorResponse{Error: "bad proof"})
			return
		}
		t.Fatal("expected proof to fail for wrong password")
	})
	c := newTestClient(t, mux)

	_, err = c.Login(t.Context(), "alice", []byte("hunter2"))
	require.Error(t, err)
}
