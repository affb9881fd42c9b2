package syncclient

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/keldara/vaultcraft/internal/srp"
	"github.com/keldara/vaultcraft/internal/vaultdoc"
	"github.com/keldara/vaultcraft/internal/vaulterrors"
)

// Client implements the sync server's REST surface (spec.md §6) over a
// Transport, and the vaultengine.CredentialUpdater interface so a vault
// can push new SRP credentials without importing this package's
// transport details. Reconciler, not Client, implements vaultengine.Syncer.
type Client struct {
	t *Transport
}

// NewClient wraps an already-configured Transport.
func NewClient(t *Transport) *Client {
	return &Client{t: t}
}

// Token returns the bearer token currently held by the underlying
// transport, if a session has been established via Login.
func (c *Client) Token() string { return c.t.Token() }

// SetToken restores a previously persisted session token onto the
// underlying transport, so a caller can resume an authenticated session
// without running the SRP login exchange again.
func (c *Client) SetToken(token string) { c.t.SetToken(token) }

type registerRequest struct {
	Username string `json:"username"`
	Salt     string `json:"salt"`
	Verifier string `json:"verifier"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register posts a brand-new SRP registration.
func (c *Client) Register(ctx context.Context, username string, reg *srp.Registration) error {
	resp, err := c.t.client.R().
		SetContext(ctx).
		SetBody(registerRequest{
			Username: username,
			Salt:     hexEncode(reg.Salt),
			Verifier: reg.VerifierHex,
		}).
		SetResult(&successResponse{}).
		SetError(&errorResponse{}).
		Post("/register")
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.SyncFailed, "syncclient: register request", err)
	}
	return mapHTTPError(resp.StatusCode(), resp.Error())
}

type loginInitRequest struct {
	Username string `json:"username"`
	A        string `json:"A"`
}

type loginInitResponse struct {
	Salt string `json:"salt"`
	B    string `json:"B"`
}

// LoginInit posts the client's public ephemeral A and returns the
// account's salt and the server's public ephemeral B.
func (c *Client) LoginInit(ctx context.Context, username, aHex string) (saltHex, bHex string, err error) {
	var out loginInitResponse
	resp, reqErr := c.t.client.R().
		SetContext(ctx).
		SetBody(loginInitRequest{Username: username, A: aHex}).
		SetResult(&out).
		SetError(&errorResponse{}).
		Post("/login/init")
	if reqErr != nil {
		return "", "", vaulterrors.Wrap(vaulterrors.SyncFailed, "syncclient: login/init request", reqErr)
	}
	if err := mapHTTPError(resp.StatusCode(), resp.Error()); err != nil {
		return "", "", err
	}
	return out.Salt, out.B, nil
}

type loginVerifyRequest struct {
	Username string `json:"username"`
	A        string `json:"A"`
	M1       string `json:"M1"`
}

type loginVerifyResponse struct {
	M2    string `json:"M2"`
	Token string `json:"token"`
}

// LoginVerify posts the client's proof M1 and, on success, stores the
// returned bearer token on the transport and returns the server's own
// proof M2 for the caller to check against its locally computed value.
func (c *Client) LoginVerify(ctx context.Context, username, aHex, m1Hex string) (m2Hex string, err error) {
	var out loginVerifyResponse
	resp, reqErr := c.t.client.R().
		SetContext(ctx).
		SetBody(loginVerifyRequest{Username: username, A: aHex, M1: m1Hex}).
		SetResult(&out).
		SetError(&errorResponse{}).
		Post("/login/verify")
	if reqErr != nil {
		return "", vaulterrors.Wrap(vaulterrors.SyncFailed, "syncclient: login/verify request", reqErr)
	}
	if err := mapHTTPError(resp.StatusCode(), resp.Error()); err != nil {
		return "", err
	}
	c.t.SetToken(out.Token)
	return out.M2, nil
}

type passwordUpdateRequest struct {
	Salt     string `json:"salt"`
	Verifier string `json:"verifier"`
}

// UpdatePassword implements vaultengine.CredentialUpdater.
func (c *Client) UpdatePassword(user string, reg *srp.Registration) error {
	ctx := context.Background()
	resp, err := c.t.authenticated().
		SetContext(ctx).
		SetBody(passwordUpdateRequest{Salt: hexEncode(reg.Salt), Verifier: reg.VerifierHex}).
		SetResult(&successResponse{}).
		SetError(&errorResponse{}).
		Post("/password")
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.SyncFailed, "syncclient: password update request", err)
	}
	return mapHTTPError(resp.StatusCode(), resp.Error())
}

type vaultPostResponse struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
}

// GetVault fetches the remote sync envelope. It returns (nil, nil) when
// the server reports no vault yet (404), per spec.md §6.
func (c *Client) GetVault(ctx context.Context) (*vaultdoc.SyncEnvelope, error) {
	var out vaultdoc.SyncEnvelope
	resp, err := c.t.authenticated().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorResponse{}).
		Get("/vault")
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.SyncFailed, "syncclient: get vault request", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if err := mapHTTPError(resp.StatusCode(), resp.Error()); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostVault uploads a sync envelope, returning the server-echoed
// timestamp (not relied on for correctness, per spec.md §4.10 step 5).
func (c *Client) PostVault(ctx context.Context, env *vaultdoc.SyncEnvelope) (string, error) {
	var out vaultPostResponse
	resp, err := c.t.authenticated().
		SetContext(ctx).
		SetBody(env).
		SetResult(&out).
		SetError(&errorResponse{}).
		Post("/vault")
	if err != nil {
		return "", vaulterrors.Wrap(vaulterrors.SyncFailed, "syncclient: post vault request", err)
	}
	if err := mapHTTPError(resp.StatusCode(), resp.Error()); err != nil {
		return "", err
	}
	return out.Timestamp, nil
}

func mapHTTPError(status int, body interface{}) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := "request failed"
	if eb, ok := body.(*errorResponse); ok && eb != nil && eb.Error != "" {
		msg = eb.Error
	}
	switch status {
	case http.StatusNotFound:
		return vaulterrors.New(vaulterrors.NotFound, msg)
	case http.StatusUnauthorized:
		return vaulterrors.New(vaulterrors.AuthFail, msg)
	case http.StatusBadRequest:
		return vaulterrors.New(vaulterrors.InvalidRequest, msg)
	default:
		return vaulterrors.New(vaulterrors.SyncFailed, fmt.Sprintf("%s (status %d)", msg, status))
	}
}

func hexEncode(b []byte) string { return hex.EncodeToString(b) }
