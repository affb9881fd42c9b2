package syncclient

import (
	"context"
	"encoding/hex"

	"github.com/keldara/vaultcraft/internal/srp"
	"github.com/keldara/vaultcraft/internal/vaulterrors"
)

// Login runs the full SRP-6a exchange against /login/init and
// /login/verify and, on success, leaves the transport holding the
// session's bearer token. It returns the negotiated session key K, which
// callers do not need for vault decryption (K here authenticates the
// session; the vault's own K is derived locally from the master
// password and device secret) but is useful for tests asserting the
// two sides agree.
func (c *Client) Login(ctx context.Context, username string, password []byte) ([]byte, error) {
	ce, err := srp.GenerateClientEphemeral()
	if err != nil {
		return nil, err
	}
	defer ce.Zero()

	saltHex, bHex, err := c.LoginInit(ctx, username, ce.AHex())
	if err != nil {
		return nil, err
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.InvalidRequest, "syncclient: malformed salt", err)
	}

	session, err := srp.ClientComputeSession(ce, salt, password, bHex)
	if err != nil {
		return nil, err
	}

	m2, err := c.LoginVerify(ctx, username, ce.AHex(), session.M1)
	if err != nil {
		return nil, err
	}
	if m2 != session.M2 {
		return nil, vaulterrors.New(vaulterrors.AuthFail, "syncclient: server proof M2 did not match")
	}
	return session.K, nil
}
