// Package storage persists the two pieces of server-side state a
// vaultd deployment needs: each username's SRP-6a verifier record (never
// the password, never a derived vault key) and each user's latest
// uploaded sync envelope. Two backends are provided, mirroring the
// teacher's file/Mongo split: a JSON file store for local development and
// a MongoDB-backed store for a real deployment.
package storage

import (
	"context"
	"errors"

	"github.com/keldara/vaultcraft/internal/vaultdoc"
)

// ErrNotFound is returned by both stores when a username has no record.
var ErrNotFound = errors.New("storage: not found")

// SrpRecord is the durable half of an SRP-6a registration: a salt and a
// verifier, computed once at registration time by the client and never
// recomputable by the server (the server never sees the password).
type SrpRecord struct {
	Username string `json:"username" bson:"username"`
	Salt     string `json:"salt" bson:"salt"`
	Verifier string `json:"verifier" bson:"verifier"`

	// TOTPSecret is empty unless the user has enrolled the optional,
	// off-by-default second factor (spec.md §9); when set, login/verify
	// additionally requires a matching totp_code.
	TOTPSecret string `json:"totp_secret,omitempty" bson:"totp_secret,omitempty"`
}

// SrpStore holds one SrpRecord per username.
type SrpStore interface {
	PutSrpRecord(ctx context.Context, rec SrpRecord) error
	GetSrpRecord(ctx context.Context, username string) (SrpRecord, error)
}

// VaultStore holds one vaultdoc.SyncEnvelope per username — the
// zero-knowledge ciphertext blob the sync reconciler pushes and pulls.
// The server never decrypts it; each upload replaces the whole envelope,
// without comparing timestamps.
type VaultStore interface {
	PutVaultEnvelope(ctx context.Context, env vaultdoc.SyncEnvelope) error
	GetVaultEnvelope(ctx context.Context, username string) (vaultdoc.SyncEnvelope, error)
}
