package syncclient

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"time"

	"github.com/keldara/vaultcraft/internal/cryptoprim"
	"github.com/keldara/vaultcraft/internal/vaultdoc"
	"github.com/keldara/vaultcraft/internal/vaultengine"
	"github.com/keldara/vaultcraft/internal/vaulterrors"
)

const (
	vaultAAD        = "sync-vault-envelope"
	verificationAAD = "sync-verification-envelope"
)

// Reconciler drives the sync algorithm from spec.md §4.10 for one
// vault, bound to a Client.
type Reconciler struct {
	client  *Client
	timeout time.Duration
}

// NewReconciler builds a Reconciler with the given per-round timeout
// (spec.md §5: sync requests use a bounded timeout, default 10s).
func NewReconciler(client *Client, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reconciler{client: client, timeout: timeout}
}

// Sync implements vaultengine.Syncer.
func (r *Reconciler) Sync(v *vaultengine.Vault) error {
	if r.client.t.Token() == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	remote, err := r.client.GetVault(ctx)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.SyncFailed, "syncclient: fetch remote vault", err)
	}
	if remote == nil {
		return r.push(ctx, v)
	}

	local := v.UpdatedAt()
	switch {
	case remote.UpdatedAt.After(local):
		return r.download(v, remote)
	case remote.UpdatedAt.Before(local):
		return r.push(ctx, v)
	default:
		v.RecordSyncNoop()
		return nil
	}
}

func (r *Reconciler) push(ctx context.Context, v *vaultengine.Vault) error {
	doc := v.Document()
	key := v.Key()

	canonical, err := vaultdoc.Canonical(doc.Vault.Passwords)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.Internal, "syncclient: canonicalize entries", err)
	}

	vaultIV, vaultCT, vaultTag, err := seal(key, canonical, vaultAAD)
	if err != nil {
		return err
	}

	envelopeDigest := cryptoprim.SHA256(concatEnvelope(vaultIV, vaultCT, vaultTag))
	verifIV, verifCT, verifTag, err := seal(key, envelopeDigest[:], verificationAAD)
	if err != nil {
		return err
	}

	env := &vaultdoc.SyncEnvelope{
		User: doc.User, Version: doc.Version, Salt: doc.Salt,
		CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt,
		VaultIV: vaultIV, VaultCiphertext: vaultCT, VaultTag: vaultTag,
		VerificationIV: verifIV, VerificationCiphertext: verifCT, VerificationTag: verifTag,
	}
	_, err = r.client.PostVault(ctx, env)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.SyncFailed, "syncclient: upload vault", err)
	}
	v.RecordSyncPush()
	return nil
}

func (r *Reconciler) download(v *vaultengine.Vault, remote *vaultdoc.SyncEnvelope) error {
	key := v.Key()

	envelopeDigest := cryptoprim.SHA256(concatEnvelope(remote.VaultIV, remote.VaultCiphertext, remote.VaultTag))
	plaintext, err := cryptoprim.Decrypt(key[:], remote.VerificationIV, remote.VerificationCiphertext, remote.VerificationTag, []byte(verificationAAD))
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.IntegrityFail, "syncclient: verification envelope did not decrypt", err)
	}
	if subtle.ConstantTimeCompare(plaintext, envelopeDigest[:]) != 1 {
		return vaulterrors.New(vaulterrors.IntegrityFail, "syncclient: remote envelope digest mismatch")
	}

	canonical, err := cryptoprim.Decrypt(key[:], remote.VaultIV, remote.VaultCiphertext, remote.VaultTag, []byte(vaultAAD))
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.IntegrityFail, "syncclient: vault envelope did not decrypt", err)
	}

	var records []vaultdoc.PasswordRecord
	if err := json.Unmarshal(canonical, &records); err != nil {
		return vaulterrors.Wrap(vaulterrors.InvalidRequest, "syncclient: decode remote entries", err)
	}

	return v.ApplyRemote(records, remote.Salt, remote.CreatedAt, remote.UpdatedAt)
}

func seal(key [32]byte, plaintext []byte, aad string) (iv, ct, tag []byte, err error) {
	iv = make([]byte, 12)
	if _, err = rand.Read(iv); err != nil {
		return nil, nil, nil, err
	}
	ct, tag, err = cryptoprim.Encrypt(key[:], iv, plaintext, []byte(aad))
	return iv, ct, tag, err
}

func concatEnvelope(iv, ct, tag []byte) []byte {
	out := make([]byte, 0, len(iv)+len(ct)+len(tag))
	out = append(out, iv...)
	out = append(out, ct...)
	out = append(out, tag...)
	return out
}
