package vaultengine

import (
	"crypto/rand"
	"time"

	"github.com/keldara/vaultcraft/internal/audit"
	"github.com/keldara/vaultcraft/internal/cryptoprim"
	"github.com/keldara/vaultcraft/internal/srp"
	"github.com/keldara/vaultcraft/internal/vaultdoc"
	"github.com/keldara/vaultcraft/internal/vaulterrors"
)

// CredentialUpdater pushes a freshly generated SRP registration to the
// sync server after a master-password change. It is satisfied by
// internal/syncclient.Client.
type CredentialUpdater interface {
	UpdatePassword(user string, reg *srp.Registration) error
}

// WithCredentialUpdater attaches the collaborator used to push new SRP
// credentials to the server after a password change.
func WithCredentialUpdater(u CredentialUpdater) Option {
	return func(v *Vault) { v.credUpdater = u }
}

// ChangeMasterPassword verifies the current password, re-derives the
// vault key under a new salt, re-encrypts every entry, regenerates the
// verification token, and (if a session is held) pushes a fresh SRP
// registration to the server. Any failure before the final persist
// leaves the on-disk vault untouched, per spec.md §4.9.
func (v *Vault) ChangeMasterPassword(current, newPassword []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireUnlocked(); err != nil {
		return err
	}

	deviceSecret, ok, err := v.keyStore.Get(v.user)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.Internal, "vaultengine: load device secret", err)
	}
	if !ok {
		return vaulterrors.New(vaulterrors.InvalidState, "vaultengine: no device secret for user")
	}
	defer cryptoprim.Zero(deviceSecret)

	currentKey, err := deriveKey(current, deviceSecret, v.salt, v.iterations)
	if err != nil {
		return err
	}
	if currentKey != v.key {
		cryptoprim.Zero(currentKey[:])
		return vaulterrors.New(vaulterrors.WrongPassword, "vaultengine: current master password incorrect")
	}

	newSalt := make([]byte, saltSize)
	if _, err := rand.Read(newSalt); err != nil {
		return err
	}
	newKey, err := deriveKey(newPassword, deviceSecret, newSalt, v.iterations)
	if err != nil {
		return err
	}

	newEntries, err := v.reencryptAll(newKey)
	if err != nil {
		cryptoprim.Zero(newKey[:])
		return err
	}

	oldKey := v.key
	oldEntries := v.entries
	oldSalt := v.salt
	oldVersion := v.version
	oldVerifIV, oldVerifTok, oldVerifTag := v.verificationIV, v.verificationToken, v.verificationTag

	v.salt = newSalt
	v.key = newKey
	v.entries = newEntries
	v.updatedAt = time.Now().UTC()
	v.version++

	if err := v.sealAndPersist(); err != nil {
		// Roll back in-memory state; the file write never happened so
		// disk remains at the previous valid vault.
		v.salt, v.key, v.entries = oldSalt, oldKey, oldEntries
		v.version = oldVersion
		v.verificationIV, v.verificationToken, v.verificationTag = oldVerifIV, oldVerifTok, oldVerifTag
		cryptoprim.Zero(newKey[:])
		return err
	}
	cryptoprim.Zero(oldKey[:])

	v.auditLog.Append(audit.ActionPasswordChange, 0)

	if v.credUpdater != nil {
		reg, err := srp.GenerateRegistration(newPassword)
		if err == nil {
			_ = v.credUpdater.UpdatePassword(v.user, reg)
		}
	}
	return nil
}

// reencryptAll decrypts every entry under the current (old) key and
// re-encrypts each under newKey with fresh nonces, leaving v.key and
// v.entries untouched until the caller commits the result.
func (v *Vault) reencryptAll(newKey [32]byte) ([]vaultdoc.PasswordRecord, error) {
	out := make([]vaultdoc.PasswordRecord, 0, len(v.entries))
	for _, rec := range v.entries {
		entry, err := v.decryptEntry(rec)
		if err != nil {
			return nil, err
		}
		uCT, uIV, uTag, err := encryptFieldWithKey(newKey, []byte(entry.Username), "username")
		if err != nil {
			return nil, err
		}
		pCT, pIV, pTag, err := encryptFieldWithKey(newKey, []byte(entry.Password), "password")
		if err != nil {
			return nil, err
		}
		newRec := rec
		newRec.Data = vaultdoc.Data{
			Username: uCT, UsernameIV: uIV, UsernameTag: uTag,
			Password: pCT, PasswordIV: pIV, PasswordTag: pTag,
		}
		out = append(out, newRec)
	}
	return out, nil
}
