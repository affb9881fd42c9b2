// Package vaultdoc defines the on-disk and on-wire vault document shape
// (spec.md §4.8) and the canonical serialization used both for the
// verification-token plaintext and for sync digests.
package vaultdoc

import "time"

// Document is the structured vault file: one salt, one device-derived
// key's verification envelope, and the encrypted entry list.
type Document struct {
	User              string    `json:"user"`
	Version           int       `json:"version"`
	Salt              []byte    `json:"salt"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	VerificationToken []byte    `json:"verificationToken"`
	VerificationIV    []byte    `json:"verificationIV"`
	VerificationTag   []byte    `json:"verificationTag"`
	Vault             Body      `json:"vault"`
	LastDevice        *Device   `json:"last_device,omitempty"`
}

// Device records which device last opened this vault, so the opening
// side can warn the user when the device ID or the device secret differs.
// Adapted from the teacher's per-device key directory entry
// (Device/DHKey with an X25519 public key per device); this spec has no
// per-device key exchange, so what survives is a device ID plus a
// fingerprint of the device secret, used advisory-only, never as a trust
// boundary (that remains SRP + PBKDF2, per spec.md §7).
type Device struct {
	ID          string `json:"id"`
	Fingerprint []byte `json:"fingerprint"`
}

// Body wraps the password list so the JSON shape matches spec.md's
// `vault.passwords[]` nesting.
type Body struct {
	Passwords []PasswordRecord `json:"passwords"`
}

// PasswordRecord is one encrypted entry plus its plaintext metadata.
type PasswordRecord struct {
	PasswordID int      `json:"password_id"`
	Metadata   Metadata `json:"metadata"`
	Data       Data     `json:"data"`
}

// Metadata is the plaintext-visible side of an entry: never username or
// password, only the fields a list view needs without unlocking anything
// beyond the vault itself.
type Metadata struct {
	Site     string    `json:"site"`
	Category string    `json:"category"`
	Note     string    `json:"note"`
	Favorite bool      `json:"favorite"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// Data holds the AEAD-encrypted username and password, each under its
// own nonce and tag.
type Data struct {
	Username    []byte `json:"username"`
	UsernameIV  []byte `json:"username_iv"`
	UsernameTag []byte `json:"username_tag"`
	Password    []byte `json:"password"`
	PasswordIV  []byte `json:"password_iv"`
	PasswordTag []byte `json:"password_tag"`
}
