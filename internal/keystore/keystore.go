// Package keystore implements the KeyStore capability from spec.md §6:
// a process-global put/get store for the per-user device secret, kept
// separate from the vault file itself so a stolen vault file alone does
// not unlock anything.
package keystore

// KeyStore stores opaque per-user key material. Implementations may
// delegate to an OS-backed encrypted store; the in-process contract is
// just put/get.
type KeyStore interface {
	Put(user string, secret []byte) error
	Get(user string) ([]byte, bool, error)
}
