//go:build !linux && !darwin

package cryptoprim

// LockMemory is a no-op on platforms without an mlock equivalent wired
// in here.
func LockMemory(b []byte) error { return nil }

// UnlockMemory is a no-op on platforms without an mlock equivalent wired
// in here.
func UnlockMemory(b []byte) error { return nil }
