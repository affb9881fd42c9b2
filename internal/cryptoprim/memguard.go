//go:build linux || darwin

package cryptoprim

import "golang.org/x/sys/unix"

// LockMemory pins b so the kernel never swaps it to disk. Best-effort:
// callers should not treat a non-nil error as fatal, only as a reason to
// hold the secret for as short a time as possible.
func LockMemory(b []byte) error { return unix.Mlock(b) }

// UnlockMemory releases a region previously locked with LockMemory.
func UnlockMemory(b []byte) error { return unix.Munlock(b) }
