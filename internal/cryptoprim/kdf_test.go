package cryptoprim

import (
	"encoding/hex"
	"testing"
)

// TestPBKDF2_RFC7914Vector1 checks against the first PBKDF2-HMAC-SHA256
// vector from RFC 7914 section 11. Its iteration count is below the
// public floor, so it runs against the unfloored core.
func TestPBKDF2_RFC7914Vector1(t *testing.T) {
	dk, err := pbkdf2HMACSHA256([]byte("passwd"), []byte("salt"), 1, 64)
	if err != nil {
		t.Fatalf("pbkdf2: %v", err)
	}
	want := "55ac046e56e3089fec1691c22544b605f94185216dde0465e68b9d57c20dacbc49ca9cccf179b645991664b39d77ef317c71b845b1e30bd509112041d3a19783"
	if hex.EncodeToString(dk) != want {
		t.Fatalf("got %s want %s", hex.EncodeToString(dk), want)
	}
}

func TestPBKDF2_RFC7914Vector2(t *testing.T) {
	dk, err := pbkdf2HMACSHA256([]byte("Password"), []byte("NaCl"), 80000, 64)
	if err != nil {
		t.Fatalf("pbkdf2: %v", err)
	}
	want := "4ddcd8f60b98be21830cee5ef22701f9641a4418d04c0414aeff08876b34ab56a1d425a1225833549adb841b51c9b3176a272bdebba1d078478f62b397f33c8"
	if hex.EncodeToString(dk) != want {
		t.Fatalf("got %s want %s", hex.EncodeToString(dk), want)
	}
}

func TestPBKDF2_RejectsLowIterationCount(t *testing.T) {
	if _, err := PBKDF2HMACSHA256([]byte("pw"), []byte("salt"), 1000, 32); err != ErrIterationsTooLow {
		t.Fatalf("expected ErrIterationsTooLow, got %v", err)
	}
}

func TestPBKDF2_MinimumIterationsAcceptable(t *testing.T) {
	// Iteration counts are CPU-heavy; only run at MinPBKDF2Iterations to
	// keep the suite fast while still exercising the boundary.
	if _, err := PBKDF2HMACSHA256([]byte("pw"), []byte("salt"), MinPBKDF2Iterations, 32); err != nil {
		t.Fatalf("expected success at minimum iteration count: %v", err)
	}
}
