package cryptoprim

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// TestAES256_FIPS197AppendixC3 is the published FIPS-197 Appendix C.3
// known-answer vector for AES-256.
func TestAES256_FIPS197AppendixC3(t *testing.T) {
	key := mustHex(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	pt := mustHex(t, "00112233445566778899aabbccddeeff")
	wantCT := mustHex(t, "8ea2b7ca516745bfeafc49904b496089")

	rk, err := KeySchedule(key)
	if err != nil {
		t.Fatalf("key schedule: %v", err)
	}
	ct, err := EncryptBlock(pt, rk)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !bytes.Equal(ct, wantCT) {
		t.Fatalf("ciphertext mismatch: got %s want %s", hex.EncodeToString(ct), hex.EncodeToString(wantCT))
	}

	back, err := DecryptBlock(ct, rk)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(back, pt) {
		t.Fatal("decrypt did not recover plaintext")
	}
}

func TestAES256_RejectsWrongSizes(t *testing.T) {
	if _, err := KeySchedule(make([]byte, 16)); err != ErrInvalidKeySize {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
	rk, err := KeySchedule(make([]byte, 32))
	if err != nil {
		t.Fatalf("key schedule: %v", err)
	}
	if _, err := EncryptBlock(make([]byte, 15), rk); err != ErrInvalidBlockSize {
		t.Fatalf("expected ErrInvalidBlockSize, got %v", err)
	}
	if _, err := DecryptBlock(make([]byte, 17), rk); err != ErrInvalidBlockSize {
		t.Fatalf("expected ErrInvalidBlockSize, got %v", err)
	}
}
