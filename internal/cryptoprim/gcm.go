package cryptoprim

import (
	"crypto/subtle"
	"errors"
)

const (
	// TagSize is the length in bytes of a GCM authentication tag.
	TagSize = 16
)

// ErrInvalidTagSize is returned when a caller-supplied tag is not 16
// bytes.
var ErrInvalidTagSize = errors.New("cryptoprim: tag must be 16 bytes")

// ErrAuthFail is returned when GCM tag verification fails. No plaintext
// is ever returned alongside this error.
var ErrAuthFail = errors.New("cryptoprim: authentication failed")

// incr32 increments the low 32 bits of a 16-byte counter block, per
// SP 800-38D section 6.2 (the "inc32" function), wrapping on overflow.
func incr32(block *[16]byte) {
	for i := 15; i >= 12; i-- {
		block[i]++
		if block[i] != 0 {
			return
		}
	}
}

// gctr implements the GCTR function: counter-mode keystream generation
// and XOR, starting from initial counter icb and incrementing only the
// low 32 bits between blocks.
func gctr(rk *RoundKeys, icb [16]byte, in []byte) ([]byte, error) {
	if len(in) == 0 {
		return []byte{}, nil
	}
	out := make([]byte, len(in))
	counter := icb
	for off := 0; off < len(in); off += 16 {
		ks, err := EncryptBlock(counter[:], rk)
		if err != nil {
			return nil, err
		}
		end := off + 16
		if end > len(in) {
			end = len(in)
		}
		for i := off; i < end; i++ {
			out[i] = in[i] ^ ks[i-off]
		}
		incr32(&counter)
	}
	return out, nil
}

// j0 computes the pre-counter block J0 for the given IV and hash subkey,
// per SP 800-38D section 7.1 step 2.
func j0(h [16]byte, iv []byte) [16]byte {
	if len(iv) == 12 {
		var block [16]byte
		copy(block[:12], iv)
		block[15] = 1
		return block
	}
	padded := PadTo16(iv)
	lenBlock := LengthBlock(0, len(iv))
	ghashInput := append(append([]byte{}, padded...), lenBlock[:]...)
	sum, _ := GHASH(h, ghashInput) // len is always block-aligned here
	return sum
}

// Encrypt performs AES-256-GCM encryption. key must be 32 bytes. iv may be
// any length; 96 bits (12 bytes) is the common case and avoids an extra
// GHASH pass to derive J0. Returns ciphertext and a 16-byte tag.
func Encrypt(key, iv, plaintext, aad []byte) (ciphertext, tag []byte, err error) {
	rk, err := KeySchedule(key)
	if err != nil {
		return nil, nil, err
	}
	var zero [16]byte
	hBytes, err := EncryptBlock(zero[:], rk)
	if err != nil {
		return nil, nil, err
	}
	var h [16]byte
	copy(h[:], hBytes)

	j := j0(h, iv)
	j1 := j
	incr32(&j1)

	ct, err := gctr(rk, j1, plaintext)
	if err != nil {
		return nil, nil, err
	}

	lenBlock := LengthBlock(len(aad), len(ct))
	ghashInput := make([]byte, 0, len(PadTo16(aad))+len(PadTo16(ct))+16)
	ghashInput = append(ghashInput, PadTo16(aad)...)
	ghashInput = append(ghashInput, PadTo16(ct)...)
	ghashInput = append(ghashInput, lenBlock[:]...)
	s, err := GHASH(h, ghashInput)
	if err != nil {
		return nil, nil, err
	}
	tagBytes, err := gctr(rk, j, s[:])
	if err != nil {
		return nil, nil, err
	}
	return ct, tagBytes, nil
}

// Decrypt performs AES-256-GCM decryption and tag verification in
// constant time. On any authentication failure, it returns ErrAuthFail
// and a nil plaintext — no partially-decrypted data is ever released.
func Decrypt(key, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	if len(tag) != TagSize {
		return nil, ErrInvalidTagSize
	}
	rk, err := KeySchedule(key)
	if err != nil {
		return nil, err
	}
	var zero [16]byte
	hBytes, err := EncryptBlock(zero[:], rk)
	if err != nil {
		return nil, err
	}
	var h [16]byte
	copy(h[:], hBytes)

	j := j0(h, iv)

	lenBlock := LengthBlock(len(aad), len(ciphertext))
	ghashInput := make([]byte, 0, len(PadTo16(aad))+len(PadTo16(ciphertext))+16)
	ghashInput = append(ghashInput, PadTo16(aad)...)
	ghashInput = append(ghashInput, PadTo16(ciphertext)...)
	ghashInput = append(ghashInput, lenBlock[:]...)
	s, err := GHASH(h, ghashInput)
	if err != nil {
		return nil, err
	}
	expectedTag, err := gctr(rk, j, s[:])
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare(expectedTag, tag) != 1 {
		return nil, ErrAuthFail
	}

	j1 := j
	incr32(&j1)
	pt, err := gctr(rk, j1, ciphertext)
	if err != nil {
		return nil, err
	}
	return pt, nil
}
