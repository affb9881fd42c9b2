package srp

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/keldara/vaultcraft/internal/cryptoprim"
)

// hexOf renders a big.Int as lowercase hex with no leading zero padding
// and no "0x" prefix, matching the wire encoding in spec.md §6.
func hexOf(x *big.Int) string {
	return strings.ToLower(x.Text(16))
}

// hashBigInts hashes the concatenation of the canonical byte form of each
// big integer (spec.md §4.7's general hash-input serialization rule).
// This is used for k = H(N || g) and u = H(A || B), where inputs are
// genuine numbers rather than hex-string transcript material.
func hashBigInts(xs ...*big.Int) [32]byte {
	var buf []byte
	for _, x := range xs {
		buf = append(buf, x.Bytes()...)
	}
	return cryptoprim.SHA256(buf)
}

// hashBytes hashes the concatenation of raw byte buffers, used for
// x = H(salt || password).
func hashBytes(parts ...[]byte) [32]byte {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return cryptoprim.SHA256(buf)
}

// hashHexTranscript hashes the concatenation of the UTF-8 bytes of each
// hex-string argument. This reproduces the "observed contract" pinned in
// spec.md §4.7/§9 for M1/M2: A, B and K are each rendered as hex strings
// and concatenated before hashing, rather than hashed as raw byte
// buffers. Implementations that hash raw bytes here will not
// interoperate with existing vaults or server state.
func hashHexTranscript(parts ...string) [32]byte {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, []byte(p)...)
	}
	return cryptoprim.SHA256(buf)
}

// padN left-zero-pads x to the byte length of N (256 bytes for the
// 2048-bit group), per spec.md §4.7's pad_N.
func padN(x *big.Int) []byte {
	out := make([]byte, (N2048.BitLen()+7)/8)
	xb := x.Bytes()
	if len(xb) > len(out) {
		xb = xb[len(xb)-len(out):]
	}
	copy(out[len(out)-len(xb):], xb)
	return out
}

// decodeHexBigInt decodes an even-length hex string into a big.Int,
// prepending a zero nibble if the input has odd length, per spec.md
// §4.7's hash-input serialization rule for big integers.
func decodeHexBigInt(s string) (*big.Int, error) {
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// kMultiplier computes k = H(N || g).
func kMultiplier() *big.Int {
	sum := hashBigInts(N2048, G2048)
	return new(big.Int).SetBytes(sum[:])
}
