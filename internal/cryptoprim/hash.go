package cryptoprim

import (
	"crypto/hmac"
	"crypto/sha256"
)

// SHA256 returns the FIPS-180 SHA-256 digest of data. It delegates to the
// standard library's native-optimized implementation, which the
// specification explicitly allows ("may delegate to a compiled-to-native
// module if exposed through this contract only").
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HMACSHA256 computes the standard HMAC construction (64-byte blocks,
// ipad/opad 0x36/0x5C) over data using key, per FIPS-198.
func HMACSHA256(key, data []byte) [32]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}
