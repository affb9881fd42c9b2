// Package srp implements the SRP-6a augmented password-authenticated key
// exchange over the 2048-bit MODP group from RFC 5054, for both the
// client and server roles. Hash inputs follow the "observed contract"
// pinned in spec.md §4.7/§9: H consumes A, B and K as their hex-string
// encodings concatenated together, not raw byte buffers — a standards
// deviation kept deliberately for interoperability with existing
// on-disk vaults and server state.
package srp

import "math/big"

// groupHex2048 is the 2048-bit MODP group prime from RFC 5054 §A.
const groupHex2048 = "" +
	"AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B855F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB694B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

// gGen is the generator for the 2048-bit MODP group.
const gGen = 2

var (
	// N2048 is the 2048-bit MODP prime.
	N2048 *big.Int
	// G2048 is the group generator.
	G2048 *big.Int
)

func init() {
	n, ok := new(big.Int).SetString(groupHex2048, 16)
	if !ok {
		panic("srp: failed to parse 2048-bit MODP prime")
	}
	N2048 = n
	G2048 = big.NewInt(gGen)
}
