package srp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"math/big"

	"github.com/keldara/vaultcraft/internal/vaulterrors"
)

// ephemeralBits is the bit length of private ephemeral exponents a and b,
// per spec.md §4.7.
const ephemeralBits = 256

// Registration is the material a client hands the server once at sign-up:
// a salt and the verifier derived from it and the password. Neither field
// reveals the password.
type Registration struct {
	Salt        []byte
	VerifierHex string
}

// GenerateRegistration derives (salt, verifier) for a brand-new account.
// salt is 16 random bytes; x = H(salt || password); v = g^x mod N.
func GenerateRegistration(password []byte) (*Registration, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	x := computeX(salt, password)
	v := new(big.Int).Exp(G2048, x, N2048)
	return &Registration{Salt: salt, VerifierHex: hexOf(v)}, nil
}

func computeX(salt, password []byte) *big.Int {
	sum := hashBytes(salt, password)
	return new(big.Int).SetBytes(sum[:])
}

// ClientEphemeral is the client's private exponent and its public share.
type ClientEphemeral struct {
	a *big.Int
	A *big.Int
}

// AHex returns the public ephemeral A encoded for the wire.
func (c *ClientEphemeral) AHex() string { return hexOf(c.A) }

// Zero wipes the private exponent once the session is done with it.
// SRP ephemerals are single-use: a session must not be resumed from a
// zeroed ClientEphemeral.
func (c *ClientEphemeral) Zero() {
	if c.a != nil {
		c.a.SetInt64(0)
	}
}

// GenerateClientEphemeral produces a fresh a/A pair, retrying if A would
// reduce to 0 mod N (which cannot happen in practice but is checked per
// spec.md §4.7's safety invariant).
func GenerateClientEphemeral() (*ClientEphemeral, error) {
	for {
		a, err := randomExponent()
		if err != nil {
			return nil, err
		}
		A := new(big.Int).Exp(G2048, a, N2048)
		if A.Sign() == 0 {
			continue
		}
		return &ClientEphemeral{a: a, A: A}, nil
	}
}

func randomExponent() (*big.Int, error) {
	buf := make([]byte, ephemeralBits/8)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(buf), nil
}

// SessionResult holds the shared session key and the mutual proof
// transcripts M1 (client -> server) and M2 (server -> client).
type SessionResult struct {
	K  []byte
	M1 string
	M2 string
}

// ClientComputeSession runs the client side of the key-agreement step: it
// takes the server's public ephemeral B and the account's salt, derives
// the shared key K and the proof M1 the server must verify, and the
// expected M2 the server should return.
//
// abort if B mod N == 0. u = H(A || B). x = H(salt || password).
// v = g^x. S = (B - k*v)^(a + u*x) mod N. K = H(pad_N(S)).
// M1 = H(A_hex || B_hex || K_hex); M2 = H(A_hex || M1_hex || K_hex).
func ClientComputeSession(ce *ClientEphemeral, salt []byte, password []byte, bHex string) (*SessionResult, error) {
	B, err := decodeHexBigInt(bHex)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.InvalidRequest, "srp: malformed B", err)
	}
	if new(big.Int).Mod(B, N2048).Sign() == 0 {
		return nil, vaulterrors.New(vaulterrors.AuthFail, "srp: server sent B = 0 (mod N)")
	}

	uSum := hashBigInts(ce.A, B)
	u := new(big.Int).SetBytes(uSum[:])

	x := computeX(salt, password)
	v := new(big.Int).Exp(G2048, x, N2048)

	k := kMultiplier()
	base := new(big.Int).Sub(B, new(big.Int).Mul(k, v))
	base.Mod(base, N2048)
	if base.Sign() < 0 {
		base.Add(base, N2048)
	}

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, ce.a)

	S := new(big.Int).Exp(base, exp, N2048)
	K := hashPadded(S)

	aHex := ce.AHex()
	m1 := hashHexTranscript(aHex, hexOf(B), hex.EncodeToString(K))
	m1Hex := hex.EncodeToString(m1[:])
	m2 := hashHexTranscript(aHex, m1Hex, hex.EncodeToString(K))

	return &SessionResult{K: K, M1: m1Hex, M2: hex.EncodeToString(m2[:])}, nil
}

func hashPadded(S *big.Int) []byte {
	sum := hashBytes(padN(S))
	return sum[:]
}

// ServerEphemeral is the server's private exponent and its public share,
// computed against a stored verifier.
type ServerEphemeral struct {
	b *big.Int
	B *big.Int
}

// BHex returns the public ephemeral B encoded for the wire.
func (s *ServerEphemeral) BHex() string { return hexOf(s.B) }

// Zero wipes the private exponent.
func (s *ServerEphemeral) Zero() {
	if s.b != nil {
		s.b.SetInt64(0)
	}
}

// GenerateServerEphemeral produces a fresh b/B pair from the stored
// verifier: b = 256 random bits; B = (k*v + g^b) mod N. Regenerates if B
// would reduce to 0 mod N.
func GenerateServerEphemeral(verifierHex string) (*ServerEphemeral, error) {
	v, err := decodeHexBigInt(verifierHex)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.InvalidRequest, "srp: malformed verifier", err)
	}
	k := kMultiplier()
	for {
		b, err := randomExponent()
		if err != nil {
			return nil, err
		}
		B := new(big.Int).Mul(k, v)
		B.Add(B, new(big.Int).Exp(G2048, b, N2048))
		B.Mod(B, N2048)
		if B.Sign() == 0 {
			continue
		}
		return &ServerEphemeral{b: b, B: B}, nil
	}
}

// ServerVerifySession checks the client's proof M1 against the server's
// own computation and, on success, returns the shared key K and the
// server's own proof M2.
//
// abort if A mod N == 0. u = H(A || B). S = (A * v^u)^b mod N.
// K = H(pad_N(S)). Compare the client's M1 against the expected value in
// constant time.
func ServerVerifySession(se *ServerEphemeral, verifierHex, aHex, clientM1Hex string) (*SessionResult, error) {
	A, err := decodeHexBigInt(aHex)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.InvalidRequest, "srp: malformed A", err)
	}
	if new(big.Int).Mod(A, N2048).Sign() == 0 {
		return nil, vaulterrors.New(vaulterrors.AuthFail, "srp: client sent A = 0 (mod N)")
	}
	v, err := decodeHexBigInt(verifierHex)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.InvalidRequest, "srp: malformed verifier", err)
	}

	uSum := hashBigInts(A, se.B)
	u := new(big.Int).SetBytes(uSum[:])

	base := new(big.Int).Exp(v, u, N2048)
	base.Mul(base, A)
	base.Mod(base, N2048)

	S := new(big.Int).Exp(base, se.b, N2048)
	K := hashPadded(S)

	aWire := hexOf(A)
	bWire := se.BHex()
	expectedM1 := hashHexTranscript(aWire, bWire, hex.EncodeToString(K))
	expectedM1Hex := hex.EncodeToString(expectedM1[:])

	if subtle.ConstantTimeCompare([]byte(expectedM1Hex), []byte(clientM1Hex)) != 1 {
		return nil, vaulterrors.New(vaulterrors.AuthFail, "srp: client proof did not verify")
	}

	m2 := hashHexTranscript(aWire, expectedM1Hex, hex.EncodeToString(K))
	return &SessionResult{K: K, M1: expectedM1Hex, M2: hex.EncodeToString(m2[:])}, nil
}
