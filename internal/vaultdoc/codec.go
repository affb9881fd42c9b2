package vaultdoc

import "encoding/json"

// Encode marshals a Document to its on-disk JSON form.
func Encode(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}

// Decode parses an on-disk Document. The codec round-trips: Decode then
// Encode reproduces the exact same document modulo JSON object key
// order, which Go's encoding/json always emits in struct declaration
// order, so round-tripping through these two functions is byte-for-byte
// stable.
func Decode(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Canonical produces the canonical serialization of an entry list used
// both for the verification-token plaintext and for sync digests: the
// JSON encoding of the records in insertion order, exactly as engines
// emit them.
func Canonical(records []PasswordRecord) ([]byte, error) {
	if records == nil {
		records = []PasswordRecord{}
	}
	return json.Marshal(records)
}

// EncodeSyncEnvelope marshals a SyncEnvelope to its wire JSON form.
func EncodeSyncEnvelope(env *SyncEnvelope) ([]byte, error) {
	return json.Marshal(env)
}

// DecodeSyncEnvelope parses a SyncEnvelope from wire JSON.
func DecodeSyncEnvelope(raw []byte) (*SyncEnvelope, error) {
	var env SyncEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
