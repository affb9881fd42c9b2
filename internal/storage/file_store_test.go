package storage

import (
	"testing"
	"time"

	"github.com/keldara/vaultcraft/internal/vaultdoc"
)

func TestFileSrpStore_RoundTrip(t *testing.T) {
	s, err := NewFileSrpStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()

	rec := SrpRecord{Username: "alice", Salt: "abcd", Verifier: "ef01"}
	if err := s.PutSrpRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSrpRecord(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got != rec {
		t.Fatalf("got %+v, want %+v", got, rec)
	}
}

func TestFileSrpStore_GetMissingIsErrNotFound(t *testing.T) {
	s, err := NewFileSrpStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSrpRecord(t.Context(), "nobody"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileVaultStore_RoundTrip(t *testing.T) {
	s, err := NewFileVaultStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()

	env := vaultdoc.SyncEnvelope{
		User: "alice", Version: 1, Salt: []byte{1, 2, 3},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
		VaultIV:   []byte{4, 5, 6}, VaultCiphertext: []byte{7, 8}, VaultTag: []byte{9},
	}
	if err := s.PutVaultEnvelope(ctx, env); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetVaultEnvelope(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !got.CreatedAt.Equal(env.CreatedAt) || got.User != env.User {
		t.Fatalf("got %+v, want %+v", got, env)
	}
}
