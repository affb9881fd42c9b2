package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/keldara/vaultcraft/internal/vaultdoc"
)

// FileSrpStore and FileVaultStore each keep one JSON file per username
// under a directory, written atomically via a temp file plus rename — the
// same discipline keystore.File and vaultengine.Vault use for their own
// on-disk state.

type FileSrpStore struct{ dir string }

func NewFileSrpStore(dir string) (*FileSrpStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileSrpStore{dir: dir}, nil
}

func (s *FileSrpStore) PutSrpRecord(_ context.Context, rec SrpRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path(rec.Username), b)
}

func (s *FileSrpStore) GetSrpRecord(_ context.Context, username string) (SrpRecord, error) {
	b, err := os.ReadFile(s.path(username))
	if os.IsNotExist(err) {
		return SrpRecord{}, ErrNotFound
	}
	if err != nil {
		return SrpRecord{}, err
	}
	var rec SrpRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return SrpRecord{}, err
	}
	return rec, nil
}

func (s *FileSrpStore) path(username string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(username))+".srp.json")
}

type FileVaultStore struct{ dir string }

func NewFileVaultStore(dir string) (*FileVaultStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileVaultStore{dir: dir}, nil
}

func (s *FileVaultStore) PutVaultEnvelope(_ context.Context, env vaultdoc.SyncEnvelope) error {
	b, err := vaultdoc.EncodeSyncEnvelope(&env)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path(env.User), b)
}

func (s *FileVaultStore) GetVaultEnvelope(_ context.Context, username string) (vaultdoc.SyncEnvelope, error) {
	b, err := os.ReadFile(s.path(username))
	if os.IsNotExist(err) {
		return vaultdoc.SyncEnvelope{}, ErrNotFound
	}
	if err != nil {
		return vaultdoc.SyncEnvelope{}, err
	}
	env, err := vaultdoc.DecodeSyncEnvelope(b)
	if err != nil {
		return vaultdoc.SyncEnvelope{}, err
	}
	return *env, nil
}

func (s *FileVaultStore) path(username string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(username))+".vault.json")
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
