package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/keldara/vaultcraft/internal/cryptoprim"
)

// machineKeySize is the size of the local wrapping key held in
// machine.key, in the same directory as the per-user secret files.
const machineKeySize = 32

// File is a file-backed KeyStore: each user's secret is sealed under a
// machine-local key stored in the same directory with 0600 permissions.
// This is the platform-default fallback referenced by spec.md §6; no
// OS-backed keychain is wired in.
type File struct {
	mu         sync.Mutex
	dir        string
	machineKey []byte
}

type sealedSecret struct {
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
	Tag        []byte `json:"tag"`
}

// NewFile opens (or initializes) a file-backed key store rooted at dir.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	key, err := loadOrCreateMachineKey(filepath.Join(dir, "machine.key"))
	if err != nil {
		return nil, err
	}
	return &File{dir: dir, machineKey: key}, nil
}

func loadOrCreateMachineKey(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		if len(b) != machineKeySize {
			return nil, fmt.Errorf("keystore: machine key at %s has wrong size", path)
		}
		return b, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	key := make([]byte, machineKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, err
	}
	return key, nil
}

func (f *File) userPath(user string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(user))
	return filepath.Join(f.dir, name+".key.json")
}

func (f *File) Put(user string, secret []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	iv := make([]byte, 12)
	if _, err := rand.Read(iv); err != nil {
		return err
	}
	ct, tag, err := cryptoprim.Encrypt(f.machineKey, iv, secret, []byte(user))
	if err != nil {
		return err
	}
	raw, err := json.Marshal(sealedSecret{IV: iv, Ciphertext: ct, Tag: tag})
	if err != nil {
		return err
	}
	return writeFileAtomic(f.userPath(user), raw)
}

func (f *File) Get(user string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.userPath(user))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var sealed sealedSecret
	if err := json.Unmarshal(raw, &sealed); err != nil {
		return nil, false, err
	}
	secret, err := cryptoprim.Decrypt(f.machineKey, sealed.IV, sealed.Ciphertext, sealed.Tag, []byte(user))
	if err != nil {
		return nil, false, err
	}
	return secret, true, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
