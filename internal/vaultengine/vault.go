// Package vaultengine implements the vault state machine from spec.md
// §4.9: create, open, list, add, edit, remove and change_master_password
// over the document shape defined in internal/vaultdoc, backed by the
// from-scratch AEAD in internal/cryptoprim.
package vaultengine

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/keldara/vaultcraft/internal/audit"
	"github.com/keldara/vaultcraft/internal/cryptoprim"
	"github.com/keldara/vaultcraft/internal/keystore"
	"github.com/keldara/vaultcraft/internal/vaultdoc"
	"github.com/keldara/vaultcraft/internal/vaulterrors"
)

const (
	saltSize          = 32
	deviceSecretSize  = 32
	nonceSize         = 12
	verificationAAD   = "vault-verification-token"
	documentVersion   = 1
	defaultIterations = cryptoprim.DefaultPBKDF2Iterations
)

// Entry is a decrypted password record handed back to callers. It is a
// short-lived value: the engine itself never retains plaintext.
type Entry struct {
	ID       int
	Site     string
	Category string
	Note     string
	Favorite bool
	Username string
	Password string
	Created  time.Time
	Updated  time.Time
}

// Syncer runs a reconciliation round, synchronously, after a local
// mutation. It is satisfied by internal/syncclient.Reconciler; vaultengine
// depends only on this narrow interface to avoid importing the network
// transport package.
type Syncer interface {
	Sync(v *Vault) error
}

// Vault is one open, unlocked vault, serialized by mu per spec.md §5
// (only one mutation or sync may be in flight for a given user).
type Vault struct {
	mu sync.Mutex

	path     string
	user     string
	unlocked bool

	salt       []byte
	key        [32]byte
	createdAt  time.Time
	updatedAt  time.Time
	version    int
	iterations int

	verificationIV    []byte
	verificationToken []byte
	verificationTag   []byte

	entries []vaultdoc.PasswordRecord

	lastDevice    *vaultdoc.Device
	deviceWarning string

	keyStore    keystore.KeyStore
	auditLog    *audit.Log
	syncer      Syncer
	credUpdater CredentialUpdater
}

// Option configures optional collaborators on a Vault.
type Option func(*Vault)

// WithSyncer attaches a Syncer invoked after local mutations.
func WithSyncer(s Syncer) Option {
	return func(v *Vault) { v.syncer = s }
}

// WithIterations overrides the PBKDF2 iteration count (must already have
// passed the minimum-iteration floor check at config load time).
func WithIterations(n int) Option {
	return func(v *Vault) { v.iterations = n }
}

func newVault(path, user string, ks keystore.KeyStore, opts []Option) *Vault {
	v := &Vault{
		path:       path,
		user:       user,
		keyStore:   ks,
		auditLog:   audit.New(),
		iterations: defaultIterations,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Create allocates a brand-new vault: fresh salt, fresh device secret
// stored in the KeyStore, an empty entry list, and a sealed verification
// token, then persists it.
func Create(path, user string, masterPassword []byte, ks keystore.KeyStore, opts ...Option) (*Vault, error) {
	v := newVault(path, user, ks, opts)

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	deviceSecret := make([]byte, deviceSecretSize)
	if _, err := rand.Read(deviceSecret); err != nil {
		return nil, err
	}
	if err := ks.Put(user, deviceSecret); err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.Internal, "vaultengine: persist device secret", err)
	}

	key, err := deriveKey(masterPassword, deviceSecret, salt, v.iterations)
	if err != nil {
		return nil, err
	}
	fingerprint := deviceFingerprint(deviceSecret)
	cryptoprim.Zero(deviceSecret)

	now := time.Now().UTC()
	v.salt = salt
	v.key = key
	v.createdAt = now
	v.updatedAt = now
	v.version = documentVersion
	v.entries = nil
	v.lastDevice = &vaultdoc.Device{ID: currentDeviceID(), Fingerprint: fingerprint}
	v.unlocked = true

	if err := v.sealAndPersist(); err != nil {
		return nil, err
	}
	v.auditLog.Append(audit.ActionCreate, 0)
	return v, nil
}

// Open loads an existing vault document, reconstructs K from the stored
// device secret and the supplied master password, and verifies it by
// decrypting the verification envelope. Any AEAD failure or digest
// mismatch is reported uniformly as WrongPassword without exposing
// entries, per spec.md §4.9/§7.
func Open(path, user string, masterPassword []byte, ks keystore.KeyStore, opts ...Option) (*Vault, error) {
	v := newVault(path, user, ks, opts)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.NotFound, "vaultengine: read vault file", err)
	}
	doc, err := vaultdoc.Decode(raw)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.InvalidRequest, "vaultengine: decode vault document", err)
	}

	deviceSecret, ok, err := ks.Get(user)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.Internal, "vaultengine: load device secret", err)
	}
	if !ok {
		return nil, vaulterrors.New(vaulterrors.WrongPassword, "vaultengine: no device secret for user")
	}

	key, err := deriveKey(masterPassword, deviceSecret, doc.Salt, v.iterations)
	fingerprint := deviceFingerprint(deviceSecret)
	cryptoprim.Zero(deviceSecret)
	if err != nil {
		return nil, err
	}

	digest := cryptoprim.SHA256(mustCanonical(doc.Vault.Passwords))
	plaintext, err := cryptoprim.Decrypt(key[:], doc.VerificationIV, doc.VerificationToken, doc.VerificationTag, []byte(verificationAAD))
	if err != nil {
		cryptoprim.Zero(key[:])
		return nil, vaulterrors.New(vaulterrors.WrongPassword, "vaultengine: verification failed")
	}
	if subtle.ConstantTimeCompare(plaintext, digest[:]) != 1 {
		cryptoprim.Zero(key[:])
		return nil, vaulterrors.New(vaulterrors.WrongPassword, "vaultengine: verification digest mismatch")
	}

	v.salt = doc.Salt
	v.key = key
	v.createdAt = doc.CreatedAt
	v.updatedAt = doc.UpdatedAt
	v.version = doc.Version
	v.entries = doc.Vault.Passwords
	v.verificationIV = doc.VerificationIV
	v.verificationToken = doc.VerificationToken
	v.verificationTag = doc.VerificationTag
	v.unlocked = true

	// The device secret is itself an input to K (see deriveKey above), so
	// a fingerprint mismatch here could only happen alongside a
	// verification failure that would already have returned WrongPassword
	// above; it is checked anyway as a defense-in-depth signal in case
	// that coupling ever loosens. The case that actually fires in
	// practice is the device ID (hostname) changing while the keystore
	// directory — and so the device secret — was carried over to a new
	// machine, e.g. via a synced dotfiles checkout.
	thisDevice := &vaultdoc.Device{ID: currentDeviceID(), Fingerprint: fingerprint}
	if doc.LastDevice != nil {
		idChanged := doc.LastDevice.ID != thisDevice.ID
		fingerprintChanged := subtle.ConstantTimeCompare(doc.LastDevice.Fingerprint, fingerprint) != 1
		if idChanged || fingerprintChanged {
			v.deviceWarning = fmt.Sprintf(
				"vault was last opened from device %q; this device identifies as %q",
				doc.LastDevice.ID, thisDevice.ID)
		}
	}
	v.lastDevice = thisDevice

	v.auditLog.Append(audit.ActionOpen, 0)
	return v, nil
}

func deriveKey(masterPassword, deviceSecret, salt []byte, iterations int) ([32]byte, error) {
	var key [32]byte
	input := make([]byte, 0, len(masterPassword)+len(deviceSecret))
	input = append(input, masterPassword...)
	input = append(input, deviceSecret...)
	dk, err := cryptoprim.PBKDF2HMACSHA256(input, salt, iterations, 32)
	cryptoprim.Zero(input)
	if err != nil {
		return key, err
	}
	copy(key[:], dk)
	cryptoprim.Zero(dk)
	return key, nil
}

// currentDeviceID identifies the machine vaultctl is running on, purely
// for the device-mismatch warning; it is never part of key derivation.
// Overridable so tests can simulate opening from a second device without
// touching the real hostname.
var currentDeviceID = func() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown-device"
	}
	return host
}

func deviceFingerprint(secret []byte) []byte {
	sum := cryptoprim.SHA256(secret)
	return sum[:]
}

func mustCanonical(records []vaultdoc.PasswordRecord) []byte {
	b, err := vaultdoc.Canonical(records)
	if err != nil {
		// Canonical only fails on values json.Marshal cannot encode; the
		// engine's own record shape always encodes.
		panic(err)
	}
	return b
}

// Close wipes the derived key from memory. The Vault must not be used
// afterward.
func (v *Vault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	cryptoprim.Zero(v.key[:])
	v.unlocked = false
}

func (v *Vault) requireUnlocked() error {
	if !v.unlocked {
		return vaulterrors.New(vaulterrors.InvalidState, "vaultengine: vault is not open")
	}
	return nil
}

// List decrypts and returns every entry. Username and password are
// decrypted under their own nonces.
func (v *Vault) List() ([]Entry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(v.entries))
	for _, rec := range v.entries {
		e, err := v.decryptEntry(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (v *Vault) decryptEntry(rec vaultdoc.PasswordRecord) (Entry, error) {
	username, err := cryptoprim.Decrypt(v.key[:], rec.Data.UsernameIV, rec.Data.Username, rec.Data.UsernameTag, []byte("username"))
	if err != nil {
		return Entry{}, vaulterrors.Wrap(vaulterrors.AuthFail, "vaultengine: decrypt username", err)
	}
	password, err := cryptoprim.Decrypt(v.key[:], rec.Data.PasswordIV, rec.Data.Password, rec.Data.PasswordTag, []byte("password"))
	if err != nil {
		cryptoprim.Zero(username)
		return Entry{}, vaulterrors.Wrap(vaulterrors.AuthFail, "vaultengine: decrypt password", err)
	}
	return Entry{
		ID:       rec.PasswordID,
		Site:     rec.Metadata.Site,
		Category: rec.Metadata.Category,
		Note:     rec.Metadata.Note,
		Favorite: rec.Metadata.Favorite,
		Username: string(username),
		Password: string(password),
		Created:  rec.Metadata.Created,
		Updated:  rec.Metadata.Updated,
	}, nil
}

func (v *Vault) nextID() int {
	max := -1
	for _, e := range v.entries {
		if e.PasswordID > max {
			max = e.PasswordID
		}
	}
	return max + 1
}

func (v *Vault) encryptField(plaintext []byte, aad string) (ct, iv, tag []byte, err error) {
	return encryptFieldWithKey(v.key, plaintext, aad)
}

func encryptFieldWithKey(key [32]byte, plaintext []byte, aad string) (ct, iv, tag []byte, err error) {
	iv = make([]byte, nonceSize)
	if _, err = rand.Read(iv); err != nil {
		return nil, nil, nil, err
	}
	ct, tag, err = cryptoprim.Encrypt(key[:], iv, plaintext, []byte(aad))
	return ct, iv, tag, err
}

// Add appends a new entry and triggers persistence and sync.
func (v *Vault) Add(site, username, password, note, category string, favorite bool) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireUnlocked(); err != nil {
		return 0, err
	}

	uCT, uIV, uTag, err := v.encryptField([]byte(username), "username")
	if err != nil {
		return 0, err
	}
	pCT, pIV, pTag, err := v.encryptField([]byte(password), "password")
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	id := v.nextID()
	rec := vaultdoc.PasswordRecord{
		PasswordID: id,
		Metadata: vaultdoc.Metadata{
			Site: site, Category: category, Note: note, Favorite: favorite,
			Created: now, Updated: now,
		},
		Data: vaultdoc.Data{
			Username: uCT, UsernameIV: uIV, UsernameTag: uTag,
			Password: pCT, PasswordIV: pIV, PasswordTag: pTag,
		},
	}
	v.entries = append(v.entries, rec)
	v.updatedAt = now
	v.version++

	if err := v.sealAndPersist(); err != nil {
		return 0, err
	}
	v.auditLog.Append(audit.ActionAdd, id)
	v.triggerSync()
	return id, nil
}

// EditFields describes the optional replacements for Edit; nil fields
// are left unchanged.
type EditFields struct {
	Site     *string
	Username *string
	Password *string
	Note     *string
	Category *string
	Favorite *bool
}

// Edit locates the entry with the given id and replaces the supplied
// fields. Username/password mutations generate fresh nonces.
func (v *Vault) Edit(id int, fields EditFields) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireUnlocked(); err != nil {
		return err
	}

	idx := v.indexOf(id)
	if idx < 0 {
		return vaulterrors.New(vaulterrors.NotFound, "vaultengine: entry not found")
	}
	rec := v.entries[idx]

	if fields.Site != nil {
		rec.Metadata.Site = *fields.Site
	}
	if fields.Note != nil {
		rec.Metadata.Note = *fields.Note
	}
	if fields.Category != nil {
		rec.Metadata.Category = *fields.Category
	}
	if fields.Favorite != nil {
		rec.Metadata.Favorite = *fields.Favorite
	}
	if fields.Username != nil {
		ct, iv, tag, err := v.encryptField([]byte(*fields.Username), "username")
		if err != nil {
			return err
		}
		rec.Data.Username, rec.Data.UsernameIV, rec.Data.UsernameTag = ct, iv, tag
	}
	if fields.Password != nil {
		ct, iv, tag, err := v.encryptField([]byte(*fields.Password), "password")
		if err != nil {
			return err
		}
		rec.Data.Password, rec.Data.PasswordIV, rec.Data.PasswordTag = ct, iv, tag
	}

	now := time.Now().UTC()
	rec.Metadata.Updated = now
	v.entries[idx] = rec
	v.updatedAt = now
	v.version++

	if err := v.sealAndPersist(); err != nil {
		return err
	}
	v.auditLog.Append(audit.ActionEdit, id)
	v.triggerSync()
	return nil
}

// Remove deletes the entry matching id by equality, not by list index
// (see spec.md §9: the reference conflates id-equality with list-index;
// this implementation requires equality-by-id).
func (v *Vault) Remove(id int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireUnlocked(); err != nil {
		return err
	}

	idx := v.indexOf(id)
	if idx < 0 {
		return vaulterrors.New(vaulterrors.NotFound, "vaultengine: entry not found")
	}
	v.entries = append(v.entries[:idx], v.entries[idx+1:]...)
	v.updatedAt = time.Now().UTC()
	v.version++

	if err := v.sealAndPersist(); err != nil {
		return err
	}
	v.auditLog.Append(audit.ActionRemove, id)
	v.triggerSync()
	return nil
}

func (v *Vault) indexOf(id int) int {
	for i, e := range v.entries {
		if e.PasswordID == id {
			return i
		}
	}
	return -1
}

func (v *Vault) triggerSync() {
	if v.syncer == nil {
		return
	}
	// The caller holds v.mu and the syncer calls back into v (Document,
	// Key, ApplyRemote, RecordSync*), so mu is released for the sync
	// round and re-acquired before returning to the caller.
	// Sync failures must never roll back the local mutation that already
	// persisted; callers observe sync outcomes separately (spec.md §5).
	v.mu.Unlock()
	_ = v.syncer.Sync(v)
	v.mu.Lock()
}

// sealAndPersist re-seals the verification token over the current entry
// set and writes the vault atomically.
func (v *Vault) sealAndPersist() error {
	if err := v.reseal(); err != nil {
		return err
	}
	return v.persist()
}

func (v *Vault) reseal() error {
	digest := cryptoprim.SHA256(mustCanonical(v.entries))
	iv := make([]byte, nonceSize)
	if _, err := rand.Read(iv); err != nil {
		return err
	}
	ct, tag, err := cryptoprim.Encrypt(v.key[:], iv, digest[:], []byte(verificationAAD))
	if err != nil {
		return err
	}
	v.verificationIV, v.verificationToken, v.verificationTag = iv, ct, tag
	return nil
}

// persist writes the current state to a temp file and renames it over
// the vault path, so a crash mid-write never corrupts the previous valid
// vault (spec.md §4.9 failure policy).
func (v *Vault) persist() error {
	doc := &vaultdoc.Document{
		User:              v.user,
		Version:           v.version,
		Salt:              v.salt,
		CreatedAt:         v.createdAt,
		UpdatedAt:         v.updatedAt,
		VerificationToken: v.verificationToken,
		VerificationIV:    v.verificationIV,
		VerificationTag:   v.verificationTag,
		Vault:             vaultdoc.Body{Passwords: cloneRecords(v.entries)},
		LastDevice:        v.lastDevice,
	}
	raw, err := vaultdoc.Encode(doc)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.Internal, "vaultengine: encode document", err)
	}

	dir := filepath.Dir(v.path)
	tmp, err := os.CreateTemp(dir, ".vault-*.tmp")
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.Internal, "vaultengine: create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return vaulterrors.Wrap(vaulterrors.Internal, "vaultengine: write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return vaulterrors.Wrap(vaulterrors.Internal, "vaultengine: close temp file", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return vaulterrors.Wrap(vaulterrors.Internal, "vaultengine: chmod temp file", err)
	}
	if err := os.Rename(tmpPath, v.path); err != nil {
		os.Remove(tmpPath)
		return vaulterrors.Wrap(vaulterrors.Internal, "vaultengine: rename temp file", err)
	}
	return nil
}

func cloneRecords(in []vaultdoc.PasswordRecord) []vaultdoc.PasswordRecord {
	out := make([]vaultdoc.PasswordRecord, len(in))
	copy(out, in)
	return out
}

// Document returns an immutable snapshot of the current on-disk shape,
// used by the sync client to build its own envelopes without duplicating
// the engine's encryption logic.
func (v *Vault) Document() *vaultdoc.Document {
	v.mu.Lock()
	defer v.mu.Unlock()
	return &vaultdoc.Document{
		User:              v.user,
		Version:           v.version,
		Salt:              append([]byte(nil), v.salt...),
		CreatedAt:         v.createdAt,
		UpdatedAt:         v.updatedAt,
		VerificationToken: append([]byte(nil), v.verificationToken...),
		VerificationIV:    append([]byte(nil), v.verificationIV...),
		VerificationTag:   append([]byte(nil), v.verificationTag...),
		Vault:             vaultdoc.Body{Passwords: cloneRecords(v.entries)},
		LastDevice:        v.lastDevice,
	}
}

// ApplyRemote replaces local entries and timestamps with a remote
// state accepted by the sync reconciler's download path (spec.md
// §4.10 step 4), re-sealing the on-disk verification token over the new
// entries under the vault's own key, without bumping version.
func (v *Vault) ApplyRemote(entries []vaultdoc.PasswordRecord, salt []byte, createdAt, updatedAt time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireUnlocked(); err != nil {
		return err
	}
	v.entries = cloneRecords(entries)
	v.salt = salt
	v.createdAt = createdAt
	v.updatedAt = updatedAt
	if err := v.sealAndPersist(); err != nil {
		return err
	}
	v.auditLog.Append(audit.ActionSyncPull, 0)
	return nil
}

// RecordSyncPush logs that the reconciler pushed this vault's state to
// the sync server, after the upload has already succeeded. The
// reconciler lives in internal/syncclient and has no access to the
// vault's own audit log, so it calls back through this method rather
// than vaultengine reaching into the transport layer.
func (v *Vault) RecordSyncPush() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.auditLog.Append(audit.ActionSyncPush, 0)
}

// RecordSyncNoop logs a sync round that found local and remote already
// at the same logical timestamp, so neither a push nor a pull occurred.
func (v *Vault) RecordSyncNoop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.auditLog.Append(audit.ActionSyncNoop, 0)
}

// Key returns the current derived vault key, used by the sync client to
// build transport envelopes without the engine exposing entry plaintext.
func (v *Vault) Key() [32]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.key
}

// UpdatedAt returns the vault's current logical timestamp.
func (v *Vault) UpdatedAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.updatedAt
}

// AuditEntries returns the vault's local audit trail.
func (v *Vault) AuditEntries() []audit.Entry {
	return v.auditLog.Entries()
}

// VerifyAudit checks the hash chain of this session's audit trail.
func (v *Vault) VerifyAudit() error {
	return v.auditLog.Verify()
}

// DeviceWarning returns a human-readable advisory if Open found this
// vault last opened by a device with a different device ID or
// device-secret fingerprint, or "" if both matched (or this Vault came
// from Create). It is never consulted for access control.
func (v *Vault) DeviceWarning() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.deviceWarning
}
