package vaultengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keldara/vaultcraft/internal/keystore"
	"github.com/keldara/vaultcraft/internal/vaulterrors"
)

func tempVaultPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "vault.json")
}

func TestVault_CreateOpenRoundTrip(t *testing.T) {
	path := tempVaultPath(t)
	ks := keystore.NewMemory()

	v, err := Create(path, "alice", []byte("correct horse battery staple"), ks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v.Close()

	opened, err := Open(path, "alice", []byte("correct horse battery staple"), ks)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	entries, err := opened.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty vault, got %d entries", len(entries))
	}
}

func TestVault_OpenWithWrongPassword(t *testing.T) {
	path := tempVaultPath(t)
	ks := keystore.NewMemory()

	v, err := Create(path, "alice", []byte("correct horse battery staple"), ks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v.Close()

	_, err = Open(path, "alice", []byte("hunter2"), ks)
	if vaulterrors.Of(err) != vaulterrors.WrongPassword {
		t.Fatalf("expected WrongPassword, got %v", err)
	}
}

func TestVault_AddEditRemove(t *testing.T) {
	path := tempVaultPath(t)
	ks := keystore.NewMemory()
	v, err := Create(path, "alice", []byte("correct horse battery staple"), ks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	id, err := v.Add("example.com", "alice@example.com", "hunter2", "", "personal", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	newUsername := "alice2@example.com"
	if err := v.Edit(id, EditFields{Username: &newUsername}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	entries, err := v.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != newUsername {
		t.Fatalf("edit did not apply: %+v", entries)
	}

	if err := v.Remove(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	entries, err = v.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected entry removed, got %+v", entries)
	}
}

func TestVault_RemoveByIDNotIndex(t *testing.T) {
	path := tempVaultPath(t)
	ks := keystore.NewMemory()
	v, err := Create(path, "alice", []byte("correct horse battery staple"), ks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := v.Add("a.com", "u1", "p1", "", "", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := v.Add("b.com", "u2", "p2", "", "", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := v.Remove(first); err != nil {
		t.Fatalf("remove: %v", err)
	}

	entries, err := v.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != second {
		t.Fatalf("removed wrong entry: %+v", entries)
	}
}

func TestVault_ChangeMasterPassword(t *testing.T) {
	path := tempVaultPath(t)
	ks := keystore.NewMemory()
	v, err := Create(path, "alice", []byte("old password 123"), ks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id, err := v.Add("a.com", "user", "secret", "", "", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := v.ChangeMasterPassword([]byte("old password 123"), []byte("new password 456")); err != nil {
		t.Fatalf("change password: %v", err)
	}
	v.Close()

	_, err = Open(path, "alice", []byte("old password 123"), ks)
	if vaulterrors.Of(err) != vaulterrors.WrongPassword {
		t.Fatalf("expected old password to be rejected, got %v", err)
	}

	reopened, err := Open(path, "alice", []byte("new password 456"), ks)
	if err != nil {
		t.Fatalf("open with new password: %v", err)
	}
	entries, err := reopened.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id || entries[0].Password != "secret" {
		t.Fatalf("entries not preserved across password change: %+v", entries)
	}
}

func TestVault_ChangeMasterPasswordWrongCurrentLeavesDiskUntouched(t *testing.T) {
	path := tempVaultPath(t)
	ks := keystore.NewMemory()
	v, err := Create(path, "alice", []byte("old password 123"), ks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	err = v.ChangeMasterPassword([]byte("wrong current"), []byte("new password 456"))
	if vaulterrors.Of(err) != vaulterrors.WrongPassword {
		t.Fatalf("expected WrongPassword, got %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("disk state changed despite failed password change")
	}
}

func TestVault_VersionIncrementsOnMutation(t *testing.T) {
	path := tempVaultPath(t)
	ks := keystore.NewMemory()
	v, err := Create(path, "alice", []byte("correct horse battery staple"), ks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	versionAfterCreate := v.Document().Version

	id, err := v.Add("a.com", "u1", "p1", "", "", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	versionAfterAdd := v.Document().Version
	if versionAfterAdd <= versionAfterCreate {
		t.Fatalf("version did not increase on add: %d -> %d", versionAfterCreate, versionAfterAdd)
	}

	newSite := "b.com"
	if err := v.Edit(id, EditFields{Site: &newSite}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	versionAfterEdit := v.Document().Version
	if versionAfterEdit <= versionAfterAdd {
		t.Fatalf("version did not increase on edit: %d -> %d", versionAfterAdd, versionAfterEdit)
	}

	if err := v.Remove(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	versionAfterRemove := v.Document().Version
	if versionAfterRemove <= versionAfterEdit {
		t.Fatalf("version did not increase on remove: %d -> %d", versionAfterEdit, versionAfterRemove)
	}
}

func TestVault_DeviceWarningFiresOnHostnameChange(t *testing.T) {
	path := tempVaultPath(t)
	ks := keystore.NewMemory()

	original := currentDeviceID
	defer func() { currentDeviceID = original }()

	currentDeviceID = func() string { return "laptop-a" }
	v, err := Create(path, "alice", []byte("correct horse battery staple"), ks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if warning := v.DeviceWarning(); warning != "" {
		t.Fatalf("expected no warning on create, got %q", warning)
	}
	v.Close()

	currentDeviceID = func() string { return "laptop-b" }
	reopened, err := Open(path, "alice", []byte("correct horse battery staple"), ks)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if warning := reopened.DeviceWarning(); warning == "" {
		t.Fatal("expected a device warning after opening from a different device id")
	}
}

func TestVault_EditUnknownIDReturnsNotFound(t *testing.T) {
	path := tempVaultPath(t)
	ks := keystore.NewMemory()
	v, err := Create(path, "alice", []byte("correct horse battery staple"), ks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	username := "x"
	err = v.Edit(999, EditFields{Username: &username})
	if vaulterrors.Of(err) != vaulterrors.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
