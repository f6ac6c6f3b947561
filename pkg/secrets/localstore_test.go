package secrets

import (
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) (*LocalSecretStore, string, string) {
	t.Helper()
	masterKey, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("Failed to generate master key: %v", err)
	}
	filename := filepath.Join(t.TempDir(), "secrets.json")
	store, err := NewLocalSecretStore(masterKey, filename, true)
	if err != nil {
		t.Fatalf("Failed to create LocalSecretStore: %v", err)
	}
	return store, masterKey, filename
}

func TestNewLocalSecretStore(t *testing.T) {
	store, masterKey, filename := newTestStore(t)

	if store.filename != filename {
		t.Errorf("Expected filename %s, got %s", filename, store.filename)
	}
	if hex.EncodeToString(store.masterKey) != masterKey {
		t.Errorf("Expected master key %s, got %s", masterKey, hex.EncodeToString(store.masterKey))
	}

	if _, err := NewLocalSecretStore(masterKey, filepath.Join(t.TempDir(), "missing.json"), false); err == nil {
		t.Errorf("Expected error opening a missing store without create")
	}
	if _, err := NewLocalSecretStore("not-hex", filename, false); err == nil {
		t.Errorf("Expected error for a malformed master key")
	}
}

func TestGenerateMasterKey(t *testing.T) {
	key, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("Failed to generate master key: %v", err)
	}
	if len(key) != 64 { // 32 bytes in hex representation
		t.Errorf("Expected key length 64, got %d", len(key))
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	store, masterKey, filename := newTestStore(t)

	creds := `{"username":"admin","password":"secret"}`
	if err := store.StoreSecretByID("10.0.0.5", creds); err != nil {
		t.Fatalf("Failed to store secret: %v", err)
	}

	reopened, err := NewLocalSecretStore(masterKey, filename, false)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	got, err := reopened.GetSecretByID("10.0.0.5")
	if err != nil {
		t.Fatalf("Failed to get secret: %v", err)
	}
	if got != creds {
		t.Errorf("Expected %s, got %s", creds, got)
	}

	other, err := GenerateMasterKey()
	if err != nil {
		t.Fatal(err)
	}
	wrongKey, err := NewLocalSecretStore(other, filename, false)
	if err != nil {
		t.Fatalf("Failed to open store with another key: %v", err)
	}
	if _, err := wrongKey.GetSecretByID("10.0.0.5"); err == nil {
		t.Errorf("Expected decryption with the wrong master key to fail")
	}
}

func TestListAndRemoveSecrets(t *testing.T) {
	store, masterKey, filename := newTestStore(t)

	for id, value := range map[string]string{"a": "1", "b": "2"} {
		if err := store.StoreSecretByID(id, value); err != nil {
			t.Fatalf("Failed to store secret: %v", err)
		}
	}
	secrets, err := store.ListSecrets()
	if err != nil {
		t.Fatalf("Failed to list secrets: %v", err)
	}
	if len(secrets) != 2 {
		t.Errorf("Expected 2 secrets, got %d", len(secrets))
	}
	if secrets["a"] == "1" {
		t.Errorf("Listed secrets must stay encrypted")
	}

	if err := store.RemoveSecretByID("a"); err != nil {
		t.Fatalf("Failed to remove secret: %v", err)
	}
	if err := store.RemoveSecretByID("a"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Expected ErrSecretNotFound, got %v", err)
	}

	reopened, err := NewLocalSecretStore(masterKey, filename, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reopened.GetSecretByID("a"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Expected removal to be persisted, got %v", err)
	}
}

func TestStaticStore(t *testing.T) {
	store := NewStaticStore("admin", `pa"ss`)
	got, err := store.GetSecretByID("anything")
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"password":"pa\"ss","username":"admin"}` {
		t.Errorf("unexpected static secret %s", got)
	}
	if err := store.StoreSecretByID("x", "y"); err == nil {
		t.Errorf("Expected static store to be read-only")
	}
}
