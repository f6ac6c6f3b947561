package secrets

import (
	"bytes"
	"testing"
)

func TestDeriveAESKey(t *testing.T) {
	masterKey := []byte("testmasterkey")
	key1, err := deriveAESKey(masterKey, "10.0.0.5")
	if err != nil {
		t.Fatalf("deriveAESKey: %v", err)
	}
	key2, _ := deriveAESKey(masterKey, "10.0.0.5")
	other, _ := deriveAESKey(masterKey, "10.0.0.6")

	if len(key1) != 32 {
		t.Errorf("derived key should be 32 bytes, got %d", len(key1))
	}
	if !bytes.Equal(key1, key2) {
		t.Errorf("keys derived from same secretID should match")
	}
	if bytes.Equal(key1, other) {
		t.Errorf("keys derived from different secretIDs should differ")
	}
}

func TestEncryptDecryptAESGCM(t *testing.T) {
	key, _ := deriveAESKey([]byte("anotherTestMasterKey"), "default")
	plaintext := `{"username":"admin","password":"p@ss"}`

	encrypted, err := encryptAESGCM(key, []byte(plaintext))
	if err != nil {
		t.Fatalf("encryption failed: %v", err)
	}
	decrypted, err := decryptAESGCM(key, encrypted)
	if err != nil {
		t.Fatalf("decryption failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("expected %q, got %q", plaintext, decrypted)
	}

	wrong, _ := deriveAESKey([]byte("anotherTestMasterKey"), "10.0.0.5")
	if _, err := decryptAESGCM(wrong, encrypted); err == nil {
		t.Errorf("decrypting with another secret's key should fail")
	}
	if _, err := decryptAESGCM(key, "abcd"); err == nil {
		t.Errorf("expected error for truncated ciphertext")
	}
}
