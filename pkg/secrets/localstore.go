package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/OpenCHAMI/wattbox/internal/util"
)

// MasterKeyEnv names the environment variable holding the hex master key.
const MasterKeyEnv = "MASTER_KEY"

var ErrSecretNotFound = errors.New("secret not found")

// LocalSecretStore keeps secrets in a JSON file, each encrypted with an
// AES-GCM key derived from the master key and the secret ID.
type LocalSecretStore struct {
	mu        sync.RWMutex
	masterKey []byte
	filename  string
	Secrets   map[string]string `json:"secrets"`
}

func NewLocalSecretStore(masterKeyHex, filename string, create bool) (*LocalSecretStore, error) {
	masterKey, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid master key: %w", err)
	}
	if len(masterKey) < 16 {
		return nil, fmt.Errorf("master key too short: %d bytes", len(masterKey))
	}

	secrets := make(map[string]string)
	if _, exists := util.PathExists(filename); exists {
		secrets, err = loadSecrets(filename)
		if err != nil {
			return nil, fmt.Errorf("unable to load secrets from file: %w", err)
		}
	} else {
		if !create {
			return nil, fmt.Errorf("file %s does not exist", filename)
		}
		if err := SaveSecrets(filename, secrets); err != nil {
			return nil, fmt.Errorf("unable to create file %s: %w", filename, err)
		}
	}

	return &LocalSecretStore{
		masterKey: masterKey,
		filename:  filename,
		Secrets:   secrets,
	}, nil
}

// GenerateMasterKey creates a 32-byte random key and returns it as a hex string.
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

func (l *LocalSecretStore) GetSecretByID(secretID string) (string, error) {
	l.mu.RLock()
	encrypted, exists := l.Secrets[secretID]
	l.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("%s: %w", secretID, ErrSecretNotFound)
	}

	key, err := deriveAESKey(l.masterKey, secretID)
	if err != nil {
		return "", err
	}
	return decryptAESGCM(key, encrypted)
}

// StoreSecretByID encrypts secret and writes the whole store back to disk.
func (l *LocalSecretStore) StoreSecretByID(secretID, secret string) error {
	if secretID == "" {
		return fmt.Errorf("secret ID required")
	}
	key, err := deriveAESKey(l.masterKey, secretID)
	if err != nil {
		return err
	}
	encrypted, err := encryptAESGCM(key, []byte(secret))
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.Secrets[secretID] = encrypted
	return SaveSecrets(l.filename, l.Secrets)
}

// ListSecrets returns a copy of the stored IDs and their encrypted values.
func (l *LocalSecretStore) ListSecrets() (map[string]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	secretsCopy := make(map[string]string, len(l.Secrets))
	for key, value := range l.Secrets {
		secretsCopy[key] = value
	}
	return secretsCopy, nil
}

func (l *LocalSecretStore) RemoveSecretByID(secretID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.Secrets[secretID]; !exists {
		return fmt.Errorf("%s: %w", secretID, ErrSecretNotFound)
	}
	delete(l.Secrets, secretID)
	return SaveSecrets(l.filename, l.Secrets)
}

// OpenStore opens or creates the store at filename using the master key from
// the MASTER_KEY environment variable.
func OpenStore(filename string) (SecretStore, error) {
	if filename == "" {
		return nil, fmt.Errorf("path to secret store required")
	}

	masterKey := os.Getenv(MasterKeyEnv)
	if masterKey == "" {
		return nil, fmt.Errorf("%s environment variable not set", MasterKeyEnv)
	}

	store, err := NewLocalSecretStore(masterKey, filename, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open local secret store: %w", err)
	}
	return store, nil
}

// SaveSecrets writes the encrypted secrets to jsonFile, readable by the owner only.
func SaveSecrets(jsonFile string, store map[string]string) error {
	if err := util.EnsureParentDir(jsonFile); err != nil {
		return err
	}
	file, err := os.OpenFile(jsonFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(store)
}

func loadSecrets(jsonFile string) (map[string]string, error) {
	b, err := os.ReadFile(jsonFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read secret file %s: %w", jsonFile, err)
	}
	store := make(map[string]string)
	if len(b) == 0 {
		return store, nil
	}
	if err := json.Unmarshal(b, &store); err != nil {
		return nil, fmt.Errorf("malformed secret file %s: %w", jsonFile, err)
	}
	return store, nil
}
