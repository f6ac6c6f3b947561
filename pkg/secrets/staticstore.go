package secrets

import (
	"encoding/json"
	"fmt"
)

// StaticStore serves one fixed username/password pair for every ID. It backs
// the --username/--password flags.
type StaticStore struct {
	Username string
	Password string
}

func NewStaticStore(username, password string) *StaticStore {
	return &StaticStore{
		Username: username,
		Password: password,
	}
}

func (s *StaticStore) secret() (string, error) {
	b, err := json.Marshal(map[string]string{"username": s.Username, "password": s.Password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal static credentials: %w", err)
	}
	return string(b), nil
}

func (s *StaticStore) GetSecretByID(secretID string) (string, error) {
	return s.secret()
}

func (s *StaticStore) StoreSecretByID(secretID, secret string) error {
	return fmt.Errorf("static store is read-only")
}

func (s *StaticStore) ListSecrets() (map[string]string, error) {
	secret, err := s.secret()
	if err != nil {
		return nil, err
	}
	return map[string]string{"static_creds": secret}, nil
}

func (s *StaticStore) RemoveSecretByID(secretID string) error {
	return fmt.Errorf("static store is read-only")
}
