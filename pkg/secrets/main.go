// Package secrets stores device credentials and other secrets by ID.
package secrets

const (
	// DEFAULT_KEY holds the credentials used for any device without its own entry.
	DEFAULT_KEY = "default"
	// TOKEN_KEY holds the HS256 key the daemon verifies bearer tokens with.
	TOKEN_KEY = "daemon_token_key"
)

type SecretStore interface {
	GetSecretByID(secretID string) (string, error)
	StoreSecretByID(secretID, secret string) error
	ListSecrets() (map[string]string, error)
	RemoveSecretByID(secretID string) error
}
