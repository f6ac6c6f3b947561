// Package credentials resolves the username and password for a device from a
// secret store.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OpenCHAMI/wattbox/pkg/secrets"
	"github.com/rs/zerolog/log"
)

var ErrNoCredentials = errors.New("no credentials found")

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Lookup returns the credentials stored under host, falling back to the
// default entry. Hosts are identified the same way as in the snapshot cache,
// host[:port].
func Lookup(store secrets.SecretStore, host string) (Credentials, error) {
	if store == nil {
		return Credentials{}, fmt.Errorf("no secret store: %w", ErrNoCredentials)
	}
	if host != "" && host != secrets.DEFAULT_KEY {
		if secret, err := store.GetSecretByID(host); err == nil {
			creds, err := decode(secret)
			if err != nil {
				return Credentials{}, fmt.Errorf("credentials for %s: %w", host, err)
			}
			log.Debug().Str("host", host).Msg("specific credentials found, using")
			return creds, nil
		}
		log.Debug().Str("host", host).Msg("specific credentials not found, falling back to default")
	}

	secret, err := store.GetSecretByID(secrets.DEFAULT_KEY)
	if err != nil {
		return Credentials{}, fmt.Errorf("%s: %w", host, ErrNoCredentials)
	}
	creds, err := decode(secret)
	if err != nil {
		return Credentials{}, fmt.Errorf("default credentials: %w", err)
	}
	log.Debug().Str("host", host).Msg("default credentials found, using")
	return creds, nil
}

// Save stores creds under id, which is a host or secrets.DEFAULT_KEY.
func Save(store secrets.SecretStore, id string, creds Credentials) error {
	b, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return store.StoreSecretByID(id, string(b))
}

func decode(secret string) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal([]byte(secret), &creds); err != nil {
		return creds, fmt.Errorf("malformed credentials: %w", err)
	}
	return creds, nil
}

// BuildSecretStore returns a static store when both username and password are
// given, and the encrypted store at secretsFile otherwise. A store that cannot
// be opened yields nil; Resolve then relies on the overrides alone.
func BuildSecretStore(username, password, secretsFile string) secrets.SecretStore {
	if username != "" && password != "" {
		log.Debug().Msg("username and password given, using them for device credentials")
		return secrets.NewStaticStore(username, password)
	}
	store, err := secrets.OpenStore(secretsFile)
	if err != nil {
		log.Debug().Err(err).Str("path", secretsFile).Msg("secret store unavailable")
		return nil
	}
	return store
}

// Resolve looks up the credentials for host and applies the non-empty fields
// of override on top. Missing credentials are not an error: the device may
// not require any.
func Resolve(store secrets.SecretStore, host string, override Credentials) (Credentials, error) {
	creds, err := Lookup(store, host)
	if err != nil && !errors.Is(err, ErrNoCredentials) {
		return Credentials{}, err
	}
	if err != nil {
		log.Debug().Str("host", host).Msg("no stored credentials, using overrides only")
	}
	if override.Username != "" {
		creds.Username = override.Username
	}
	if override.Password != "" {
		creds.Password = override.Password
	}
	return creds, nil
}
