package util

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// TokenKeyEnv names the environment variable holding the daemon token key.
const TokenKeyEnv = "WATTBOX_TOKEN_KEY"

// LoadTokenKey() tries to load the HS256 key used to verify daemon bearer
// tokens from an environment variable, a file, or the config in that order.
// If loading the key fails with one option, it will fallback to the next
// option until all options are exhausted.
func LoadTokenKey(path string) (string, error) {
	if key := os.Getenv(TokenKeyEnv); key != "" {
		return key, nil
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			return strings.TrimSpace(string(b)), nil
		}
	}

	if key := viper.GetString("daemon.token-key"); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("failed to load token key from environment variable, file, or config")
}
