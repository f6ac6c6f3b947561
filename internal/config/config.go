// Package config maps the viper configuration onto the device client and
// daemon settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/OpenCHAMI/wattbox/internal/util"
	"github.com/OpenCHAMI/wattbox/pkg/credentials"
	"github.com/OpenCHAMI/wattbox/pkg/secrets"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/spf13/viper"
)

// LoadConfig() will load a config file at the specified path. Flags and
// environment variables always take precedence over values from the file.
func LoadConfig(path string) error {
	dir, filename, ext := util.SplitPathForViper(path)
	viper.AddConfigPath(dir)
	viper.SetConfigName(filename)
	viper.SetConfigType(ext)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("config file not found: %w", err)
		}
		return fmt.Errorf("failed to load config file: %w", err)
	}
	return nil
}

// DefaultConfigDir is $XDG_CONFIG_HOME/wattbox, or ~/.config/wattbox.
func DefaultConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "wattbox"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "wattbox")
}

func DefaultCachePath() string {
	return filepath.Join(DefaultConfigDir(), "snapshots.db")
}

func DefaultSecretsPath() string {
	return filepath.Join(DefaultConfigDir(), "secrets.json")
}

// SetDefaults() resets every key to its default value.
func SetDefaults() {
	viper.SetDefault("host", "")
	viper.SetDefault("username", "")
	viper.SetDefault("password", "")
	viper.SetDefault("tls", false)
	viper.SetDefault("insecure", false)
	viper.SetDefault("cacert", "")
	viper.SetDefault("timeout", wattbox.DefaultTimeout)
	viper.SetDefault("cache", DefaultCachePath())
	viper.SetDefault("secrets.file", DefaultSecretsPath())
	viper.SetDefault("status.format", string(wattbox.StatusFormatAuto))
	viper.SetDefault("status.path", wattbox.DefaultStatusPath)
	viper.SetDefault("status.json-path", wattbox.DefaultJSONStatusPath)
	viper.SetDefault("reset.native", true)
	viper.SetDefault("reset.simulate", false)
	viper.SetDefault("reset.delay", wattbox.DefaultResetDelay)
	viper.SetDefault("daemon.endpoint", "localhost:8080")
	viper.SetDefault("daemon.interval", 30*time.Second)
	viper.SetDefault("daemon.failure-threshold", 3)
	viper.SetDefault("daemon.command-timeout", 30*time.Second)
	viper.SetDefault("daemon.token-key-file", "")
	viper.SetDefault("inventory.placement-map", "")
}

// DeviceConfig builds the client configuration from viper. Credentials given
// on the command line take precedence over the secret store.
func DeviceConfig() (wattbox.Config, error) {
	cfg := wattbox.DefaultConfig()
	cfg.Host = viper.GetString("host")
	cfg.UseTLS = viper.GetBool("tls")
	cfg.VerifySSL = !viper.GetBool("insecure")
	cfg.CACertPath = viper.GetString("cacert")
	cfg.Timeout = viper.GetDuration("timeout")
	cfg.StatusFormat = wattbox.StatusFormat(viper.GetString("status.format"))
	cfg.StatusPath = viper.GetString("status.path")
	cfg.JSONStatusPath = viper.GetString("status.json-path")
	cfg.NativeReset = viper.GetBool("reset.native")
	cfg.SimulateReset = viper.GetBool("reset.simulate")
	cfg.ResetDelay = viper.GetDuration("reset.delay")

	baseURL, err := cfg.BaseURL()
	if err != nil {
		return cfg, err
	}

	username := viper.GetString("username")
	password := viper.GetString("password")
	store := credentials.BuildSecretStore(username, password, viper.GetString("secrets.file"))
	creds, err := credentials.Resolve(store, util.HostID(baseURL), credentials.Credentials{
		Username: username,
		Password: password,
	})
	if err != nil {
		return cfg, err
	}
	cfg.Username = creds.Username
	cfg.Password = creds.Password

	return cfg, cfg.Validate()
}

// TokenKey returns the key for daemon bearer tokens. It is read from the
// environment, the key file, the config and finally the secret store. An
// empty key disables token checks.
func TokenKey() []byte {
	if key, err := util.LoadTokenKey(viper.GetString("daemon.token-key-file")); err == nil {
		return []byte(key)
	}
	store, err := secrets.OpenStore(viper.GetString("secrets.file"))
	if err != nil {
		return nil
	}
	key, err := store.GetSecretByID(secrets.TOKEN_KEY)
	if err != nil {
		return nil
	}
	return []byte(key)
}
