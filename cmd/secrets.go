package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/OpenCHAMI/wattbox/pkg/credentials"
	"github.com/OpenCHAMI/wattbox/pkg/secrets"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	secretsStoreFormat    string // basic, json or base64
	secretsStoreInputFile string
)

var secretsCmd = &cobra.Command{
	Use: "secrets",
	Example: `  // generate new key and set environment variable
  export MASTER_KEY=$(wattbox secrets generatekey)

  // store credentials for one device, and fallback credentials for all others
  wattbox secrets store 10.0.0.5 admin:secret
  wattbox secrets store default admin:changeme

  // store the key the daemon verifies bearer tokens with
  wattbox secrets store daemon_token_key $(openssl rand -hex 32) -F raw

  // retrieve and list secrets
  wattbox secrets retrieve 10.0.0.5
  wattbox secrets list`,
	Short: "Manage device credentials",
	Long: "Manage device credentials in an encrypted secrets file. Secrets are stored by host[:port]\n" +
		"or under 'default'. This requires generating a key and setting the 'MASTER_KEY' environment\n" +
		"variable for the secrets store.",
}

var secretsGenerateKeyCmd = &cobra.Command{
	Use:   "generatekey",
	Args:  cobra.NoArgs,
	Short: "Generates a new 32-byte master key (in hex).",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := secrets.GenerateMasterKey()
		if err != nil {
			return fmt.Errorf("failed to generate master key: %w", err)
		}
		fmt.Println(key)
		return nil
	},
}

var secretsStoreCmd = &cobra.Command{
	Use:   "store <secretID> [value]",
	Args:  cobra.RangeArgs(1, 2),
	Short: "Stores the given value under secretID.",
	RunE: func(cmd *cobra.Command, args []string) error {
		secretID := args[0]
		var value string
		switch {
		case len(args) > 1 && secretsStoreInputFile != "":
			return fmt.Errorf("cannot use -f/--input-file with a positional value")
		case len(args) > 1:
			value = args[1]
		case secretsStoreInputFile != "":
			b, err := os.ReadFile(secretsStoreInputFile)
			if err != nil {
				return fmt.Errorf("failed to read input file: %w", err)
			}
			value = strings.TrimSpace(string(b))
		default:
			return fmt.Errorf("no input value or file")
		}

		store, err := secrets.OpenStore(viper.GetString("secrets.file"))
		if err != nil {
			return err
		}

		switch secretsStoreFormat {
		case "raw":
			return store.StoreSecretByID(secretID, value)
		case "basic": // username:password
			username, password, found := strings.Cut(value, ":")
			if !found || username == "" {
				return fmt.Errorf("expected a value in username:password format")
			}
			return credentials.Save(store, secretID, credentials.Credentials{Username: username, Password: password})
		case "base64":
			decoded, err := base64.StdEncoding.DecodeString(value)
			if err != nil {
				return fmt.Errorf("error decoding base64 data: %w", err)
			}
			value = string(decoded)
			fallthrough
		case "json": // {"username": ..., "password": ...}
			creds, err := parseCredsJSON(value)
			if err != nil {
				return err
			}
			return credentials.Save(store, secretID, creds)
		default:
			return fmt.Errorf("unknown input format %q (basic|json|base64|raw)", secretsStoreFormat)
		}
	},
}

func parseCredsJSON(val string) (credentials.Credentials, error) {
	var raw map[string]string
	if err := json.Unmarshal([]byte(val), &raw); err != nil {
		return credentials.Credentials{}, fmt.Errorf("value is not valid JSON: %w", err)
	}
	username, hasUser := raw["username"]
	password, hasPass := raw["password"]
	if !hasUser || !hasPass {
		return credentials.Credentials{}, fmt.Errorf("value must contain username and password")
	}
	return credentials.Credentials{Username: username, Password: password}, nil
}

var secretsRetrieveCmd = &cobra.Command{
	Use:   "retrieve <secretID>",
	Args:  cobra.ExactArgs(1),
	Short: "Prints the decrypted value stored under secretID.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := secrets.OpenStore(viper.GetString("secrets.file"))
		if err != nil {
			return err
		}
		value, err := store.GetSecretByID(args[0])
		if err != nil {
			return fmt.Errorf("failed to retrieve secret: %w", err)
		}
		fmt.Printf("Secret for %s: %s\n", args[0], value)
		return nil
	},
}

var secretsListCmd = &cobra.Command{
	Use:   "list",
	Args:  cobra.NoArgs,
	Short: "Lists all the secret IDs and their encrypted values.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := secrets.OpenStore(viper.GetString("secrets.file"))
		if err != nil {
			return err
		}
		all, err := store.ListSecrets()
		if err != nil {
			return fmt.Errorf("failed to list secrets: %w", err)
		}
		ids := make([]string, 0, len(all))
		for id := range all {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("%s: %s\n", id, all[id])
		}
		return nil
	},
}

var secretsRemoveCmd = &cobra.Command{
	Use:   "remove <secretID>...",
	Args:  cobra.MinimumNArgs(1),
	Short: "Remove secrets by IDs from secret store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := secrets.OpenStore(viper.GetString("secrets.file"))
		if err != nil {
			return err
		}
		for _, secretID := range args {
			if err := store.RemoveSecretByID(secretID); err != nil {
				return fmt.Errorf("failed to remove secret: %w", err)
			}
			log.Info().Str("id", secretID).Msg("removed secret")
		}
		return nil
	},
}

func init() {
	secretsStoreCmd.Flags().StringVarP(&secretsStoreFormat, "format", "F", "basic", "Set the input format (basic|json|base64|raw)")
	secretsStoreCmd.Flags().StringVarP(&secretsStoreInputFile, "input-file", "f", "", "Set the file to read as input")

	secretsCmd.AddCommand(
		secretsGenerateKeyCmd,
		secretsStoreCmd,
		secretsRetrieveCmd,
		secretsListCmd,
		secretsRemoveCmd,
	)
	rootCmd.AddCommand(secretsCmd)
}
