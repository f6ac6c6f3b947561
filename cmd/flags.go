package cmd

import (
	"fmt"
	"time"

	"github.com/OpenCHAMI/wattbox/internal/config"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// addFlag registers a local flag on cmd and binds it to the viper key, so the
// value can also come from the config file or a WATTBOX_* variable.
func addFlag(key string, cmd *cobra.Command, name, shorthand string, value any, usage string) {
	bindFlag(key, cmd.Flags(), name, shorthand, value, usage)
}

// addPersistentFlag is addFlag for flags inherited by subcommands.
func addPersistentFlag(key string, cmd *cobra.Command, name, shorthand string, value any, usage string) {
	bindFlag(key, cmd.PersistentFlags(), name, shorthand, value, usage)
}

func bindFlag(key string, flags *pflag.FlagSet, name, shorthand string, value any, usage string) {
	switch v := value.(type) {
	case string:
		flags.StringP(name, shorthand, v, usage)
	case bool:
		flags.BoolP(name, shorthand, v, usage)
	case int:
		flags.IntP(name, shorthand, v, usage)
	case time.Duration:
		flags.DurationP(name, shorthand, v, usage)
	case []string:
		flags.StringSliceP(name, shorthand, v, usage)
	case pflag.Value:
		flags.VarP(v, name, shorthand, usage)
	default:
		panic(fmt.Sprintf("unsupported flag type %T for --%s", value, name))
	}
	checkBindFlagError(viper.BindPFlag(key, flags.Lookup(name)))
}

func checkBindFlagError(err error) {
	if err != nil {
		log.Error().Err(err).Msg("failed to bind cobra/viper flag")
	}
}

// newClient builds the device client from the merged configuration.
func newClient() (*wattbox.Client, error) {
	cfg, err := config.DeviceConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid device configuration: %w", err)
	}
	client, err := wattbox.New(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("host", client.Host()).
		Bool("native_reset", cfg.NativeReset).
		Bool("simulate_reset", cfg.SimulateReset).
		Msg("device client ready")
	return client, nil
}
