// The cmd package implements the wattbox CLI. Commands only handle arguments
// and configuration, then hand off to the packages under pkg/:
//
//	cmd/status.go    --> pkg/wattbox ( Client.Refresh(), Client.Telemetry() )
//	cmd/outlet.go    --> pkg/wattbox ( Client.SetOutlet(), Client.ResetOutlet() )
//	cmd/daemon.go    --> pkg/poller, pkg/daemon
//	cmd/inventory.go --> pkg/inventory
//	cmd/send.go      --> pkg/inventory, pkg/smd
//	cmd/cache.go     --> internal/cache/sqlite
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/OpenCHAMI/wattbox/internal/config"
	logger "github.com/OpenCHAMI/wattbox/internal/log"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configPath string
	logLevel   = logger.INFO
	logFile    string
)

// The `root` command doesn't do anything on it's own except display
// a help message and then exits.
var rootCmd = &cobra.Command{
	Use:   "wattbox",
	Short: "Monitor and control WattBox power distribution units",
	Long:  "Polls a WattBox PDU over HTTP(S), reports outlet and power telemetry and switches outlets on, off or through a reset.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.InitWithLogLevel(logLevel, logFile)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			log.Error().Err(err).Msg("failed to print help")
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// This Execute() function is called from main to run the CLI.
func Execute() {
	err := rootCmd.Execute()
	logger.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(InitializeConfig)
	config.SetDefaults()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Set the config file path")
	rootCmd.PersistentFlags().VarP(&logLevel, "log-level", "l", "Set the log level (trace|debug|info|warn|error|disabled)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file")

	addPersistentFlag("host", rootCmd, "host", "H", "", "Set the device host, host:port or URL")
	addPersistentFlag("username", rootCmd, "username", "u", "", "Set the device username")
	addPersistentFlag("password", rootCmd, "password", "p", "", "Set the device password")
	addPersistentFlag("tls", rootCmd, "tls", "", false, "Use HTTPS when the host has no scheme")
	addPersistentFlag("insecure", rootCmd, "insecure", "i", false, "Skip TLS certificate verification")
	addPersistentFlag("cacert", rootCmd, "cacert", "", "", "Set the path to a CA cert file (defaults to system CAs when blank)")
	addPersistentFlag("timeout", rootCmd, "timeout", "t", wattbox.DefaultTimeout, "Set the timeout for device requests")
	addPersistentFlag("cache", rootCmd, "cache", "", config.DefaultCachePath(), "Set the snapshot cache path")
	addPersistentFlag("secrets.file", rootCmd, "secrets-file", "", config.DefaultSecretsPath(), "Set the secrets file with device credentials")
	addPersistentFlag("reset.native", rootCmd, "native-reset", "", true, "Use the firmware reset endpoint")
	addPersistentFlag("reset.simulate", rootCmd, "simulate-reset", "", false, "Reset with off, delay, on when the native reset is disabled")
	addPersistentFlag("reset.delay", rootCmd, "reset-delay", "", wattbox.DefaultResetDelay, "Set the delay between off and on for a simulated reset")
	addPersistentFlag("status.format", rootCmd, "status-format", "", string(wattbox.StatusFormatAuto), "Set the status format (auto|html|json)")
}

// InitializeConfig() loads the config file, either the one given with
// --config or config.yaml in the wattbox config directory, and enables
// WATTBOX_* environment variables.
func InitializeConfig() {
	viper.SetEnvPrefix("wattbox")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		if err := config.LoadConfig(configPath); err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		}
		return
	}
	viper.AddConfigPath(config.DefaultConfigDir())
	viper.SetConfigName("config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debug().Msg("no config file found, using flags and environment only")
			return
		}
		log.Error().Err(err).Msg("failed to load config")
	}
}
