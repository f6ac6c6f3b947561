package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OpenCHAMI/wattbox/internal/cache/sqlite"
	"github.com/OpenCHAMI/wattbox/internal/config"
	"github.com/OpenCHAMI/wattbox/pkg/daemon"
	"github.com/OpenCHAMI/wattbox/pkg/poller"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// The `daemon` command polls the device on a fixed interval and serves its
// switches and sensors over HTTP until interrupted.
var daemonCmd = &cobra.Command{
	Use: "daemon",
	Example: `  // basic launch
  wattbox daemon -H 10.0.0.5
  // launch with a custom configuration
  wattbox daemon -c custom-settings.yml`,
	Short: "Poll a device and serve its switches and sensors over HTTP",
	Long: "Polls the device every --interval, stores each snapshot in the cache and exposes the\n" +
		"outlets as switches and the readings as sensors. When a token key is configured every\n" +
		"request must carry an HS256 signed bearer token.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		var sink poller.Sink
		if !viper.GetBool("daemon.no-cache") {
			sink = sqlite.SnapshotCache{Path: viper.GetString("cache")}
		}
		p := poller.New(client, viper.GetDuration("daemon.interval"), sink)
		p.FailureThreshold = viper.GetInt("daemon.failure-threshold")

		tokenKey := config.TokenKey()
		if len(tokenKey) == 0 {
			log.Warn().Msg("no token key configured, serving without authentication")
		}
		server := &daemon.Server{
			Device:         client,
			Poller:         p,
			TokenKey:       tokenKey,
			CommandTimeout: viper.GetDuration("daemon.command-timeout"),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := client.DetectAuthMode(ctx); err != nil {
			log.Warn().Err(err).Str("host", client.Host()).Msg("auth detection failed, the poller will retry")
		}

		done := make(chan error, 1)
		go func() {
			done <- p.Run(ctx)
		}()
		err = server.RunServer(ctx, viper.GetString("daemon.endpoint"))
		stop()
		if perr := <-done; perr != nil {
			log.Error().Err(perr).Msg("poller stopped")
		}
		return err
	},
}

func init() {
	addFlag("daemon.endpoint", daemonCmd, "endpoint", "e", "localhost:8080", "Address for the daemon to listen on")
	addFlag("daemon.interval", daemonCmd, "interval", "", poller.DefaultInterval, "Set the polling interval")
	addFlag("daemon.failure-threshold", daemonCmd, "failure-threshold", "", poller.DefaultFailureThreshold, "Consecutive failed polls before the device is unavailable")
	addFlag("daemon.command-timeout", daemonCmd, "command-timeout", "", 30*time.Second, "Set the timeout for outlet commands")
	addFlag("daemon.token-key-file", daemonCmd, "token-key-file", "", "", "Read the bearer token key from this file")
	addFlag("daemon.no-cache", daemonCmd, "no-cache", "", false, "Do not store snapshots in the cache")

	rootCmd.AddCommand(daemonCmd)
}
