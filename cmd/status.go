package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/OpenCHAMI/wattbox/internal/cache/sqlite"
	"github.com/OpenCHAMI/wattbox/internal/format"
	"github.com/OpenCHAMI/wattbox/internal/util"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusFormat = format.FORMAT_LIST

var statusCmd = &cobra.Command{
	Use: "status",
	Example: `  // poll the device once and print every outlet
  wattbox status -H 10.0.0.5 -u admin -p secret
  // print the last snapshot stored by the daemon without contacting the device
  wattbox status -H 10.0.0.5 --cached -F json`,
	Short: "Print outlet states and power readings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var view statusView
		if viper.GetBool("status.cached") {
			host, err := cachedHostID()
			if err != nil {
				return err
			}
			t, err := sqlite.GetSnapshot(viper.GetString("cache"), host)
			if err != nil {
				return fmt.Errorf("failed to read cached snapshot: %w", err)
			}
			view = statusView{Host: host, Cached: true, Telemetry: *t}
		} else {
			client, t, err := fetchTelemetry(cmd.Context())
			if err != nil {
				return err
			}
			view = statusView{Host: client.Host(), Telemetry: t}
			if !viper.GetBool("status.no-cache") {
				if err := sqlite.InsertSnapshot(viper.GetString("cache"), client.Host(), t); err != nil {
					log.Warn().Err(err).Msg("failed to cache snapshot")
				}
			}
		}
		return format.Write(os.Stdout, view, statusFormat)
	},
}

// fetchTelemetry builds a client and polls the device once.
func fetchTelemetry(ctx context.Context) (*wattbox.Client, wattbox.Telemetry, error) {
	client, err := newClient()
	if err != nil {
		return nil, wattbox.Telemetry{}, err
	}
	if err := client.Refresh(ctx); err != nil {
		return nil, wattbox.Telemetry{}, fmt.Errorf("failed to poll %s: %w", client.Host(), err)
	}
	t, err := client.Telemetry()
	return client, t, err
}

// cachedHostID returns the cache key for --host without building a client,
// since credentials are not needed to read the cache.
func cachedHostID() (string, error) {
	cfg := wattbox.DefaultConfig()
	cfg.Host = viper.GetString("host")
	cfg.UseTLS = viper.GetBool("tls")
	baseURL, err := cfg.BaseURL()
	if err != nil {
		return "", err
	}
	return util.HostID(baseURL), nil
}

func init() {
	statusCmd.Flags().VarP(&statusFormat, "format", "F", "Set the output format (list|json|yaml)")
	addFlag("status.cached", statusCmd, "cached", "", false, "Print the cached snapshot instead of polling the device")
	addFlag("status.no-cache", statusCmd, "no-cache", "", false, "Do not store the polled snapshot in the cache")

	rootCmd.AddCommand(statusCmd)
}
