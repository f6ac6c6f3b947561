package cmd

import (
	"fmt"
	"os"

	"github.com/OpenCHAMI/wattbox/internal/cache/sqlite"
	"github.com/OpenCHAMI/wattbox/internal/format"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cacheFormat    = format.FORMAT_LIST
	withAllEntries bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached device snapshots",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the hosts with a cached snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := sqlite.GetCachedHosts(viper.GetString("cache"))
		if err != nil {
			return fmt.Errorf("failed to read cache: %w", err)
		}
		return format.Write(os.Stdout, cachedHostsView(devices), cacheFormat)
	},
}

var cacheRemoveCmd = &cobra.Command{
	Use:   "remove <host>...",
	Short: "Remove cached snapshots by host",
	Example: `  // hosts are given as host[:port], the same way they are listed
  wattbox cache remove 10.0.0.5 pdu2.local:8443
  // drop everything
  wattbox cache remove --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := sqlite.SnapshotCache{Path: viper.GetString("cache")}
		hosts := args
		if withAllEntries {
			all, err := c.Keys(c.Path)
			if err != nil {
				return err
			}
			hosts = all
		}
		if len(hosts) == 0 {
			return fmt.Errorf("no hosts given")
		}
		if err := c.Delete(c.Path, hosts...); err != nil {
			return err
		}
		for _, host := range hosts {
			log.Info().Str("host", host).Msg("removed cached snapshot")
		}
		return nil
	},
}

func init() {
	cacheListCmd.Flags().VarP(&cacheFormat, "format", "F", "Set the output format (list|json|yaml)")
	cacheRemoveCmd.Flags().BoolVar(&withAllEntries, "all", false, "Remove every cached snapshot")

	cacheCmd.AddCommand(cacheListCmd, cacheRemoveCmd)
	rootCmd.AddCommand(cacheCmd)
}
