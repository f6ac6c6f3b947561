package cmd

import (
	"fmt"

	"github.com/OpenCHAMI/wattbox/pkg/inventory"
	"github.com/OpenCHAMI/wattbox/pkg/smd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var sendCmd = &cobra.Command{
	Use: "send <smd-url>",
	Example: `  // register the device as a PDU controller at x1000m0
  wattbox send -H 10.0.0.5 --placement-map '{"default": {"cabinet": 1000}}' https://smd.openchami.cluster
  // send from the cache and replace an existing registration
  export WATTBOX_SEND_ACCESS_TOKEN=...
  wattbox send -H 10.0.0.5 --cached --force-update -m @placements.yaml https://smd.openchami.cluster`,
	Short: "Register the device inventory with SMD",
	Long: "Builds the device inventory and sends it to SMD as a CabinetPDUController Redfish endpoint\n" +
		"with one CabinetPDUPowerConnector per outlet.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := loadInventory(cmd.Context(), viper.GetBool("send.cached"))
		if err != nil {
			return err
		}
		placement, err := lookupPlacement(inv.Hostname, viper.GetString("send.placement-map"))
		if err != nil {
			return err
		}

		client, err := smd.NewClient(args[0],
			smd.WithAccessToken(viper.GetString("send.access-token")),
			smd.WithCACert(viper.GetString("send.cacert")),
		)
		if err != nil {
			return fmt.Errorf("failed to create SMD client: %w", err)
		}

		ep := inventory.ToEndpoint(inv, placement)
		if err := client.Send(cmd.Context(), ep, viper.GetBool("send.force-update")); err != nil {
			if smd.IsConflict(err) {
				return fmt.Errorf("%s is already registered, use --force-update to replace it: %w", ep.ID, err)
			}
			return fmt.Errorf("failed to send Redfish endpoint: %w", err)
		}
		log.Info().
			Str("xname", ep.ID).
			Str("host", inv.Hostname).
			Int("outlets", len(ep.PDUInventory.Outlets)).
			Msg("sent Redfish endpoint to SMD")
		return nil
	},
}

func init() {
	addFlag("send.cached", sendCmd, "cached", "", false, "Send the inventory from the cached snapshot")
	addFlag("send.placement-map", sendCmd, "placement-map", "m", "", "Set the host to xname placement map as JSON or @file")
	addFlag("send.force-update", sendCmd, "force-update", "f", false, "Update the endpoint when it is already registered")
	addFlag("send.access-token", sendCmd, "access-token", "", "", "Set the bearer token for SMD")
	addFlag("send.cacert", sendCmd, "smd-cacert", "", "", "Set the path to the CA cert for SMD (defaults to system CAs)")

	rootCmd.AddCommand(sendCmd)
}
