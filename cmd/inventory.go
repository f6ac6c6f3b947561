package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/OpenCHAMI/wattbox/internal/cache/sqlite"
	"github.com/OpenCHAMI/wattbox/internal/format"
	"github.com/OpenCHAMI/wattbox/pkg/inventory"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var inventoryFormat = format.FORMAT_JSON

var inventoryCmd = &cobra.Command{
	Use: "inventory",
	Example: `  // print the inventory of a device
  wattbox inventory -H 10.0.0.5
  // print power connector records for SMD, placing the PDU at x1000m0p0
  wattbox inventory -H 10.0.0.5 --smd --placement-map '{"default": {"cabinet": 1000}}'
  // use a placement file for many PDUs and read from the cache
  wattbox inventory -H 10.0.0.5 --cached --smd --placement-map @placements.yaml`,
	Short: "Export the device inventory",
	Long:  "Builds a hardware inventory from a device snapshot, optionally as CabinetPDUPowerConnector\nrecords for an SMD style inventory service.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := loadInventory(cmd.Context(), viper.GetBool("inventory.cached"))
		if err != nil {
			return err
		}

		if !viper.GetBool("inventory.smd") {
			return format.Write(os.Stdout, inventoryView{inv}, inventoryFormat)
		}

		if inventoryFormat == format.FORMAT_LIST {
			return fmt.Errorf("SMD records can only be printed as json or yaml")
		}
		placement, err := lookupPlacement(inv.Hostname, viper.GetString("inventory.placement-map"))
		if err != nil {
			return err
		}
		records := inventory.ToSMD(inv, placement)
		log.Debug().Str("controller", placement.ControllerXname()).Int("records", len(records)).Msg("built SMD records")
		return format.Write(os.Stdout, records, inventoryFormat)
	},
}

func init() {
	inventoryCmd.Flags().VarP(&inventoryFormat, "format", "F", "Set the output format (list|json|yaml)")
	addFlag("inventory.cached", inventoryCmd, "cached", "", false, "Build the inventory from the cached snapshot")
	addFlag("inventory.smd", inventoryCmd, "smd", "", false, "Print CabinetPDUPowerConnector records")
	addFlag("inventory.placement-map", inventoryCmd, "placement-map", "m", "", "Set the host to xname placement map as JSON or @file")

	rootCmd.AddCommand(inventoryCmd)
}

// loadInventory builds the inventory from a live poll or, with cached set,
// from the cached snapshot of the configured host.
func loadInventory(ctx context.Context, cached bool) (inventory.PDUInventory, error) {
	var (
		host string
		t    wattbox.Telemetry
	)
	if cached {
		id, err := cachedHostID()
		if err != nil {
			return inventory.PDUInventory{}, err
		}
		snap, err := sqlite.GetSnapshot(viper.GetString("cache"), id)
		if err != nil {
			return inventory.PDUInventory{}, fmt.Errorf("failed to read cached snapshot: %w", err)
		}
		host, t = id, *snap
	} else {
		client, live, err := fetchTelemetry(ctx)
		if err != nil {
			return inventory.PDUInventory{}, err
		}
		host, t = client.Host(), live
	}

	inv := inventory.FromTelemetry(host, t)
	inv.CanReset = viper.GetBool("reset.native") || viper.GetBool("reset.simulate")
	return inv, nil
}

func lookupPlacement(host string, placementMap string) (inventory.Placement, error) {
	placements, err := inventory.LoadPlacementMap(placementMap, format.FORMAT_JSON)
	if err != nil {
		return inventory.Placement{}, fmt.Errorf("failed to load placement map: %w", err)
	}
	placement, ok := placements.Lookup(host)
	if !ok {
		return inventory.Placement{}, fmt.Errorf("no placement for %s in the placement map", host)
	}
	return placement, nil
}
