package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/OpenCHAMI/wattbox/internal/util"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// The `outlet` command switches outlets. Outlets are handled one after the
// other; a failure on one outlet does not stop the rest, and every failure is
// reported at the end.
var outletCmd = &cobra.Command{
	Use: "outlet",
	Example: `  // switch outlets 1 and 3 off
  wattbox outlet off 1 3 -H 10.0.0.5
  // power cycle outlet 2 with an off/on sequence instead of the firmware reset
  wattbox outlet reset 2 --native-reset=false --simulate-reset --reset-delay 5s`,
	Short: "Switch outlets on, off or through a reset",
}

func newOutletActionCmd(action, short string, run func(ctx context.Context, c *wattbox.Client, n int) error) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <outlet>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outlets := make([]int, 0, len(args))
			for _, arg := range args {
				n, err := strconv.Atoi(arg)
				if err != nil || n < 1 {
					return fmt.Errorf("invalid outlet %q: must be a positive number", arg)
				}
				outlets = append(outlets, n)
			}

			client, _, err := fetchTelemetry(cmd.Context())
			if err != nil {
				return err
			}

			var errs []error
			for _, n := range outlets {
				if err := run(cmd.Context(), client, n); err != nil {
					log.Error().Err(err).Int("outlet", n).Str("action", action).Msg("outlet command failed")
					errs = append(errs, err)
					continue
				}
				fmt.Printf("outlet %d: %s\n", n, action)
			}
			if util.HasErrors(errs) {
				return fmt.Errorf("%d of %d outlet commands failed:\n%w", len(errs), len(outlets), util.FormatErrorList(errs))
			}
			return nil
		},
	}
}

func init() {
	outletCmd.AddCommand(
		newOutletActionCmd("on", "Switch outlets on", func(ctx context.Context, c *wattbox.Client, n int) error {
			return c.SetOutlet(ctx, n, true)
		}),
		newOutletActionCmd("off", "Switch outlets off", func(ctx context.Context, c *wattbox.Client, n int) error {
			return c.SetOutlet(ctx, n, false)
		}),
		newOutletActionCmd("reset", "Power cycle outlets", func(ctx context.Context, c *wattbox.Client, n int) error {
			return c.ResetOutlet(ctx, n)
		}),
	)

	rootCmd.AddCommand(outletCmd)
}
