package cmd

import (
	"fmt"
	"os"

	"github.com/OpenCHAMI/wattbox/internal/format"
	"github.com/OpenCHAMI/wattbox/internal/version"
	"github.com/spf13/cobra"
)

var versionFormat format.DataFormat

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if versionFormat == "" {
			fmt.Println(info)
			return nil
		}
		return format.Write(os.Stdout, info, versionFormat)
	},
}

func init() {
	versionCmd.Flags().VarP(&versionFormat, "format", "F", "Print all build details (json|yaml)")
	rootCmd.AddCommand(versionCmd)
}
