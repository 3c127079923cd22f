package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docoutline/internal/extract"
	"github.com/dgallion1/docoutline/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and supported formats",
	Run: func(cmd *cobra.Command, args []string) {
		if ocrRegister != nil {
			ocrRegister(nil)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "docoutline %s\n", version.String())
		fmt.Fprintf(cmd.OutOrStdout(), "formats: %v\n", extract.SupportedExtensions())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
