package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docoutline/internal/mcptool"
	"github.com/dgallion1/docoutline/internal/version"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the outline tools over MCP on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a.log.Info("starting mcp server", "classifier", a.cfg.Classifier)
		return mcptool.Serve(ctx, a.engine, version.Version)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
