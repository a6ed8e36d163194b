package cli

import (
	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a single collection pass and update the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Collect(cmd.Context())
	},
}
