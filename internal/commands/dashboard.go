// internal/commands/dashboard.go
package sndbench

import (
	"github.com/spf13/cobra"

	"github.com/sndlab/sndbench/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Browse published runs in the interactive dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(GetConfig())
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
