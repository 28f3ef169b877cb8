// internal/commands/summary.go
package sndbench

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sndlab/sndbench/internal/runrecord"
	"github.com/sndlab/sndbench/internal/summary"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <run-id>",
	Short: "Render a run's markdown summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		write, _ := cmd.Flags().GetBool("write")

		cfg := GetConfig()
		record, err := runrecord.Load(cfg.RunsDirPath(), args[0])
		if err != nil {
			return err
		}

		if write {
			if err := summary.Write(cfg.RunsDirPath(), &record, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Summary written for %s\n", record.RunID)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), summary.Render(&record, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().Bool("write", false, "persist the summary next to the run's artifacts")
}
