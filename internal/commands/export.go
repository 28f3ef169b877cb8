// internal/commands/export.go
package sndbench

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sndlab/sndbench/internal/aggregate"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the published run index as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")

		index, err := loadIndex(GetConfig().SiteDirPath())
		if err != nil {
			return err
		}

		if outPath == "" {
			return aggregate.ExportCSV(cmd.OutOrStdout(), index)
		}
		if err := exportCSVFile(outPath, index); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d runs to %s\n", index.TotalRuns, outPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("out", "o", "", "output file (stdout when empty)")
}
