// internal/commands/compare.go
package sndbench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sndlab/sndbench/internal/aggregate"
	"github.com/sndlab/sndbench/internal/views"
)

var compareCmd = &cobra.Command{
	Use:   "compare <model> [model...]",
	Short: "Compare models side by side from the published index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		allRuns, _ := cmd.Flags().GetBool("all-runs")

		index, err := loadIndex(GetConfig().SiteDirPath())
		if err != nil {
			return err
		}

		view := views.NewComparisonView(views.BuildRows(index.Runs))
		view.Select(args...)
		if allRuns {
			view.SetMode(views.AllRuns)
		}

		rows := view.Rows()
		if len(rows) == 0 {
			return fmt.Errorf("no runs found for %v (aggregate first?)", args)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-32s %-10s %-8s %-10s %s\n", "MODEL", "QUANT", "SIZE", "AVG ACC", "TIMESTAMP")
		for _, row := range rows {
			fmt.Fprintf(w, "%-32s %-10s %-8s %-10.4f %s\n",
				row.ShortName, row.Quantization, sizeColumn(row.ParamSizeB), row.AverageAccuracy, row.Timestamp)
		}
		return nil
	},
}

func sizeColumn(sizeB float64) string {
	if sizeB <= 0 {
		return "-"
	}
	return fmt.Sprintf("%gB", sizeB)
}

// loadIndex reads the published run index from the site directory.
func loadIndex(siteDir string) (aggregate.Index, error) {
	path := filepath.Join(siteDir, aggregate.IndexArtifactName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return aggregate.Index{}, fmt.Errorf("no published index at %s (run `sndbench aggregate` first)", path)
		}
		return aggregate.Index{}, fmt.Errorf("read index: %w", err)
	}
	var index aggregate.Index
	if err := json.Unmarshal(data, &index); err != nil {
		return aggregate.Index{}, fmt.Errorf("parse index: %w", err)
	}
	return index, nil
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Bool("all-runs", false, "show every run per model instead of the latest only")
}
