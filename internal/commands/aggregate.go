// internal/commands/aggregate.go
package sndbench

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sndlab/sndbench/internal/aggregate"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Fold all run artifacts into the published index and metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		modelFilter, _ := cmd.Flags().GetString("model")
		taskFilter, _ := cmd.Flags().GetString("task")
		since, _ := cmd.Flags().GetString("since")
		until, _ := cmd.Flags().GetString("until")
		csvPath, _ := cmd.Flags().GetString("csv")
		showSummary, _ := cmd.Flags().GetBool("summary")

		opts := aggregate.Options{
			ModelFilter: modelFilter,
			TaskFilter:  taskFilter,
		}
		if cmd.Flags().Changed("min-accuracy") {
			v, _ := cmd.Flags().GetFloat64("min-accuracy")
			opts.MinAccuracy = &v
		}
		if cmd.Flags().Changed("max-accuracy") {
			v, _ := cmd.Flags().GetFloat64("max-accuracy")
			opts.MaxAccuracy = &v
		}
		var err error
		if opts.Start, err = parseDateFlag(since); err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		if opts.End, err = parseDateFlag(until); err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}

		cfg := GetConfig()
		index, meta, err := aggregate.Pass(cfg.RunsDirPath(), opts)
		if err != nil {
			return err
		}
		if err := aggregate.WriteArtifacts(cfg.SiteDirPath(), index, meta); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Published %d runs to %s\n", index.TotalRuns, cfg.SiteDirPath())

		if csvPath != "" {
			if err := exportCSVFile(csvPath, index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CSV export written to %s\n", csvPath)
		}

		if showSummary {
			printSummary(cmd.OutOrStdout(), meta)
		}
		return nil
	},
}

func parseDateFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", value)
}

func exportCSVFile(path string, index aggregate.Index) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer file.Close()
	return aggregate.ExportCSV(file, index)
}

var (
	summaryHeading = color.New(color.FgCyan, color.Bold).SprintFunc()
	goodAccuracy   = color.New(color.FgGreen).SprintFunc()
	poorAccuracy   = color.New(color.FgRed).SprintFunc()
)

// printSummary renders the per-model rollup to the console, models in lexical
// order.
func printSummary(w io.Writer, meta aggregate.Metadata) {
	fmt.Fprintf(w, "\n%s\n", summaryHeading("Benchmark Summary"))
	fmt.Fprintf(w, "Total runs: %d   Models: %d   Global average: %s\n\n",
		meta.TotalRuns, meta.TotalModels, accuracyLabel(meta.GlobalAverageAccuracy))

	names := make([]string, 0, len(meta.PerModel))
	for name := range meta.PerModel {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		stats := meta.PerModel[name]
		fmt.Fprintf(w, "%s\n", summaryHeading(name))
		fmt.Fprintf(w, "  runs: %d   mean: %s", stats.Count, accuracyLabel(stats.Mean))
		if stats.BestTask != "" {
			fmt.Fprintf(w, "   best task: %s   worst task: %s", stats.BestTask, stats.WorstTask)
		}
		fmt.Fprintln(w)
		if stats.BestRun != nil {
			fmt.Fprintf(w, "  best run: %s (%s)\n", stats.BestRun.RunID, accuracyLabel(stats.BestRun.AverageAccuracy))
		}
	}
}

func accuracyLabel(value float64) string {
	label := fmt.Sprintf("%.4f", value)
	if value >= 0.7 {
		return goodAccuracy(label)
	}
	if value < 0.4 {
		return poorAccuracy(label)
	}
	return label
}

func init() {
	rootCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().StringP("model", "m", "", "only include runs whose model name contains this substring")
	aggregateCmd.Flags().StringP("task", "t", "", "only include runs that evaluated this task")
	aggregateCmd.Flags().Float64("min-accuracy", 0, "only include runs with at least this average accuracy")
	aggregateCmd.Flags().Float64("max-accuracy", 0, "only include runs with at most this average accuracy")
	aggregateCmd.Flags().String("since", "", "only include runs on or after this date (YYYY-MM-DD)")
	aggregateCmd.Flags().String("until", "", "only include runs on or before this date (YYYY-MM-DD)")
	aggregateCmd.Flags().String("csv", "", "also export the run index as CSV to this path")
	aggregateCmd.Flags().Bool("summary", false, "print the per-model rollup to the console")
}
