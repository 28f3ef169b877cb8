// internal/commands/run.go
package sndbench

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sndlab/sndbench/internal/engine"
	"github.com/sndlab/sndbench/internal/orchestrate"
	"github.com/sndlab/sndbench/internal/tracking"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a benchmark and publish the updated index",
	RunE: func(cmd *cobra.Command, args []string) error {
		modelName, _ := cmd.Flags().GetString("model")
		modelPath, _ := cmd.Flags().GetString("model-path")
		tasksArg, _ := cmd.Flags().GetString("tasks")
		engineName, _ := cmd.Flags().GetString("engine")
		hardware, _ := cmd.Flags().GetString("hardware")
		runID, _ := cmd.Flags().GetString("run-id")
		enginesPath, _ := cmd.Flags().GetString("engines")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg := GetConfig()
		if enginesPath == "" {
			enginesPath = cfg.EnginesPath
		}
		catalog, err := engine.LoadCatalog(enginesPath)
		if err != nil {
			return err
		}

		pipeline := orchestrate.New(cfg, catalog, engine.NewRunner(), tracking.NewClient(cfg))
		record, err := pipeline.Run(cmd.Context(), orchestrate.Request{
			ModelName:  modelName,
			ModelPath:  modelPath,
			Tasks:      splitTasks(tasksArg),
			EngineName: engineName,
			Hardware:   hardware,
			RunID:      runID,
			DryRun:     dryRun,
		})
		if err != nil {
			if errors.Is(err, orchestrate.ErrInputValidation) {
				return fmt.Errorf("invalid request: %w", err)
			}
			return err
		}

		if dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "Dry run: request is valid.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s complete. Average accuracy: %.4f\n",
			record.RunID, record.AverageAccuracy)
		return nil
	},
}

func splitTasks(arg string) []string {
	var tasks []string
	for _, task := range strings.Split(arg, ",") {
		if task = strings.TrimSpace(task); task != "" {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("model", "m", "", "model name to benchmark")
	runCmd.Flags().String("model-path", "", "model path passed to the engine (defaults to the model name)")
	runCmd.Flags().StringP("tasks", "t", "", "comma-separated list of evaluation tasks")
	runCmd.Flags().StringP("engine", "e", "", "engine from the catalog (defaults to lm-eval)")
	runCmd.Flags().String("hardware", "", "hardware profile label")
	runCmd.Flags().String("run-id", "", "run id (generated from the timestamp when empty)")
	runCmd.Flags().String("engines", "", "engine catalog file (defaults to config/engines.yml)")
	runCmd.Flags().Bool("dry-run", false, "validate the request without running anything")
	_ = runCmd.MarkFlagRequired("model")
	_ = runCmd.MarkFlagRequired("tasks")
}
