// internal/commands/annotate.go
package sndbench

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sndlab/sndbench/internal/runrecord"
	"github.com/sndlab/sndbench/internal/summary"
	"github.com/sndlab/sndbench/internal/tracking"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate <run-id>",
	Short: "Push an existing run to the tracking service and regenerate its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		cfg := GetConfig()

		record, err := runrecord.Load(cfg.RunsDirPath(), runID)
		if err != nil {
			return err
		}

		var ref *tracking.Ref
		client := tracking.NewClient(cfg)
		if client.Enabled() {
			ctx, cancel := client.Timeout(cmd.Context())
			defer cancel()
			r, err := client.Annotate(ctx, cfg.RunsDirPath(), &record)
			if err != nil {
				return fmt.Errorf("tracking annotation: %w", err)
			}
			ref = &r
			fmt.Fprintf(cmd.OutOrStdout(), "Tracked: %s\n", r.URL)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking disabled (%s not set), regenerating summary only.\n", tracking.APIKeyEnv)
		}

		if err := summary.Write(cfg.RunsDirPath(), &record, ref); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Summary written for %s\n", runID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(annotateCmd)
}
