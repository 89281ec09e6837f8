package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"normlex/internal/bulk"
)

var (
	ingestParallel bool
	ingestWorkers  int
	ingestValidate bool
	ingestWatch    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Ingest a JSON document corpus into the theorem store",
	Long: `Walks <dir> for .json corpus documents, applies the configured filter
chain, extracts deontic theorems and writes them to the store. With --watch
the command keeps running and ingests files as they appear.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildComponents(false)
		if err != nil {
			return err
		}
		defer comps.Close()

		bulkCfg := cfg.Bulk
		if cmd.Flags().Changed("parallel") {
			bulkCfg.Parallel = ingestParallel
		}
		if ingestWorkers > 0 {
			bulkCfg.Workers = ingestWorkers
		}
		if cmd.Flags().Changed("validate") {
			bulkCfg.Validate = ingestValidate
		}

		var opts []bulk.ProcessorOption
		if bulkCfg.Validate {
			opts = append(opts, bulk.WithValidator(comps.checker))
		}
		proc := bulk.NewProcessor(comps.store, bulkCfg, opts...)

		stats, err := proc.ProcessDirectory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("run %s: %d discovered, %d processed, %d skipped, %d failed, %d theorems added (%.0f%% success) in %s\n",
			stats.RunID, stats.Discovered, stats.Processed, stats.Skipped, stats.Failed,
			stats.TheoremsAdded, stats.SuccessRate*100, stats.Elapsed.Round(time.Millisecond))
		if stats.ValidationConflicts > 0 {
			fmt.Printf("corpus self-validation found %d conflicts; see the log for details\n", stats.ValidationConflicts)
		}

		if ingestWatch {
			fmt.Printf("watching %s for new corpus files (ctrl-c to stop)\n", args[0])
			return proc.Watch(cmd.Context(), args[0])
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestParallel, "parallel", false, "extract documents concurrently")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "worker count for --parallel (default from config)")
	ingestCmd.Flags().BoolVar(&ingestValidate, "validate", false, "re-check ingested documents against the full store")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep watching the directory for new files")
}
