package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tendant/catalog-ingest/pkg/ingest"
	"github.com/tendant/catalog-ingest/pkg/ingest/batch"
	"github.com/tendant/catalog-ingest/pkg/ingest/config"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func newUploadCommand(flags *globalFlags) *cobra.Command {
	var (
		sourceDir    string
		dryRun       bool
		workers      int
		skipExisting bool
		strict       bool
		quiet        bool
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload every document in the source directory and register it as a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []config.Option
			if sourceDir != "" {
				opts = append(opts, config.WithSourceDir(sourceDir))
			}
			if cmd.Flags().Changed("dry-run") {
				opts = append(opts, config.WithDryRun(dryRun))
			}
			if cmd.Flags().Changed("workers") {
				opts = append(opts, config.WithWorkers(workers))
			}
			if skipExisting {
				opts = append(opts, config.WithDuplicatePolicy(string(batch.DuplicateSkipExisting)))
			}

			cfg, logger, err := flags.load(opts...)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var (
				store   ingest.AssetStore
				catalog ingest.Catalog
			)
			if !cfg.DryRun {
				if err := cfg.ValidateUpload(); err != nil {
					return err
				}
				store, err = cfg.BuildStore()
				if err != nil {
					return err
				}
				backend, closeCatalog, err := cfg.BuildCatalog(ctx, logger)
				if err != nil {
					return err
				}
				defer closeCatalog()
				catalog = backend
			}

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			orch, err := cfg.BuildOrchestrator(store, catalog, logger, func(o *batch.Options) {
				if quiet {
					return
				}
				o.OnItemDone = func(item ingest.ItemResult) {
					mu.Lock()
					defer mu.Unlock()
					printItem(out, item)
				}
			})
			if err != nil {
				return err
			}

			result, err := orch.Run(ctx)
			if result != nil {
				printSummary(out, result)
			}
			if err != nil {
				return err
			}
			if strict && result.Failed > 0 {
				return fmt.Errorf("%d of %d items failed", result.Failed, result.TotalFound)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceDir, "source", "s", "", "directory to ingest (overrides SOURCE_DIR)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "derive titles and slugs without uploading or registering")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "number of items processed concurrently")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "skip items whose slug is already registered")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when any item fails")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the summary")

	return cmd
}

func printItem(w io.Writer, item ingest.ItemResult) {
	switch item.State {
	case ingest.ItemSucceeded:
		fmt.Fprintf(w, "%s %s -> %s\n", green("ok"), item.Source.Name, item.Slug)
	case ingest.ItemSkipped:
		fmt.Fprintf(w, "%s %s -> %s (%s)\n", yellow("skip"), item.Source.Name, item.Slug, item.Reason)
	case ingest.ItemFailed:
		fmt.Fprintf(w, "%s %s: %v\n", red("fail"), item.Source.Name, item.Err)
	}
}

func printSummary(w io.Writer, result *ingest.BatchResult) {
	fmt.Fprintf(w, "%s found: %d, %s, %s, %s\n",
		bold("summary"),
		result.TotalFound,
		green(fmt.Sprintf("succeeded: %d", result.Succeeded)),
		red(fmt.Sprintf("failed: %d", result.Failed)),
		yellow(fmt.Sprintf("skipped: %d", result.Skipped)),
	)
}
