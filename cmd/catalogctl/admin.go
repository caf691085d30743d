package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tendant/catalog-ingest/pkg/ingest/admin"
	"github.com/tendant/catalog-ingest/pkg/ingest/config"
)

var errNotConfirmed = errors.New("refusing to delete products without --yes")

// withCleaner loads the config, builds the catalog and hands a Cleaner to fn
func withCleaner(cmd *cobra.Command, flags *globalFlags, opts []config.Option, fn func(*admin.Cleaner) error) error {
	cfg, logger, err := flags.load(opts...)
	if err != nil {
		return err
	}
	catalog, closeCatalog, err := cfg.BuildCatalog(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer closeCatalog()
	return fn(cfg.BuildCleaner(catalog, logger))
}

// insecureOption overrides INSECURE_SKIP_VERIFY only when --insecure was given
func insecureOption(cmd *cobra.Command, insecure bool) []config.Option {
	if !cmd.Flags().Changed("insecure") {
		return nil
	}
	return []config.Option{config.WithInsecureSkipVerify(insecure)}
}

func newCountCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of products in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCleaner(cmd, flags, nil, func(c *admin.Cleaner) error {
				total, err := c.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "products: %d\n", total)
				return nil
			})
		},
	}
}

func newCleanupCommand(flags *globalFlags) *cobra.Command {
	var (
		yes      bool
		insecure bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete every product, skipping the call when the catalog is empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			opts := insecureOption(cmd, insecure)
			return withCleaner(cmd, flags, opts, func(c *admin.Cleaner) error {
				result, err := c.Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !result.Deleted {
					fmt.Fprintln(out, green("catalog already empty"))
					return nil
				}
				fmt.Fprintf(out, "%s %d products\n", red("deleted"), result.TotalBefore)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the irreversible delete")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	return cmd
}

func newPurgeCommand(flags *globalFlags) *cobra.Command {
	var (
		yes      bool
		insecure bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every product without counting first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			opts := insecureOption(cmd, insecure)
			return withCleaner(cmd, flags, opts, func(c *admin.Cleaner) error {
				result, err := c.Purge(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", red("purged"), string(result.Response))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the irreversible delete")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	return cmd
}
