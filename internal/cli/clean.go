package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CleanOptions holds flags for the clean command.
type CleanOptions struct {
	*RootOptions
	CriteriaOptions
	DryRun bool
	All    bool
}

// CleanResult holds the clean command output.
type CleanResult struct {
	Removed int      `json:"removed"`
	IDs     []string `json:"ids,omitempty"`
	DryRun  bool     `json:"dry_run"`
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete recorded entries",
		Long: `Delete recorded entries matching the selection flags.

At least one selection flag is required; use --all to delete everything.

Examples:
  tead clean --before 2026-01-01
  tead clean --target 'github.com/acme/geo.*' --dry-run
  tead clean --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(opts, cmd)
		},
	}

	opts.CriteriaOptions.bind(cmd, false)
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list matching entries without deleting them")
	cmd.Flags().BoolVar(&opts.All, "all", false, "delete every entry")

	return cmd
}

func runClean(opts *CleanOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	if opts.empty() && !opts.All {
		return out.Fail(ExitCommandError, CodeCriteria, "refusing to delete every entry without --all", nil)
	}
	c, err := opts.criteria()
	if err != nil {
		return out.Fail(ExitCommandError, CodeCriteria, "invalid selection", err)
	}

	b, err := opts.openBackend(ctx, out)
	if err != nil {
		return err
	}
	defer b.Close()

	result := CleanResult{DryRun: opts.DryRun}
	if opts.DryRun {
		entries, err := collect(ctx, b, c)
		if err != nil {
			return out.Fail(ExitCommandError, CodeBackend, "failed to read entries", err)
		}
		for _, e := range entries {
			result.IDs = append(result.IDs, e.ID)
		}
		result.Removed = len(entries)
	} else {
		n, err := b.Delete(ctx, c)
		if err != nil {
			return out.Fail(ExitCommandError, CodeBackend, "failed to delete entries", err)
		}
		result.Removed = n
		opts.logger.Info("entries deleted", "count", n)
	}

	if out.IsJSON() {
		return out.Success(result)
	}
	w := cmd.OutOrStdout()
	if opts.DryRun {
		for _, id := range result.IDs {
			fmt.Fprintln(w, id)
		}
		fmt.Fprintf(w, "Would delete %d entries\n", result.Removed)
		return nil
	}
	fmt.Fprintf(w, "Deleted %d entries\n", result.Removed)
	return nil
}
