package cli

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tead/internal/ir"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	CriteriaOptions
	ByTarget bool
}

// EntrySummary is one line of list output.
type EntrySummary struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
}

// TargetSummary counts the entries of one target.
type TargetSummary struct {
	Target  string    `json:"target"`
	Entries int       `json:"entries"`
	Latest  time.Time `json:"latest"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded entries",
		Long: `List recorded entries, oldest first.

Examples:
  tead list
  tead list --target 'github.com/acme/geo.*' --after 2026-01-01
  tead list --by-target
  tead list --where 'id.startsWith("0190")' --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	opts.CriteriaOptions.bind(cmd, true)
	cmd.Flags().BoolVar(&opts.ByTarget, "by-target", false, "count entries per target instead of listing them")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	c, err := opts.criteria()
	if err != nil {
		return out.Fail(ExitCommandError, CodeCriteria, "invalid selection", err)
	}

	b, err := opts.openBackend(ctx, out)
	if err != nil {
		return err
	}
	defer b.Close()

	entries, err := collect(ctx, b, c)
	if err != nil {
		return out.Fail(ExitCommandError, CodeBackend, "failed to read entries", err)
	}

	if opts.ByTarget {
		summaries := summarizeTargets(entries)
		if out.IsJSON() {
			return out.Success(summaries)
		}
		w := cmd.OutOrStdout()
		for _, s := range summaries {
			fmt.Fprintf(w, "%6d  %s  %s\n", s.Entries, s.Latest.Format(time.RFC3339), s.Target)
		}
		return nil
	}

	summaries := make([]EntrySummary, len(entries))
	for i, e := range entries {
		summaries[i] = EntrySummary{ID: e.ID, Target: e.Target, Timestamp: e.Timestamp}
	}
	if out.IsJSON() {
		return out.Success(summaries)
	}
	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No entries found")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s  %s  %s\n", s.ID, s.Timestamp.Format(time.RFC3339), s.Target)
	}
	return nil
}

// summarizeTargets groups entries by target, sorted by target name.
func summarizeTargets(entries []ir.Entry) []TargetSummary {
	byTarget := make(map[string]*TargetSummary)
	for _, e := range entries {
		s, ok := byTarget[e.Target]
		if !ok {
			s = &TargetSummary{Target: e.Target}
			byTarget[e.Target] = s
		}
		s.Entries++
		if e.Timestamp.After(s.Latest) {
			s.Latest = e.Timestamp
		}
	}
	out := make([]TargetSummary, 0, len(byTarget))
	for _, s := range byTarget {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b TargetSummary) int {
		return cmp.Compare(a.Target, b.Target)
	})
	return out
}
