package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/query"
)

// CriteriaOptions holds the entry selection flags shared by list, gen and
// clean.
type CriteriaOptions struct {
	Targets []string
	After   string
	Before  string
	Where   string
	Limit   int
}

func (c *CriteriaOptions) bind(cmd *cobra.Command, withLimit bool) {
	cmd.Flags().StringArrayVarP(&c.Targets, "target", "t", nil, "target name or glob pattern (repeatable)")
	cmd.Flags().StringVar(&c.After, "after", "", "only entries recorded at or after this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&c.Before, "before", "", "only entries recorded at or before this time (a date includes the whole day)")
	cmd.Flags().StringVar(&c.Where, "where", "", `CEL filter over target, timestamp and id, e.g. 'target.startsWith("github.com/acme/")'`)
	if withLimit {
		cmd.Flags().IntVar(&c.Limit, "limit", 0, "maximum number of entries (0 = no limit)")
	}
}

// empty reports whether no selection flag was given.
func (c *CriteriaOptions) empty() bool {
	return len(c.Targets) == 0 && c.After == "" && c.Before == "" && c.Where == ""
}

// criteria converts the flags to query criteria.
func (c *CriteriaOptions) criteria() (query.Criteria, error) {
	out := query.Criteria{
		Targets: c.Targets,
		Where:   c.Where,
		Limit:   c.Limit,
	}
	var err error
	if c.After != "" {
		if out.After, err = query.ParseTime(c.After); err != nil {
			return query.Criteria{}, err
		}
	}
	if c.Before != "" {
		if out.Before, err = query.ParseBefore(c.Before); err != nil {
			return query.Criteria{}, err
		}
	}
	if err := out.Validate(); err != nil {
		return query.Criteria{}, err
	}
	if _, err := query.NewMatcher(out); err != nil {
		return query.Criteria{}, err
	}
	return out, nil
}

// collect drains src for c.
func collect(ctx context.Context, src query.Source, c query.Criteria) ([]ir.Entry, error) {
	var entries []ir.Entry
	for e, err := range src.Iterate(ctx, c) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
