package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/query"
	"github.com/roach88/tead/internal/snapshot"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded entry",
		Long: `Show the arguments and result of one recorded entry.

Text output renders the decoded values in canonical form. JSON output is
the stored graph document.

Examples:
  tead show 0190d6b8-7d1e-7a4c-9b1e-5f0a2c3d4e5f
  tead show 0190d6b8-7d1e-7a4c-9b1e-5f0a2c3d4e5f --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runShow(opts *RootOptions, cmd *cobra.Command, id string) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	if _, err := uuid.Parse(id); err != nil {
		return out.Fail(ExitCommandError, CodeCriteria, fmt.Sprintf("invalid entry ID %q", id), err)
	}

	b, err := opts.openBackend(ctx, out)
	if err != nil {
		return err
	}
	defer b.Close()

	entries, err := collect(ctx, b, query.Criteria{Where: fmt.Sprintf("id == %q", id), Limit: 1})
	if err != nil {
		return out.Fail(ExitCommandError, CodeBackend, "failed to read entries", err)
	}
	if len(entries) == 0 {
		return out.Fail(ExitFailure, CodeNotFound, "entry not found: "+id, nil)
	}
	e := entries[0]

	if out.IsJSON() {
		data, err := ir.EncodeEntry(e)
		if err != nil {
			return out.Fail(ExitCommandError, CodeBackend, "failed to encode entry", err)
		}
		return out.Success(json.RawMessage(data))
	}
	return writeEntryText(cmd, e)
}

func writeEntryText(cmd *cobra.Command, e ir.Entry) error {
	args, kwargs, result, err := snapshot.NewDecoder().DecodeEntry(e)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode entry "+e.ID, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "id:        %s\n", e.ID)
	fmt.Fprintf(w, "target:    %s\n", e.Target)
	fmt.Fprintf(w, "timestamp: %s\n", e.Timestamp.Format(time.RFC3339Nano))
	fmt.Fprintf(w, "schema:    %s %s\n", e.Schema, e.SchemaVersion)
	for _, part := range []struct {
		label string
		v     snapshot.Value
	}{
		{"args:      ", args},
		{"kwargs:    ", kwargs},
		{"result:    ", result},
	} {
		s, err := snapshot.Render(part.v)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to render entry "+e.ID, err)
		}
		fmt.Fprintf(w, "%s%s\n", part.label, s)
	}
	return nil
}
