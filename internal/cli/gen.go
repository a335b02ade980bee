package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/tead/internal/casegen"
)

// GenOptions holds flags for the gen command.
type GenOptions struct {
	*RootOptions
	CriteriaOptions
	Output  string
	DryRun  bool
	Workers int
}

// GeneratedFile describes one written test file.
type GeneratedFile struct {
	Path       string   `json:"path"`
	ImportPath string   `json:"import_path"`
	Tests      []string `json:"tests"`
	Cases      int      `json:"cases"`
}

// GenResult holds the gen command output.
type GenResult struct {
	Files          []GeneratedFile `json:"files"`
	Entries        int             `json:"entries"`
	Duplicates     int             `json:"duplicates"`
	SkippedCases   int             `json:"skipped_cases"`
	SkippedTargets []string        `json:"skipped_targets"`
	DryRun         bool            `json:"dry_run"`
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate Go tests from recorded entries",
		Long: `Generate one Go test file per recorded package.

Entries are grouped by target and deduplicated by the canonical form of
their arguments and result. Each file lands in its own directory under
the output directory, as package <name>_test, and calls tead.Replay.
Methods, closures and unexported functions are skipped.

Examples:
  tead gen
  tead gen --output internal/regress --target 'github.com/acme/geo.*'
  tead gen --dry-run --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(opts, cmd)
		},
	}

	opts.CriteriaOptions.bind(cmd, true)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory (default from config gen.output)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would be written without writing")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "targets rendered in parallel (0 = GOMAXPROCS)")

	return cmd
}

func runGen(opts *GenOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	c, err := opts.criteria()
	if err != nil {
		return out.Fail(ExitCommandError, CodeCriteria, "invalid selection", err)
	}
	outDir := opts.Output
	if outDir == "" {
		outDir = opts.config.Gen.Output
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
	if len(entries) == 0 {
		return out.Fail(ExitFailure, CodeNotFound, "no entries matched", nil)
	}

	gen := casegen.New(casegen.WithLogger(opts.logger), casegen.WithWorkers(opts.Workers))
	files, report, err := gen.Generate(ctx, entries)
	if err != nil {
		return out.Fail(ExitCommandError, CodeGenerate, "failed to generate tests", err)
	}

	result := GenResult{
		Entries:        report.Entries,
		Duplicates:     report.Duplicates,
		SkippedCases:   report.SkippedCases,
		SkippedTargets: report.SkippedTargets,
		DryRun:         opts.DryRun,
	}
	for i, path := range filePaths(outDir, files) {
		f := files[i]
		gf := GeneratedFile{Path: path, ImportPath: f.ImportPath}
		for _, s := range f.Suites {
			gf.Tests = append(gf.Tests, s.Name)
			gf.Cases += len(s.Cases)
		}
		result.Files = append(result.Files, gf)

		if opts.DryRun {
			continue
		}
		out.VerboseLog("Writing %s", path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return out.Fail(ExitCommandError, CodeGenerate, "failed to create output directory", err)
		}
		if err := os.WriteFile(path, f.Content, 0o644); err != nil {
			return out.Fail(ExitCommandError, CodeGenerate, "failed to write "+path, err)
		}
	}

	if out.IsJSON() {
		return out.Success(result)
	}
	writeGenText(cmd, result)
	if len(result.Files) == 0 {
		return NewExitError(ExitFailure, "no tests generated: every matched entry was skipped")
	}
	return nil
}

// filePaths places each file in a directory named after its package.
// Packages sharing a name get numbered directories in file order.
func filePaths(outDir string, files []casegen.File) []string {
	owner := make(map[string]string)
	paths := make([]string, len(files))
	for i, f := range files {
		dir := f.Package
		for n := 2; owner[dir] != "" && owner[dir] != f.ImportPath; n++ {
			dir = f.Package + "_" + strconv.Itoa(n)
		}
		owner[dir] = f.ImportPath
		paths[i] = filepath.Join(outDir, dir, f.Name)
	}
	return paths
}

func writeGenText(cmd *cobra.Command, r GenResult) {
	w := cmd.OutOrStdout()
	verb := "Wrote"
	if r.DryRun {
		verb = "Would write"
	}
	for _, f := range r.Files {
		fmt.Fprintf(w, "%s %s (%d tests, %d cases)\n", verb, f.Path, len(f.Tests), f.Cases)
	}
	fmt.Fprintf(w, "\n%d entries, %d duplicates, %d skipped\n", r.Entries, r.Duplicates, r.SkippedCases)
	for _, t := range r.SkippedTargets {
		fmt.Fprintf(w, "  skipped target: %s\n", t)
	}
}
