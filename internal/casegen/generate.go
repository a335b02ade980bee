package casegen

import (
	"bytes"
	"cmp"
	"context"
	_ "embed"
	"fmt"
	"go/format"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tead/internal/capture"
	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/snapshot"
)

// ReplayImport is the import path of the package generated tests call.
const ReplayImport = "github.com/roach88/tead"

// Case is one deduplicated recorded call, written as Go expressions.
type Case struct {
	EntryID string
	Args    string
	Want    string
}

// Suite holds the cases of one target.
type Suite struct {
	Target string
	Func   string
	Name   string
	Cases  []Case
}

// File is one generated test file.
type File struct {
	Name       string
	Package    string
	ImportPath string
	Suites     []Suite
	Content    []byte
}

// Report counts what generation left out.
type Report struct {
	Entries        int
	Duplicates     int
	SkippedCases   int
	SkippedTargets []string
}

// Generator renders replay tests.
//
// Thread-safety: safe for concurrent use.
type Generator struct {
	logger  *slog.Logger
	workers int
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// WithWorkers bounds how many targets are processed at once. Defaults to
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// New creates a generator.
func New(opts ...Option) *Generator {
	g := &Generator{logger: slog.Default(), workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type group struct {
	target     string
	importPath string
	fn         string
	entries    []ir.Entry
}

// Generate renders one file per target package. Entries keep their order
// within a target; targets and files are sorted by name.
func (g *Generator) Generate(ctx context.Context, entries []ir.Entry) ([]File, Report, error) {
	report := Report{Entries: len(entries)}
	groups := g.group(entries, &report)

	suites := make([]Suite, len(groups))
	skipped := make([]int, len(groups))
	dups := make([]int, len(groups))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, grp := range groups {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			suites[i], dups[i], skipped[i] = g.suite(grp)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, report, err
	}

	var files []File
	for i, grp := range groups {
		report.Duplicates += dups[i]
		report.SkippedCases += skipped[i]
		if len(suites[i].Cases) == 0 {
			continue
		}
		if n := len(files); n > 0 && files[n-1].ImportPath == grp.importPath {
			files[n-1].Suites = append(files[n-1].Suites, suites[i])
			continue
		}
		pkg := PackageName(grp.importPath)
		files = append(files, File{
			Name:       pkg + "_tead_test.go",
			Package:    pkg,
			ImportPath: grp.importPath,
			Suites:     []Suite{suites[i]},
		})
	}

	for i := range files {
		content, err := Render(files[i])
		if err != nil {
			return nil, report, fmt.Errorf("render %s: %w", files[i].Name, err)
		}
		files[i].Content = content
	}
	return files, report, nil
}

// group buckets entries per target, dropping targets no test can call.
func (g *Generator) group(entries []ir.Entry, report *Report) []*group {
	byTarget := make(map[string]*group)
	var groups []*group
	for _, e := range entries {
		if grp, ok := byTarget[e.Target]; ok {
			if grp != nil {
				grp.entries = append(grp.entries, e)
			}
			continue
		}
		grp, reason := newGroup(e.Target)
		if grp == nil {
			g.logger.Warn("skipping target", "target", e.Target, "reason", reason)
			report.SkippedTargets = append(report.SkippedTargets, e.Target)
			byTarget[e.Target] = nil
			continue
		}
		grp.entries = append(grp.entries, e)
		byTarget[e.Target] = grp
		groups = append(groups, grp)
	}
	slices.SortFunc(groups, func(a, b *group) int {
		return cmp.Or(strings.Compare(a.importPath, b.importPath), strings.Compare(a.fn, b.fn))
	})
	slices.Sort(report.SkippedTargets)
	return groups
}

func newGroup(target string) (*group, string) {
	if !capture.IsPlainFunction(target) {
		return nil, "not a package-level function"
	}
	importPath, fn, ok := SplitTarget(target)
	if !ok {
		return nil, "not a qualified name"
	}
	if r, _ := utf8.DecodeRuneInString(fn); !unicode.IsUpper(r) {
		return nil, "function is not exported"
	}
	return &group{target: target, importPath: importPath, fn: fn}, ""
}

// suite decodes, dedups and writes the cases of one target.
func (g *Generator) suite(grp *group) (s Suite, dups, skipped int) {
	s = Suite{Target: grp.target, Func: grp.fn, Name: TestName(grp.fn)}
	seen := make(map[string]bool)
	for _, e := range grp.entries {
		c, key, err := buildCase(e)
		if err != nil {
			g.logger.Warn("skipping entry", "target", e.Target, "id", e.ID, "err", err)
			skipped++
			continue
		}
		if seen[key] {
			dups++
			continue
		}
		seen[key] = true
		s.Cases = append(s.Cases, c)
	}
	return s, dups, skipped
}

func buildCase(e ir.Entry) (Case, string, error) {
	args, kwargs, result, err := snapshot.NewDecoder().DecodeEntry(e)
	if err != nil {
		return Case{}, "", err
	}
	if m, ok := kwargs.(*snapshot.Mapping); ok && m.Len() > 0 {
		return Case{}, "", fmt.Errorf("keyword arguments cannot be passed to a Go function")
	}
	argSeq, ok := args.(*snapshot.Sequence)
	if !ok {
		return Case{}, "", fmt.Errorf("arguments are not a tuple")
	}

	key, err := snapshot.Key(snapshot.Tuple(args, result))
	if err != nil {
		return Case{}, "", err
	}

	canonArgs := make([]snapshot.Value, len(argSeq.Items))
	for i, item := range argSeq.Items {
		if canonArgs[i], err = snapshot.Canonicalize(item); err != nil {
			return Case{}, "", err
		}
	}
	argsLit, err := ArgsLiteral("tead", &snapshot.Sequence{Fixed: true, Items: canonArgs})
	if err != nil {
		return Case{}, "", err
	}
	canonResult, err := snapshot.Canonicalize(result)
	if err != nil {
		return Case{}, "", err
	}
	wantLit, err := Literal("tead", canonResult)
	if err != nil {
		return Case{}, "", err
	}
	return Case{EntryID: e.ID, Args: argsLit, Want: wantLit}, ir.HashCanonical([]byte(key)), nil
}

//go:embed testfile.go.tmpl
var testFileTemplate string

var testFile = template.Must(template.New("testfile").Parse(testFileTemplate))

// Render writes a file's suites as gofmt-formatted Go source.
func Render(f File) ([]byte, error) {
	var buf bytes.Buffer
	data := struct {
		File
		ReplayImport string
	}{f, ReplayImport}
	if err := testFile.Execute(&buf, data); err != nil {
		return nil, err
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return out, nil
}
